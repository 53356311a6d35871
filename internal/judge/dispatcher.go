package judge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-consensus/internal/cost"
	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/internal/resilience"
)

// DefaultTimeout bounds one provider call including retries.
const DefaultTimeout = 60 * time.Second

// ErrTextCircuitOpen is recorded for providers skipped by an open breaker.
const ErrTextCircuitOpen = "circuit open"

// DispatcherOptions configure a Dispatcher.
type DispatcherOptions struct {
	// Timeout bounds each provider independently. Default: 60s.
	Timeout time.Duration
	// Policy is the retry policy for provider calls.
	Policy resilience.Policy
	// Breakers are shared across the batch. Nil disables circuit breaking.
	Breakers *resilience.Breakers
	// Costs prices token usage. Nil prices everything at zero.
	Costs *cost.Calculator
	// System overrides SystemPrompt.
	System string
}

// Dispatcher fans a lead out to every provider and collects their
// judgments.
type Dispatcher struct {
	providers []Provider
	opts      DispatcherOptions
}

// NewDispatcher creates a dispatcher over providers, queried in the given
// order.
func NewDispatcher(providers []Provider, opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = resilience.DefaultPolicy()
	}
	if opts.System == "" {
		opts.System = SystemPrompt
	}
	return &Dispatcher{providers: providers, opts: opts}
}

// Providers returns the provider names in dispatch order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, len(d.providers))
	for i, p := range d.providers {
		names[i] = p.Name()
	}
	return names
}

// Dispatch asks every provider about lead concurrently and returns one
// outcome per provider, in provider order. Provider failures never fail the
// dispatch; they are recorded as outcomes without a judgment.
func (d *Dispatcher) Dispatch(ctx context.Context, lead model.Lead, data *model.RawCollectedData) []model.ProviderOutcome {
	req := Request{
		Lead:   lead,
		Data:   data,
		System: d.opts.System,
		Prompt: BuildPrompt(lead, data),
	}

	outcomes := make([]model.ProviderOutcome, len(d.providers))
	var g errgroup.Group
	for i, p := range d.providers {
		g.Go(func() error {
			outcomes[i] = d.runBounded(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Debug("judge: lead dispatched",
		zap.String("lead_id", lead.ID),
		zap.Int("providers", len(d.providers)),
		zap.Int("valid", model.ValidJudgments(outcomes)),
	)
	return outcomes
}

// runBounded stops waiting for a provider once its timeout expires, even if
// the provider ignores cancellation.
func (d *Dispatcher) runBounded(ctx context.Context, p Provider, req Request) model.ProviderOutcome {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	var attempts atomic.Int32
	start := time.Now()
	done := make(chan model.ProviderOutcome, 1)

	go func() {
		done <- d.runProvider(callCtx, p, req, &attempts)
	}()

	select {
	case oc := <-done:
		return oc
	case <-callCtx.Done():
		zap.L().Warn("judge: provider timed out",
			zap.String("lead_id", req.Lead.ID),
			zap.String("provider", p.Name()),
		)
		return model.ProviderOutcome{
			Provider: p.Name(),
			State:    model.JudgmentTimeout,
			Attempts: int(attempts.Load()),
			Duration: time.Since(start),
			Error:    (&model.ProviderTimeoutError{Provider: p.Name(), Err: callCtx.Err()}).Error(),
		}
	}
}

func (d *Dispatcher) runProvider(ctx context.Context, p Provider, req Request, attempts *atomic.Int32) model.ProviderOutcome {
	name := p.Name()
	start := time.Now()
	out := model.ProviderOutcome{Provider: name}

	var breaker *resilience.CircuitBreaker
	if d.opts.Breakers != nil {
		breaker = d.opts.Breakers.Get("provider:" + name)
		if err := breaker.Allow(); err != nil {
			out.State = model.JudgmentSkipped
			out.Error = ErrTextCircuitOpen
			return out
		}
	}

	var usage model.TokenUsage
	policy := d.opts.Policy.WithLogger("judge", name)
	policy.ShouldRetry = retryable
	resp, n, err := resilience.Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
		attempts.Add(1)
		resp, err := p.Judge(ctx, req)
		if resp != nil {
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
		}
		return resp, err
	})

	out.Attempts = n
	out.Duration = time.Since(start)
	out.Usage = usage
	out.CostUSD = d.opts.Costs.Tokens(p.Model(), usage.InputTokens, usage.OutputTokens)

	timedOut := ctx.Err() != nil
	if breaker != nil && !timedOut {
		breaker.Record(err)
	}

	var malformed *model.ProviderMalformedResponseError
	switch {
	case err == nil && resp != nil && resp.Judgment != nil:
		out.State = model.JudgmentOK
		out.Judgment = resp.Judgment
	case timedOut:
		out.State = model.JudgmentTimeout
		out.Error = (&model.ProviderTimeoutError{Provider: name, Err: ctx.Err()}).Error()
	case errors.As(err, &malformed):
		out.State = model.JudgmentMalformed
		out.Error = malformed.Error()
	default:
		if err == nil {
			err = fmt.Errorf("provider %s returned no judgment", name)
		}
		out.State = model.JudgmentFailed
		out.Error = err.Error()
	}

	if out.State != model.JudgmentOK {
		zap.L().Warn("judge: provider failed",
			zap.String("lead_id", req.Lead.ID),
			zap.String("provider", name),
			zap.String("state", string(out.State)),
			zap.Int("attempts", n),
			zap.Error(err),
		)
	}
	return out
}

// retryable retries transient failures but never a malformed answer.
func retryable(err error) bool {
	var malformed *model.ProviderMalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	return resilience.IsTransient(err)
}
