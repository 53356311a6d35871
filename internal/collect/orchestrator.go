package collect

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/internal/resilience"
)

// Status error strings.
const (
	ErrTextTimeout     = "timeout"
	ErrTextCircuitOpen = "circuit open"
	ErrTextUnsupported = "not applicable to lead"
)

// DefaultBudget is the wall-clock budget for collecting one lead.
const DefaultBudget = 90 * time.Second

// Options configure an Orchestrator.
type Options struct {
	// Budget bounds the whole collection for one lead. Default: 90s.
	Budget time.Duration
	// Policy is the retry policy; per-source MaxAttempts overrides its
	// attempt count.
	Policy resilience.Policy
	// Breakers are shared across the batch. Nil disables circuit breaking.
	Breakers *resilience.Breakers
}

// Orchestrator dispatches every registered source for a lead concurrently.
type Orchestrator struct {
	registry *Registry
	opts     Options
	limiters map[string]*AdaptiveLimiter
}

// NewOrchestrator builds an orchestrator over the sources in registry.
// Rate limiters are created once here and shared by every lead.
func NewOrchestrator(registry *Registry, opts Options) *Orchestrator {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = resilience.DefaultPolicy()
	}
	limiters := make(map[string]*AdaptiveLimiter, registry.Len())
	for _, name := range registry.Names() {
		_, s, _ := registry.Get(name)
		limiters[name] = NewAdaptiveLimiter(name, rate.Limit(s.Rate), s.Burst)
	}
	return &Orchestrator{registry: registry, opts: opts, limiters: limiters}
}

// Sources returns the configured source names in priority order.
func (o *Orchestrator) Sources() []string {
	return o.registry.Names()
}

// Limiter returns the rate limiter for a source.
func (o *Orchestrator) Limiter(name string) *AdaptiveLimiter {
	return o.limiters[name]
}

type outcome struct {
	result *Result
	status model.SourceStatus
}

// Collect validates lead and runs every source against it. It returns an
// error only for an unusable lead; source failures are recorded in the
// per-source statuses and never fail the lead. The returned data always
// carries exactly one status per configured source, in priority order.
func (o *Orchestrator) Collect(ctx context.Context, lead model.Lead) (*model.RawCollectedData, error) {
	if err := lead.Validate(); err != nil {
		return nil, err
	}

	budgetCtx, cancel := context.WithTimeout(ctx, o.opts.Budget)
	defer cancel()

	names := o.registry.Names()
	outcomes := make([]outcome, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			outcomes[i] = o.runBounded(budgetCtx, name, lead)
			return nil
		})
	}
	_ = g.Wait()

	raw := model.NewRawCollectedData()
	for _, oc := range outcomes {
		var fields map[string]*string
		if oc.result != nil {
			fields = oc.result.Fields
		}
		raw.Merge(oc.status.Source, fields, oc.status)
	}

	zap.L().Debug("collect: lead collected",
		zap.String("lead_id", lead.ID),
		zap.Int("sources", len(names)),
		zap.Int("fields", len(raw.Keys())),
	)
	return raw, nil
}

// runBounded runs one source in its own goroutine and stops waiting for it
// when the lead budget expires, so a source that ignores cancellation
// cannot hold the lead past its budget.
func (o *Orchestrator) runBounded(ctx context.Context, name string, lead model.Lead) outcome {
	var attempts atomic.Int32
	start := time.Now()
	done := make(chan outcome, 1)

	go func() {
		done <- o.runSource(ctx, name, lead, &attempts)
	}()

	select {
	case oc := <-done:
		return oc
	case <-ctx.Done():
		zap.L().Warn("collect: source exceeded lead budget",
			zap.String("lead_id", lead.ID),
			zap.String("source", name),
		)
		return outcome{status: model.SourceStatus{
			Source:   name,
			State:    model.SourceFailed,
			Attempts: int(attempts.Load()),
			Duration: time.Since(start),
			Error:    ErrTextTimeout,
		}}
	}
}

func (o *Orchestrator) runSource(ctx context.Context, name string, lead model.Lead, attempts *atomic.Int32) outcome {
	src, settings, _ := o.registry.Get(name)
	start := time.Now()
	status := model.SourceStatus{Source: name}

	if !src.Supports(lead) {
		status.State = model.SourceSkipped
		status.Error = ErrTextUnsupported
		return outcome{status: status}
	}

	var breaker *resilience.CircuitBreaker
	if o.opts.Breakers != nil {
		breaker = o.opts.Breakers.Get("source:" + name)
		if err := breaker.Allow(); err != nil {
			status.State = model.SourceSkipped
			status.Error = ErrTextCircuitOpen
			return outcome{status: status}
		}
	}

	limiter := o.limiters[name]
	policy := o.opts.Policy.WithAttempts(settings.MaxAttempts).WithLogger("collect", name)

	res, n, err := resilience.Retry(ctx, policy, func(ctx context.Context) (*Result, error) {
		attempts.Add(1)
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
		defer cancel()

		res, err := src.Collect(attemptCtx, lead)
		switch {
		case err == nil:
			limiter.OnSuccess()
		case resilience.IsRateLimited(err):
			limiter.OnRateLimit()
		case attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			err = fmt.Errorf("attempt timed out after %s: %w", settings.Timeout, context.DeadlineExceeded)
		}
		return res, err
	})

	status.Attempts = n
	status.Duration = time.Since(start)
	status.Fields = res.Present()

	budgetExpired := ctx.Err() != nil
	if breaker != nil && !budgetExpired {
		breaker.Record(err)
	}

	switch {
	case err == nil && res != nil && res.Partial:
		status.State = model.SourcePartial
	case err == nil:
		status.State = model.SourceSuccess
	case budgetExpired:
		status.State = model.SourceFailed
		status.Error = ErrTextTimeout
	case status.Fields > 0:
		status.State = model.SourcePartial
		status.Error = err.Error()
	default:
		status.State = model.SourceFailed
		status.Error = (&model.SourceCollectionError{Source: name, Attempts: n, Err: err}).Error()
	}

	if err != nil {
		zap.L().Warn("collect: source failed",
			zap.String("lead_id", lead.ID),
			zap.String("source", name),
			zap.Stringer("priority", settings.Priority),
			zap.Int("attempts", n),
			zap.Bool("timeout", budgetExpired || errors.Is(err, context.DeadlineExceeded)),
			zap.Error(err),
		)
	}

	if status.State == model.SourceFailed {
		res = nil
	}
	return outcome{result: res, status: status}
}
