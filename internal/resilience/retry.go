package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is the retry policy applied to every source and provider call:
// up to MaxAttempts tries, delay = InitialBackoff × Multiplier^attempt plus
// random jitter, retrying only errors accepted by ShouldRetry.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay before jitter. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the delay per attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds up to this fraction of the delay at random.
	// Default: 0.25.
	JitterFraction float64

	// ShouldRetry classifies errors. If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// WithAttempts returns a copy of p limited to n attempts when n > 0.
func (p Policy) WithAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// WithLogger returns a copy of p that logs each retry for the named
// component and operation.
func (p Policy) WithLogger(component, operation string) Policy {
	p.OnRetry = RetryLogger(component, operation)
	return p
}

// Do runs fn under the policy and reports how many attempts were made.
// Context cancellation stops retrying immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	_, attempts, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return attempts, err
}

// Retry runs fn under p and returns the value of the first successful call.
// On failure the value of the last attempt is returned alongside its error
// so callers can keep partial results.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.withDefaults()

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var (
		last    T
		lastErr error
	)
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		last, lastErr = fn(ctx)
		if lastErr == nil {
			return last, attempt + 1, nil
		}

		if ctx.Err() != nil || !shouldRetry(lastErr) || attempt == p.MaxAttempts-1 {
			return last, attempt + 1, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, attempt + 1, lastErr
		case <-timer.C:
		}
	}

	return last, p.MaxAttempts, lastErr
}

// Backoff returns the delay before retry number attempt+1.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()

	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		delay += rand.Float64() * delay * p.JitterFraction
	}
	return time.Duration(delay)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying call",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
