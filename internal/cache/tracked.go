package cache

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Counters are per-process cache statistics.
type Counters struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Saves   int64   `json:"saves"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	// Unavailable holds the open failure when the backend was replaced by
	// Noop at startup.
	Unavailable string `json:"unavailable,omitempty"`
}

// Tracked wraps a backend, counts hits and misses, and turns every backend
// failure into a miss. The returned error is informational only: callers
// proceed uncached.
type Tracked struct {
	inner Cache

	hits   atomic.Int64
	misses atomic.Int64
	saves  atomic.Int64
	errs   atomic.Int64

	unavailable atomic.Pointer[string]
}

// NewTracked wraps inner.
func NewTracked(inner Cache) *Tracked {
	if inner == nil {
		inner = Noop{}
	}
	return &Tracked{inner: inner}
}

// Lookup returns the live entry for fingerprint. On a backend failure it
// returns a nil entry and a *model.CacheUnavailableError.
func (t *Tracked) Lookup(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	entry, err := t.inner.Get(ctx, fingerprint)
	if err != nil {
		t.errs.Add(1)
		t.misses.Add(1)
		zap.L().Warn("cache: lookup failed, treating as miss",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return nil, &model.CacheUnavailableError{Op: "get", Err: err}
	}
	if entry == nil {
		t.misses.Add(1)
		return nil, nil
	}
	t.hits.Add(1)
	return entry, nil
}

// Store writes entry. Failures are counted, logged and returned as a
// *model.CacheUnavailableError.
func (t *Tracked) Store(ctx context.Context, entry model.CacheEntry) error {
	if err := t.inner.Put(ctx, entry); err != nil {
		t.errs.Add(1)
		zap.L().Warn("cache: store failed",
			zap.String("fingerprint", entry.Fingerprint),
			zap.Error(err),
		)
		return &model.CacheUnavailableError{Op: "put", Err: err}
	}
	t.saves.Add(1)
	return nil
}

// MarkUnavailable records that the configured backend could not be opened
// and this wrapper runs uncached.
func (t *Tracked) MarkUnavailable(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	t.unavailable.Store(&msg)
	t.errs.Add(1)
	zap.L().Warn("cache: backend unavailable, running uncached", zap.Error(err))
}

// Counters returns a snapshot of the statistics.
func (t *Tracked) Counters() Counters {
	c := Counters{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
		Saves:  t.saves.Load(),
		Errors: t.errs.Load(),
	}
	if msg := t.unavailable.Load(); msg != nil {
		c.Unavailable = *msg
	}
	if total := c.Hits + c.Misses; total > 0 {
		c.HitRate = float64(c.Hits) / float64(total)
	}
	return c
}

// Backend returns the wrapped cache.
func (t *Tracked) Backend() Cache {
	return t.inner
}
