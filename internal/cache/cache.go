// Package cache persists consolidated lead results keyed by fingerprint.
//
// Entries older than their TTL are treated as absent. Writes overwrite
// unconditionally; across processes the last writer wins.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// DefaultTTL is how long a consolidated result stays fresh.
const DefaultTTL = 168 * time.Hour

// Cache is the persistent cache contract.
type Cache interface {
	// Get returns the live entry for fingerprint, or nil when absent or expired.
	Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	// Put stores entry, replacing any previous entry for the fingerprint.
	Put(ctx context.Context, entry model.CacheEntry) error
	// Purge deletes expired entries and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
	// Stats counts stored entries.
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// StoreStats describes the backend contents.
type StoreStats struct {
	Driver  string `json:"driver"`
	Total   int64  `json:"total"`
	Live    int64  `json:"live"`
	Expired int64  `json:"expired"`
}

// Config selects and configures a backend.
type Config struct {
	Driver        string
	Path          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	MaxConns      int32
	MinConns      int32
}

// Open creates and migrates the configured backend. Driver "none" returns a
// cache that never hits.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "leads_cache.db"
		}
		s, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		p, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx); err != nil {
			p.Close() //nolint:errcheck
			return nil, err
		}
		return p, nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
	case "none":
		return Noop{}, nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// OpenOrNoop opens the configured backend. When the backend cannot be
// opened it returns Noop together with a *model.CacheUnavailableError, and
// callers proceed uncached.
func OpenOrNoop(ctx context.Context, cfg Config) (Cache, error) {
	c, err := Open(ctx, cfg)
	if err != nil {
		return Noop{}, &model.CacheUnavailableError{Op: "open", Err: err}
	}
	return c, nil
}

func validateEntry(e model.CacheEntry) error {
	if e.Fingerprint == "" {
		return eris.New("cache: entry has no fingerprint")
	}
	if e.TTL <= 0 {
		return eris.Errorf("cache: entry %s has non-positive ttl %s", e.Fingerprint, e.TTL)
	}
	if len(e.Payload) == 0 {
		return eris.Errorf("cache: entry %s has empty payload", e.Fingerprint)
	}
	return nil
}

// Noop is a cache that stores nothing.
type Noop struct{}

func (Noop) Get(context.Context, string) (*model.CacheEntry, error) { return nil, nil }
func (Noop) Put(context.Context, model.CacheEntry) error           { return nil }
func (Noop) Purge(context.Context) (int64, error)                  { return 0, nil }
func (Noop) Stats(context.Context) (*StoreStats, error)            { return &StoreStats{Driver: "none"}, nil }
func (Noop) Close() error                                          { return nil }
