package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the cache; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresCache implements Cache on a shared Postgres database so several
// workers can reuse each other's results.
type PostgresCache struct {
	pool Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresCache with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresCache, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresCache{pool: pool, now: time.Now}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresCache {
	return &PostgresCache{pool: pool, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (p *PostgresCache) WithClock(now func() time.Time) *PostgresCache {
	p.now = now
	return p
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS lead_cache (
	fingerprint TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lead_cache_expires_at ON lead_cache(expires_at);
`

// Migrate creates the cache table.
func (p *PostgresCache) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (p *PostgresCache) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresCache) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var (
		payload            []byte
		created, expiresAt time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT payload, created_at, expires_at FROM lead_cache WHERE fingerprint = $1 AND expires_at > $2`,
		fingerprint, p.now().UTC(),
	).Scan(&payload, &created, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", fingerprint)
	}
	if !json.Valid(payload) {
		return nil, eris.Wrapf(model.ErrCacheUnavailable, "postgres: corrupt payload for %s", fingerprint)
	}

	return &model.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     json.RawMessage(payload),
		CreatedAt:   created.UTC(),
		TTL:         expiresAt.Sub(created),
	}, nil
}

func (p *PostgresCache) Put(ctx context.Context, entry model.CacheEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO lead_cache (fingerprint, payload, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fingerprint) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		entry.Fingerprint, []byte(entry.Payload), entry.CreatedAt.UTC(), entry.ExpiresAt().UTC(),
	)
	return eris.Wrapf(err, "postgres: put %s", entry.Fingerprint)
}

func (p *PostgresCache) Purge(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM lead_cache WHERE expires_at <= $1`, p.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresCache) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{Driver: "postgres"}
	err := p.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE expires_at > $1) FROM lead_cache`,
		p.now().UTC(),
	).Scan(&st.Total, &st.Live)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	st.Expired = st.Total - st.Live
	return st, nil
}
