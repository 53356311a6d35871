package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-consensus/internal/model"
)

// SQLiteCache implements Cache on a local modernc.org/sqlite file.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

// WithClock replaces the clock used for expiry checks.
func (s *SQLiteCache) WithClock(now func() time.Time) *SQLiteCache {
	s.now = now
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS lead_cache (
	fingerprint TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lead_cache_expires_at ON lead_cache(expires_at);
`

// Migrate creates the cache table.
func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

func (s *SQLiteCache) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var (
		payload            string
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, expires_at FROM lead_cache WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, s.now().UnixNano(),
	).Scan(&payload, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", fingerprint)
	}
	if !json.Valid([]byte(payload)) {
		return nil, eris.Wrapf(model.ErrCacheUnavailable, "sqlite: corrupt payload for %s", fingerprint)
	}

	return &model.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     json.RawMessage(payload),
		CreatedAt:   time.Unix(0, created).UTC(),
		TTL:         time.Duration(expiresAt - created),
	}, nil
}

func (s *SQLiteCache) Put(ctx context.Context, entry model.CacheEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_cache (fingerprint, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		entry.Fingerprint, string(entry.Payload), entry.CreatedAt.UnixNano(), entry.ExpiresAt().UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: put %s", entry.Fingerprint)
}

func (s *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lead_cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func (s *SQLiteCache) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{Driver: "sqlite"}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) FROM lead_cache`,
		s.now().UnixNano(),
	).Scan(&st.Total, &st.Live)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	st.Expired = st.Total - st.Live
	return st, nil
}
