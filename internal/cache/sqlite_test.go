package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-consensus/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func newTestSQLiteCache(t *testing.T, clock *fakeClock) *SQLiteCache {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLite(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s.WithClock(clock.Now)
}

func entryAt(fp string, created time.Time, ttl time.Duration, payload string) model.CacheEntry {
	return model.CacheEntry{
		Fingerprint: fp,
		Payload:     json.RawMessage(payload),
		CreatedAt:   created,
		TTL:         ttl,
	}
}

func TestSQLite_PutAndGet(t *testing.T) {
	clock := newClock()
	s := newTestSQLiteCache(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entryAt("fp1", clock.Now(), DefaultTTL, `{"score":87.5}`)))

	got, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fp1", got.Fingerprint)
	assert.JSONEq(t, `{"score":87.5}`, string(got.Payload))
	assert.True(t, got.CreatedAt.Equal(clock.Now()))
	assert.Equal(t, DefaultTTL, got.TTL)
}

func TestSQLite_Missing(t *testing.T) {
	s := newTestSQLiteCache(t, newClock())
	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_TTLExpiry(t *testing.T) {
	clock := newClock()
	s := newTestSQLiteCache(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entryAt("fp1", clock.Now(), time.Hour, `{}`)))

	clock.Advance(30 * time.Minute)
	got, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.NotNil(t, got, "entry should be live at T+30m")

	clock.Advance(31 * time.Minute)
	got, err = s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got, "entry should be absent at T+61m")
}

func TestSQLite_OverwriteIsUnconditional(t *testing.T) {
	clock := newClock()
	s := newTestSQLiteCache(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entryAt("fp1", clock.Now(), time.Hour, `{"v":1}`)))
	// An older write still replaces a newer one: last writer wins.
	require.NoError(t, s.Put(ctx, entryAt("fp1", clock.Now().Add(-10*time.Minute), time.Hour, `{"v":2}`)))

	got, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)
}

func TestSQLite_PurgeAndStats(t *testing.T) {
	clock := newClock()
	s := newTestSQLiteCache(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entryAt("old", clock.Now().Add(-2*time.Hour), time.Hour, `{}`)))
	require.NoError(t, s.Put(ctx, entryAt("new", clock.Now(), time.Hour, `{}`)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &StoreStats{Driver: "sqlite", Total: 2, Live: 1, Expired: 1}, st)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)
	assert.Equal(t, int64(0), st.Expired)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.WithClock(clock.Now).Put(ctx, entryAt("fp1", clock.Now(), time.Hour, `{"ok":true}`)))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Migrate(ctx))
	got, err := s2.WithClock(clock.Now).Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"ok":true}`, string(got.Payload))
}

func TestSQLite_PutRejectsInvalidEntry(t *testing.T) {
	clock := newClock()
	s := newTestSQLiteCache(t, clock)
	ctx := context.Background()

	assert.Error(t, s.Put(ctx, entryAt("", clock.Now(), time.Hour, `{}`)))
	assert.Error(t, s.Put(ctx, entryAt("fp", clock.Now(), 0, `{}`)))
	assert.Error(t, s.Put(ctx, entryAt("fp", clock.Now(), time.Hour, ``)))
}

func writeCorruptFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o600))
	return path
}

func TestOpen_CorruptFileFails(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite", Path: writeCorruptFile(t)})
	assert.Error(t, err)
}

func TestOpenOrNoop_CorruptFileDegrades(t *testing.T) {
	c, err := OpenOrNoop(context.Background(), Config{Driver: "sqlite", Path: writeCorruptFile(t)})
	assert.IsType(t, Noop{}, c)

	var cu *model.CacheUnavailableError
	require.True(t, errors.As(err, &cu))
	assert.Equal(t, "open", cu.Op)
	assert.True(t, errors.Is(err, model.ErrCacheUnavailable))

	tr := NewTracked(c)
	tr.MarkUnavailable(err)
	got, lookupErr := tr.Lookup(context.Background(), "fp1")
	require.NoError(t, lookupErr)
	assert.Nil(t, got)

	counters := tr.Counters()
	assert.Equal(t, int64(1), counters.Errors)
	assert.Equal(t, int64(1), counters.Misses)
	assert.Contains(t, counters.Unavailable, "cache open")
}

func TestOpenOrNoop_Healthy(t *testing.T) {
	c, err := OpenOrNoop(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "ok.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteCache{}, c)
	require.NoError(t, c.Close())
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Config{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteCache{}, c)
	require.NoError(t, c.Close())

	_, err = Open(ctx, Config{Driver: "memcached"})
	assert.ErrorContains(t, err, "unknown driver")
}
