package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-consensus/internal/model"
)

func newTestRedisCache(t *testing.T, clock *fakeClock) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisWithClient(client, "").WithClock(clock.Now), mr
}

func TestRedis_PutAndGet(t *testing.T) {
	clock := newClock()
	c, mr := newTestRedisCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, entryAt("fp1", clock.Now(), DefaultTTL, `{"score":70}`)))
	assert.True(t, mr.Exists(defaultKeyPrefix+"fp1"))

	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"score":70}`, string(got.Payload))
	assert.True(t, got.CreatedAt.Equal(clock.Now()))
	assert.Equal(t, DefaultTTL, got.TTL)
}

func TestRedis_TTLExpiryByClock(t *testing.T) {
	clock := newClock()
	c, _ := newTestRedisCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, entryAt("fp1", clock.Now(), time.Hour, `{}`)))

	clock.Advance(30 * time.Minute)
	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	clock.Advance(31 * time.Minute)
	got, err = c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedis_NativeExpiry(t *testing.T) {
	clock := newClock()
	c, mr := newTestRedisCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, entryAt("fp1", clock.Now(), time.Hour, `{}`)))
	mr.FastForward(2 * time.Hour)

	assert.False(t, mr.Exists(defaultKeyPrefix+"fp1"))
	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedis_CorruptRecord(t *testing.T) {
	clock := newClock()
	c, mr := newTestRedisCache(t, clock)
	require.NoError(t, mr.Set(defaultKeyPrefix+"fp1", "not json"))

	_, err := c.Get(context.Background(), "fp1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCacheUnavailable))
}

func TestRedis_PurgeAndStats(t *testing.T) {
	clock := newClock()
	c, mr := newTestRedisCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, entryAt("live", clock.Now(), time.Hour, `{}`)))
	require.NoError(t, c.Put(ctx, entryAt("stale", clock.Now().Add(-3*time.Hour), time.Hour, `{}`)))
	require.NoError(t, mr.Set(defaultKeyPrefix+"junk", "???"))
	require.NoError(t, mr.Set("other:key", "untouched"))

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &StoreStats{Driver: "redis", Total: 3, Live: 1, Expired: 2}, st)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists(defaultKeyPrefix+"live"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedis_NewRedisPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis: ping")
}

func TestOpenOrNoop_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := OpenOrNoop(ctx, Config{Driver: "redis", RedisAddr: addr})
	assert.IsType(t, Noop{}, c)
	assert.True(t, errors.Is(err, model.ErrCacheUnavailable))
}
