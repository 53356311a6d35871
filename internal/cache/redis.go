package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

const defaultKeyPrefix = "leads:cache:"

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache implements Cache on Redis. Keys carry a native expiry so Redis
// evicts stale entries on its own; Get still checks the stored expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type redisRecord struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "redis: ping %s", opts.Addr)
	}
	return NewRedisWithClient(client, opts.KeyPrefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (r *RedisCache) WithClock(now func() time.Time) *RedisCache {
	r.now = now
	return r
}

func (r *RedisCache) key(fingerprint string) string {
	return r.prefix + fingerprint
}

func (r *RedisCache) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	raw, err := r.client.Get(ctx, r.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get %s", fingerprint)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil || !json.Valid(rec.Payload) {
		return nil, eris.Wrapf(model.ErrCacheUnavailable, "redis: corrupt record for %s", fingerprint)
	}
	if !r.now().Before(rec.ExpiresAt) {
		return nil, nil
	}

	return &model.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     rec.Payload,
		CreatedAt:   rec.CreatedAt.UTC(),
		TTL:         rec.ExpiresAt.Sub(rec.CreatedAt),
	}, nil
}

func (r *RedisCache) Put(ctx context.Context, entry model.CacheEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	raw, err := json.Marshal(redisRecord{
		Payload:   entry.Payload,
		CreatedAt: entry.CreatedAt.UTC(),
		ExpiresAt: entry.ExpiresAt().UTC(),
	})
	if err != nil {
		return eris.Wrap(err, "redis: marshal record")
	}

	// Native expiry is relative to the wall clock; an entry that is already
	// stale is kept briefly and filtered by Get.
	ttl := entry.ExpiresAt().Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return eris.Wrapf(r.client.Set(ctx, r.key(entry.Fingerprint), raw, ttl).Err(), "redis: put %s", entry.Fingerprint)
}

// Purge removes entries whose stored expiry has passed but whose key has
// not been evicted yet.
func (r *RedisCache) Purge(ctx context.Context) (int64, error) {
	var removed int64
	err := r.scan(ctx, func(key string, rec *redisRecord) error {
		if rec != nil && r.now().Before(rec.ExpiresAt) {
			return nil
		}
		n, err := r.client.Del(ctx, key).Result()
		removed += n
		return err
	})
	if err != nil {
		return removed, eris.Wrap(err, "redis: purge expired")
	}
	return removed, nil
}

func (r *RedisCache) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{Driver: "redis"}
	err := r.scan(ctx, func(_ string, rec *redisRecord) error {
		st.Total++
		if rec != nil && r.now().Before(rec.ExpiresAt) {
			st.Live++
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "redis: stats")
	}
	st.Expired = st.Total - st.Live
	return st, nil
}

// scan visits every cache key; rec is nil for undecodable records.
func (r *RedisCache) scan(ctx context.Context, fn func(key string, rec *redisRecord) error) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		var rec redisRecord
		var recPtr *redisRecord
		if json.Unmarshal(raw, &rec) == nil {
			recPtr = &rec
		}
		if err := fn(key, recPtr); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
