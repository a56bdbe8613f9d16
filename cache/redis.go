package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared across processes through a Redis instance, so
// overlapping front ends reuse each other's fetches. Values round-trip
// through JSON. The inner cache is string-typed because that is what the
// redis store hands back on read.
type Redis[T any] struct {
	inner *gocache.Cache[string]
}

// NewRedis returns a Redis-backed cache on the given client.
func NewRedis[T any](client *redis.Client) *Redis[T] {
	return &Redis[T]{inner: gocache.New[string](redisstore.NewRedis(client))}
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := r.inner.Get(ctx, key)
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false
	}
	return v, true
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	// write failures are non-fatal; callers just refetch
	_ = r.inner.Set(ctx, key, string(raw), store.WithExpiration(ttl))
}
