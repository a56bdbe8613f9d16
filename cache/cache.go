// Package cache provides the short-TTL caches the aggregation engine uses to
// absorb request bursts and memoize schedule lookups. The cache is injected
// into the components that need it rather than held as a package singleton,
// so tests can substitute a deterministic clock and inspect hit/miss
// behavior.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a TTL key/value store. Implementations must support concurrent
// get/set from overlapping requests without serializing unrelated callers.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
}

type memoryEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a concurrent map. The zero clock
// defaults to time.Now; tests inject their own.
type Memory[T any] struct {
	now     func() time.Time
	entries sync.Map
}

// NewMemory returns an empty in-process cache.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{now: time.Now}
}

// NewMemoryWithClock returns a cache that reads the given clock, for
// deterministic expiry in tests.
func NewMemoryWithClock[T any](now func() time.Time) *Memory[T] {
	return &Memory[T]{now: now}
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	var zero T
	v, ok := m.entries.Load(key)
	if !ok {
		return zero, false
	}
	entry := v.(memoryEntry[T])
	if m.now().After(entry.expiresAt) {
		m.entries.Delete(key)
		return zero, false
	}
	return entry.value, true
}

func (m *Memory[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	m.entries.Store(key, memoryEntry[T]{value: value, expiresAt: m.now().Add(ttl)})
}

// Loader adds single-flight-on-miss semantics to a Cache: concurrent callers
// missing on the same key share one load instead of issuing duplicate
// fetches.
type Loader[T any] struct {
	cache Cache[T]
	ttl   time.Duration
	group singleflight.Group
}

// NewLoader wraps c with single-flight loading at the given TTL.
func NewLoader[T any](c Cache[T], ttl time.Duration) *Loader[T] {
	return &Loader[T]{cache: c, ttl: ttl}
}

// GetOrLoad returns the cached value for key, or runs load once across all
// concurrent callers and caches its result. Load errors are not cached.
func (l *Loader[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(ctx, key); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(ctx, key); ok {
			return v, nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(ctx, key, loaded, l.ttl)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
