package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache fills a CacheManager from a load function on miss.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache  CacheManager[K, V]
	load   func(ctx context.Context, input I) (V, error)
	ttl    time.Duration
	bypass bool
}

// NewReadThroughCache wraps cache with load. When bypass is true every Get
// calls load and the cache is never consulted.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	load func(ctx context.Context, input I) (V, error),
	ttl time.Duration,
	bypass bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:  cache,
		load:   load,
		ttl:    ttl,
		bypass: bypass,
	}
}

// Get returns the cached value for key, loading it from input on a miss.
// Failed loads are not cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I) (V, error) {
	if r.bypass {
		return r.load(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.load(ctx, input)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, r.ttl)
	return value, nil
}

// Forget drops keys so the next Get reloads them.
func (r *ReadThroughCache[K, V, I]) Forget(ctx context.Context, keys ...K) error {
	if r.bypass || len(keys) == 0 {
		return nil
	}
	return r.cache.Delete(ctx, keys...)
}
