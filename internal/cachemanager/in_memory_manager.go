package cachemanager

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/jsonpartial/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// Stats counts lookups served by a cache.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// InMemoryCacheManager is a CacheManager backed by go-cache.
type InMemoryCacheManager[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewInMemoryCacheManager creates a cache labelled useCase in log output.
// A non-positive defaultExpiration means entries never expire.
func NewInMemoryCacheManager[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	if defaultExpiration <= 0 {
		defaultExpiration = gocache.NoExpiration
	}
	return &InMemoryCacheManager[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get returns the value stored under key.
func (c *InMemoryCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(string(key))
	if !found {
		c.misses.Add(1)
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		c.misses.Add(1)
		return zeroValue, false
	}

	c.hits.Add(1)
	log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)
	return v, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *InMemoryCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// Delete removes keys. Absent keys are ignored.
func (c *InMemoryCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Flush removes every entry.
func (c *InMemoryCacheManager[K, V]) Flush(ctx context.Context) error {
	c.cache.Flush()
	log.Debug(log.CatCache, "cache flushed", "cache", c.useCase)
	return nil
}

// Len returns the number of entries, including expired ones not yet
// cleaned up.
func (c *InMemoryCacheManager[K, V]) Len() int {
	return c.cache.ItemCount()
}

// Stats returns the hit and miss counts since creation.
func (c *InMemoryCacheManager[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
