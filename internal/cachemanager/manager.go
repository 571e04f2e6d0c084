// Package cachemanager provides the TTL caches used when loading partial
// sources from disk.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager stores values of type V under string-like keys.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
	Len() int
}
