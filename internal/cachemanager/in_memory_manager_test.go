package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sourceKey string

type cachedSource struct {
	Path string
	Text string
}

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[sourceKey, cachedSource]("sources", DefaultExpiration, DefaultCleanupInterval)
	src := cachedSource{Path: "a.json", Text: `{"a": true}`}
	cache.Set(context.Background(), "a.json|1|11", src, 0)

	got, ok := cache.Get(context.Background(), "a.json|1|11")
	require.True(t, ok)
	require.Equal(t, src, got)
	require.Equal(t, Stats{Hits: 1}, cache.Stats())
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "a.json")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, Stats{Misses: 1}, cache.Stats())
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("a.json", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "a.json")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a.json", "1", time.Nanosecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "a.json")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestInMemoryCacheManager_NoExpiration(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", 0, DefaultCleanupInterval)
	cache.Set(context.Background(), "a.json", "1", 0)

	item, ok := cache.cache.Items()["a.json"]
	require.True(t, ok)
	require.Zero(t, item.Expiration)
}

func TestInMemoryCacheManager_DeleteWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)

	err := cache.Delete(context.Background())
	require.NoError(t, err)
}

func TestInMemoryCacheManager_DeleteExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a.json", "1", DefaultExpiration)
	cache.Set(context.Background(), "b.json", "2", DefaultExpiration)
	require.Equal(t, 2, cache.Len())

	err := cache.Delete(context.Background(), "a.json", "missing.json")
	require.NoError(t, err)

	_, ok := cache.Get(context.Background(), "a.json")
	require.False(t, ok)
	got, ok := cache.Get(context.Background(), "b.json")
	require.True(t, ok)
	require.Equal(t, "2", got)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("sources", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a.json", "1", DefaultExpiration)

	err := cache.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, cache.Len())

	got, ok := cache.Get(context.Background(), "a.json")
	require.False(t, ok)
	require.Equal(t, "", got)
}
