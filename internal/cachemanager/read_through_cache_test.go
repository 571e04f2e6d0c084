package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockCacheManager is a testify mock of CacheManager.
type mockCacheManager[K ~string, V any] struct {
	mock.Mock
}

func newMockCacheManager[K ~string, V any](t *testing.T) *mockCacheManager[K, V] {
	m := &mockCacheManager[K, V]{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockCacheManager[K, V]) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCacheManager[K, V]) Len() int {
	return m.Called().Int(0)
}

func readFile(ctx context.Context, path string) (cachedSource, error) {
	return cachedSource{Path: path, Text: "loaded"}, nil
}

func TestReadThroughCache_Get_Bypass(t *testing.T) {
	managerMock := newMockCacheManager[string, cachedSource](t)

	rtc := NewReadThroughCache[string, cachedSource, string](managerMock, readFile, time.Minute, true)

	got, err := rtc.Get(context.Background(), "key", "a.json")
	require.NoError(t, err)
	require.Equal(t, cachedSource{Path: "a.json", Text: "loaded"}, got)
	require.NoError(t, rtc.Forget(context.Background(), "key"))
}

func TestReadThroughCache_Get_WithValueInCache(t *testing.T) {
	managerMock := newMockCacheManager[string, cachedSource](t)
	managerMock.On("Get", mock.Anything, "key").Return(cachedSource{Path: "a.json", Text: "cached"}, true)

	rtc := NewReadThroughCache[string, cachedSource, string](managerMock, readFile, time.Minute, false)

	got, err := rtc.Get(context.Background(), "key", "a.json")
	require.NoError(t, err)
	require.Equal(t, cachedSource{Path: "a.json", Text: "cached"}, got)
}

func TestReadThroughCache_Get_EmptyCache(t *testing.T) {
	managerMock := newMockCacheManager[string, cachedSource](t)
	managerMock.On("Get", mock.Anything, "key").Return(cachedSource{}, false)
	managerMock.On("Set", mock.Anything, "key", cachedSource{Path: "a.json", Text: "loaded"}, time.Minute).Return()

	rtc := NewReadThroughCache[string, cachedSource, string](managerMock, readFile, time.Minute, false)

	got, err := rtc.Get(context.Background(), "key", "a.json")
	require.NoError(t, err)
	require.Equal(t, cachedSource{Path: "a.json", Text: "loaded"}, got)
}

func TestReadThroughCache_Get_LoadError(t *testing.T) {
	managerMock := newMockCacheManager[string, cachedSource](t)
	managerMock.On("Get", mock.Anything, "key").Return(cachedSource{}, false)

	rtc := NewReadThroughCache[string, cachedSource, string](
		managerMock,
		func(ctx context.Context, path string) (cachedSource, error) {
			return cachedSource{}, errors.New("failed to read file")
		},
		time.Minute,
		false,
	)

	_, err := rtc.Get(context.Background(), "key", "a.json")
	require.Error(t, err)
	managerMock.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_Forget(t *testing.T) {
	managerMock := newMockCacheManager[string, cachedSource](t)
	managerMock.On("Delete", mock.Anything, []string{"a", "b"}).Return(nil)

	rtc := NewReadThroughCache[string, cachedSource, string](managerMock, readFile, time.Minute, false)

	require.NoError(t, rtc.Forget(context.Background(), "a", "b"))
	require.NoError(t, rtc.Forget(context.Background()))
}

func TestReadThroughCache_WithInMemoryManager(t *testing.T) {
	cache := NewInMemoryCacheManager[string, cachedSource]("sources", DefaultExpiration, DefaultCleanupInterval)
	loads := 0
	rtc := NewReadThroughCache[string, cachedSource, string](
		cache,
		func(ctx context.Context, path string) (cachedSource, error) {
			loads++
			return cachedSource{Path: path}, nil
		},
		0,
		false,
	)

	for range 3 {
		_, err := rtc.Get(context.Background(), "a.json|1", "a.json")
		require.NoError(t, err)
	}
	require.Equal(t, 1, loads)

	require.NoError(t, rtc.Forget(context.Background(), "a.json|1"))
	_, err := rtc.Get(context.Background(), "a.json|1", "a.json")
	require.NoError(t, err)
	require.Equal(t, 2, loads)
	require.Equal(t, Stats{Hits: 2, Misses: 2}, cache.Stats())
}
