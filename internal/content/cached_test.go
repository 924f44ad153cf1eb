package content

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts calls reaching the underlying store.
type countingStore struct {
	Store
	pageCalls  atomic.Int32
	themeCalls atomic.Int32
}

func (c *countingStore) Page(ctx context.Context, id int64, state VersionState) (*Page, error) {
	c.pageCalls.Add(1)
	return c.Store.Page(ctx, id, state)
}

func (c *countingStore) Theme(ctx context.Context, page *Page) (*Theme, error) {
	c.themeCalls.Add(1)
	return c.Store.Theme(ctx, page)
}

func TestCachedStore_CachesPagesAndThemes(t *testing.T) {
	// Given: a cached store over a counting store
	inner := &countingStore{Store: newTestStore(t)}
	cached := NewCachedStore(inner, 16)
	ctx := context.Background()

	// When: loading the same page twice
	p1, err := cached.Page(ctx, 1, VersionActive)
	require.NoError(t, err)
	p2, err := cached.Page(ctx, 1, VersionActive)
	require.NoError(t, err)

	// Then: the inner store is hit once
	assert.Same(t, p1, p2)
	assert.Equal(t, int32(1), inner.pageCalls.Load())
	assert.Equal(t, 1, cached.Len())

	_, err = cached.Theme(ctx, p1)
	require.NoError(t, err)
	_, err = cached.Theme(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.themeCalls.Load())
}

func TestCachedStore_DisableLocalCache(t *testing.T) {
	inner := &countingStore{Store: newTestStore(t)}
	cached := NewCachedStore(inner, 16)
	ctx := context.Background()

	_, err := cached.Page(ctx, 1, VersionActive)
	require.NoError(t, err)

	// When: the cache is disabled
	restore := cached.DisableLocalCache()
	assert.False(t, cached.CacheEnabled())
	assert.Equal(t, 0, cached.Len(), "disabling purges stale entries")

	_, err = cached.Page(ctx, 1, VersionActive)
	require.NoError(t, err)
	_, err = cached.Page(ctx, 1, VersionActive)
	require.NoError(t, err)

	// Then: every lookup reaches the store and nothing is cached
	assert.Equal(t, int32(3), inner.pageCalls.Load())
	assert.Equal(t, 0, cached.Len())

	// And: restore re-enables caching, twice is harmless
	restore()
	restore()
	assert.True(t, cached.CacheEnabled())
}

func TestCachedStore_DisableNests(t *testing.T) {
	cached := NewCachedStore(newTestStore(t), 0)

	outer := cached.DisableLocalCache()
	inner := cached.DisableLocalCache()
	inner()
	assert.False(t, cached.CacheEnabled())
	outer()
	assert.True(t, cached.CacheEnabled())
}

func TestCachedStore_ErrorsAreNotCached(t *testing.T) {
	inner := &countingStore{Store: newTestStore(t)}
	cached := NewCachedStore(inner, 16)
	ctx := context.Background()

	_, err := cached.Page(ctx, 404, VersionActive)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Page(ctx, 404, VersionActive)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(2), inner.pageCalls.Load())
}

func TestCachedStore_ReloadPurges(t *testing.T) {
	cached := NewCachedStore(newTestStore(t), 16)
	_, err := cached.Page(context.Background(), 1, VersionActive)
	require.NoError(t, err)

	require.NoError(t, cached.Reload())

	assert.Equal(t, 0, cached.Len())
}
