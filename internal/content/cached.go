package content

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of entries per cache.
const DefaultCacheSize = 512

type pageKey struct {
	id    int64
	state VersionState
}

// CachedStore wraps a Store with LRU caches for pages and themes, the two
// lookups every request repeats. Blocks and groups pass through.
type CachedStore struct {
	inner  Store
	pages  *lru.Cache[pageKey, *Page]
	themes *lru.Cache[string, *Theme]

	disabled atomic.Int32
	mu       sync.Mutex // serializes Reload with cache purges
}

var (
	_ Store           = (*CachedStore)(nil)
	_ CacheController = (*CachedStore)(nil)
)

// NewCachedStore creates a cached store wrapping inner.
func NewCachedStore(inner Store, size int) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	pages, _ := lru.New[pageKey, *Page](size)
	themes, _ := lru.New[string, *Theme](size)
	return &CachedStore{
		inner:  inner,
		pages:  pages,
		themes: themes,
	}
}

// DisableLocalCache bypasses and purges the caches until restore is called.
// Calls nest; the cache is back in use once every restore has run. Restore
// is idempotent.
func (c *CachedStore) DisableLocalCache() (restore func()) {
	c.disabled.Add(1)
	c.purge()

	var once sync.Once
	return func() {
		once.Do(func() { c.disabled.Add(-1) })
	}
}

// CacheEnabled reports whether lookups are currently served from cache.
func (c *CachedStore) CacheEnabled() bool {
	return c.disabled.Load() == 0
}

// Len returns the number of cached pages.
func (c *CachedStore) Len() int {
	return c.pages.Len()
}

// Reload reloads the wrapped store when it supports it, then drops every
// cached entry.
func (c *CachedStore) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.inner.(interface{ Reload() error }); ok {
		if err := r.Reload(); err != nil {
			return err
		}
	}
	c.purge()
	return nil
}

func (c *CachedStore) purge() {
	c.pages.Purge()
	c.themes.Purge()
}

// PageIDs is not cached.
func (c *CachedStore) PageIDs(ctx context.Context) ([]int64, error) {
	return c.inner.PageIDs(ctx)
}

// Page returns a cached page when available.
func (c *CachedStore) Page(ctx context.Context, id int64, state VersionState) (*Page, error) {
	if !c.CacheEnabled() {
		return c.inner.Page(ctx, id, state)
	}

	key := pageKey{id: id, state: state}
	if p, ok := c.pages.Get(key); ok {
		return p, nil
	}

	p, err := c.inner.Page(ctx, id, state)
	if err != nil {
		return nil, err
	}
	c.pages.Add(key, p)
	return p, nil
}

// Theme returns a cached theme when available.
func (c *CachedStore) Theme(ctx context.Context, page *Page) (*Theme, error) {
	if !c.CacheEnabled() {
		return c.inner.Theme(ctx, page)
	}

	key := page.ThemeHandle
	if th, ok := c.themes.Get(key); ok {
		return th, nil
	}

	th, err := c.inner.Theme(ctx, page)
	if err != nil {
		return nil, err
	}
	c.themes.Add(key, th)
	return th, nil
}

// Blocks is not cached.
func (c *CachedStore) Blocks(ctx context.Context, page *Page, area string) ([]*Block, error) {
	return c.inner.Blocks(ctx, page, area)
}

// Group is not cached.
func (c *CachedStore) Group(ctx context.Context, id int64) (*Group, error) {
	return c.inner.Group(ctx, id)
}
