package store

import (
	"context"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/cache"
)

// Cached serves List from a short-lived cache and drops a page's entry on
// every write to it.
type Cached struct {
	inner Store
	cache *cache.Cache
}

type cachedSwapper struct {
	*Cached
	swapper Swapper
}

// NewCached wraps inner. The result implements Swapper exactly when inner
// does.
func NewCached(inner Store, c *cache.Cache) Store {
	cached := &Cached{inner: inner, cache: c}
	if sw, ok := inner.(Swapper); ok {
		return &cachedSwapper{Cached: cached, swapper: sw}
	}
	return cached
}

// List returns the blocks of a page.
func (c *Cached) List(ctx context.Context, page string) ([]blocks.Block, error) {
	if bs, ok := c.cache.Get(page); ok {
		return bs, nil
	}
	bs, err := c.inner.List(ctx, page)
	if err != nil {
		return nil, err
	}
	c.cache.Set(page, bs)
	return bs, nil
}

// Get returns one block from the inner store.
func (c *Cached) Get(ctx context.Context, id string) (*blocks.Block, error) {
	return c.inner.Get(ctx, id)
}

// Insert stores a new block.
func (c *Cached) Insert(ctx context.Context, b *blocks.Block) error {
	defer c.cache.Delete(b.Page)
	return c.inner.Insert(ctx, b)
}

// Update applies a patch.
func (c *Cached) Update(ctx context.Context, id string, p blocks.Patch) (*blocks.Block, error) {
	defer c.cache.InvalidateBlock(id)
	return c.inner.Update(ctx, id, p)
}

// Remove deletes a block.
func (c *Cached) Remove(ctx context.Context, id string) error {
	defer c.cache.InvalidateBlock(id)
	return c.inner.Remove(ctx, id)
}

// SwapPositions exchanges two positions in the inner store.
func (c *cachedSwapper) SwapPositions(ctx context.Context, a, b string) error {
	defer c.cache.InvalidateBlock(b)
	defer c.cache.InvalidateBlock(a)
	return c.swapper.SwapPositions(ctx, a, b)
}
