// Package cache provides a read cache of page block lists with per-block
// invalidation.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// Cache holds block lists keyed by page with TTL and LRU eviction.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	enabled    bool
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	hits    int64
	misses  int64

	// Block to page mapping for invalidation
	blockPages map[string]string
}

type entry struct {
	key        string
	blocks     []blocks.Block
	createdAt  time.Time
	accessedAt time.Time
}

// Config holds cache configuration.
type Config struct {
	TTL        time.Duration
	MaxEntries int
	Enabled    bool
	Logger     *slog.Logger

	// Now replaces the clock in tests.
	Now func() time.Time
}

// New creates a new cache.
func New(cfg Config) *Cache {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache{
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		enabled:    cfg.Enabled,
		logger:     cfg.Logger,
		now:        cfg.Now,
		entries:    make(map[string]*entry),
		blockPages: make(map[string]string),
	}
}

// Get returns the cached blocks of a page. The slice is a copy; the
// content payloads are shared and must not be mutated.
func (c *Cache) Get(key string) ([]blocks.Block, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(e.createdAt) > c.ttl {
		c.deleteLocked(key)
		c.misses++
		return nil, false
	}

	e.accessedAt = now
	c.hits++
	out := make([]blocks.Block, len(e.blocks))
	copy(out, e.blocks)
	return out, true
}

// Set stores the blocks of a page.
func (c *Cache) Set(key string, bs []blocks.Block) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.deleteLocked(key)
	}
	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	stored := make([]blocks.Block, len(bs))
	copy(stored, bs)
	now := c.now()
	c.entries[key] = &entry{
		key:        key,
		blocks:     stored,
		createdAt:  now,
		accessedAt: now,
	}
	for _, b := range stored {
		c.blockPages[b.ID] = key
	}
}

// Delete removes a cache entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

func (c *Cache) deleteLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, b := range e.blocks {
		if c.blockPages[b.ID] == key {
			delete(c.blockPages, b.ID)
		}
	}
}

// InvalidateBlock drops the page holding a block and reports whether an
// entry was removed.
func (c *Cache) InvalidateBlock(blockID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.blockPages[blockID]
	if !ok {
		return false
	}
	c.deleteLocked(key)
	c.logger.Debug("invalidated cache for block", "block_id", blockID, "page", key)
	return true
}

// evictOldest evicts the least recently accessed entry.
func (c *Cache) evictOldest() {
	var oldest *entry
	for _, e := range c.entries {
		if oldest == nil || e.accessedAt.Before(oldest.accessedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		c.deleteLocked(oldest.key)
		c.logger.Debug("evicted cache entry", "key", oldest.key)
	}
}

// Clear clears the entire cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.blockPages = make(map[string]string)
	c.logger.Info("cache cleared")
}

// Stats returns cache statistics.
type Stats struct {
	Enabled    bool    `json:"enabled"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
}

// GetStats returns cache statistics.
func (c *Cache) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRatio := float64(0)
	if total > 0 {
		hitRatio = float64(c.hits) / float64(total)
	}

	return &Stats{
		Enabled:    c.enabled,
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		HitRatio:   hitRatio,
	}
}
