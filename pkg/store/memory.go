package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// Memory is an in-process Store. It does not implement Swapper.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]blocks.Block
	now    func() time.Time
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[string]blocks.Block),
		now:    time.Now,
	}
}

// List returns the blocks of a page.
func (m *Memory) List(ctx context.Context, page string) ([]blocks.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []blocks.Block
	for _, b := range m.blocks {
		if b.Page != page {
			continue
		}
		c, err := b.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return blocks.Sorted(out), nil
}

// Get returns one block.
func (m *Memory) Get(ctx context.Context, id string) (*blocks.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil, blocks.NotFound(id)
	}
	return b.Clone()
}

// Insert stores a new block.
func (m *Memory) Insert(ctx context.Context, b *blocks.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := b.Clone()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[b.ID]; ok {
		return fmt.Errorf("insert %s: %w", b.ID, ErrExists)
	}
	m.blocks[b.ID] = *c
	return nil
}

// Update applies a patch.
func (m *Memory) Update(ctx context.Context, id string, p blocks.Patch) (*blocks.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Content != nil {
		content, err := blocks.CloneContent(p.Content)
		if err != nil {
			return nil, err
		}
		p.Content = content
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil, blocks.NotFound(id)
	}
	p.Apply(&b)
	b.UpdatedAt = m.now().UTC()
	m.blocks[id] = b
	return b.Clone()
}

// Remove deletes a block.
func (m *Memory) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[id]; !ok {
		return blocks.NotFound(id)
	}
	delete(m.blocks, id)
	return nil
}
