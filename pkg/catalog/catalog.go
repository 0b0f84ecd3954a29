// Package catalog provides the products and solutions listings shown by
// listing blocks. Listings are owned by other parts of the site; blocks
// only read the active entries.
package catalog

import (
	"context"
	"sort"
)

// Item is one listed product or solution.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Summary  string `json:"summary,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
	Link     string `json:"link,omitempty"`
	Position int    `json:"position"`
}

// Source lists the active entries of one collection in display order.
type Source interface {
	ListActive(ctx context.Context) ([]Item, error)
}

// Static is a fixed in-memory Source.
type Static []Item

// ListActive returns a copy of the items ordered by position.
func (s Static) ListActive(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := make([]Item, len(s))
	copy(items, s)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

// Limit returns at most n items; n <= 0 means no limit.
func Limit(items []Item, n int) []Item {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
