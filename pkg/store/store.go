// Package store provides persistence of page blocks.
//
// Every implementation returns errors wrapping blocks.ErrNotFound for
// missing ids. Lists come back in display order, inactive blocks included.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// ErrExists is returned when inserting a block id twice.
var ErrExists = errors.New("block already exists")

// Store is the persistence collaborator of the block engine.
type Store interface {
	List(ctx context.Context, page string) ([]blocks.Block, error)
	Get(ctx context.Context, id string) (*blocks.Block, error)
	Insert(ctx context.Context, b *blocks.Block) error
	Update(ctx context.Context, id string, p blocks.Patch) (*blocks.Block, error)
	Remove(ctx context.Context, id string) error
}

// Swapper is implemented by stores that exchange two positions atomically.
type Swapper interface {
	SwapPositions(ctx context.Context, a, b string) error
}

// Decoder turns stored JSON into a typed payload.
type Decoder interface {
	Decode(t blocks.Type, raw []byte) (blocks.Content, error)
}

func encodeContent(c blocks.Content) ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", c.BlockType(), err)
	}
	return data, nil
}

// decodeContent never fails: a payload that does not fit its registered
// shape is kept as unknown content and renders as a placeholder.
func decodeContent(dec Decoder, logger *slog.Logger, id string, t blocks.Type, raw []byte) blocks.Content {
	content, err := dec.Decode(t, raw)
	if err != nil {
		logger.Warn("undecodable block content", "block", id, "type", t, "error", err)
		kept := make(json.RawMessage, len(raw))
		copy(kept, raw)
		return &blocks.UnknownContent{Tag: t, Raw: kept}
	}
	return content
}
