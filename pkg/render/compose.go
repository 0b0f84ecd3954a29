package render

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/catalog"
)

// Composer turns a page's stored blocks into rendered outputs.
type Composer struct {
	dispatcher *Dispatcher
	fallback   []blocks.Block
	products   catalog.Source
	solutions  catalog.Source
	logger     *slog.Logger
}

// ComposerConfig holds composer configuration.
type ComposerConfig struct {
	Dispatcher *Dispatcher

	// Fallback is rendered when a page has no active block.
	Fallback []blocks.Block

	Products  catalog.Source
	Solutions catalog.Source
	Logger    *slog.Logger
}

// NewComposer creates a composer.
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fallback := make([]blocks.Block, len(cfg.Fallback))
	copy(fallback, cfg.Fallback)
	return &Composer{
		dispatcher: cfg.Dispatcher,
		fallback:   fallback,
		products:   cfg.Products,
		solutions:  cfg.Solutions,
		logger:     cfg.Logger,
	}
}

// Fallback returns the default composition. Every call returns the same
// blocks in a fresh slice.
func (c *Composer) Fallback() []blocks.Block {
	out := make([]blocks.Block, len(c.fallback))
	copy(out, c.fallback)
	return out
}

// Compose arranges the active blocks and renders them. A page with no
// active block renders the fallback composition instead.
func (c *Composer) Compose(ctx context.Context, bs []blocks.Block, data *PageData) ([]Output, error) {
	if data == nil {
		data = &PageData{Mode: ModePublic}
	}
	arranged := blocks.Arrange(bs)
	if len(arranged) == 0 {
		c.logger.Debug("page has no active block, using fallback", "page", data.Slug)
		arranged = c.Fallback()
	}
	return c.Render(ctx, arranged, data)
}

// Render renders an already arranged list in order.
func (c *Composer) Render(ctx context.Context, arranged []blocks.Block, data *PageData) ([]Output, error) {
	if data == nil {
		data = &PageData{Mode: ModePublic}
	}
	c.loadListings(ctx, arranged, data)

	outputs := make([]Output, 0, len(arranged))
	for i := range arranged {
		out, err := c.dispatcher.Render(&arranged[i], data)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// loadListings fetches products and solutions once, and only when a block
// lists them. A failing source leaves its listing empty.
func (c *Composer) loadListings(ctx context.Context, arranged []blocks.Block, data *PageData) {
	var wantProducts, wantSolutions bool
	for _, b := range arranged {
		switch b.Type {
		case blocks.TypeProducts:
			wantProducts = true
		case blocks.TypeSolutions:
			wantSolutions = true
		}
	}

	if wantProducts && data.Products == nil && c.products != nil {
		items, err := c.products.ListActive(ctx)
		if err != nil {
			c.logger.Warn("load products failed", "error", err)
		}
		data.Products = items
	}
	if wantSolutions && data.Solutions == nil && c.solutions != nil {
		items, err := c.solutions.ListActive(ctx)
		if err != nil {
			c.logger.Warn("load solutions failed", "error", err)
		}
		data.Solutions = items
	}
}
