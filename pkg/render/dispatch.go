package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// Output is the rendered HTML of one block.
type Output struct {
	BlockID     string
	Type        blocks.Type
	HTML        template.HTML
	Placeholder bool
}

// Lookup resolves the component of a block type.
type Lookup interface {
	Component(t blocks.Type) (Component, bool)
	Accepts(c blocks.Content) bool
}

// Observer records render timings. It may be nil.
type Observer interface {
	ObserveRender(t blocks.Type, d time.Duration)
	ObservePlaceholder(t blocks.Type)
}

// Dispatcher maps each block to its component, falling back to a
// placeholder for tags or payloads nothing can render.
type Dispatcher struct {
	lookup   Lookup
	renderer *Renderer
	observer Observer
	logger   *slog.Logger
}

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	Lookup   Lookup
	Renderer *Renderer
	Observer Observer
	Logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		lookup:   cfg.Lookup,
		renderer: cfg.Renderer,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Render renders one block. Unknown tags and mismatched payloads produce a
// placeholder and no error; an error from a registered component is
// returned as is.
func (d *Dispatcher) Render(b *blocks.Block, data *PageData) (Output, error) {
	component, ok := d.lookup.Component(b.Type)
	if !ok || b.Content == nil || b.Content.BlockType() != b.Type || !d.lookup.Accepts(b.Content) {
		return d.placeholder(b, data), nil
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := component.Render(&buf, b, data); err != nil {
		return Output{}, fmt.Errorf("render %s block %s: %w", b.Type, b.ID, err)
	}
	if d.observer != nil {
		d.observer.ObserveRender(b.Type, time.Since(start))
	}

	return Output{
		BlockID: b.ID,
		Type:    b.Type,
		HTML:    template.HTML(buf.String()),
	}, nil
}

type placeholderView struct {
	BlockID   string
	Tag       string
	Deletable bool
}

func (d *Dispatcher) placeholder(b *blocks.Block, data *PageData) Output {
	d.logger.Warn("no renderer for block", "type", b.Type, "block", b.ID)
	if d.observer != nil {
		d.observer.ObservePlaceholder(b.Type)
	}

	view := placeholderView{
		BlockID:   b.ID,
		Tag:       string(b.Type),
		Deletable: data.Editing() && !b.IsDraft(),
	}
	out := Output{BlockID: b.ID, Type: b.Type, Placeholder: true}

	if d.renderer != nil {
		var buf bytes.Buffer
		err := d.renderer.Execute(&buf, "system/placeholder", view)
		if err == nil {
			out.HTML = template.HTML(buf.String())
			return out
		}
		d.logger.Error("placeholder template failed", "error", err)
	}
	out.HTML = template.HTML(fmt.Sprintf(
		`<div class="block-placeholder" data-block-id="%s">Unknown block type: %s</div>`,
		html.EscapeString(view.BlockID), html.EscapeString(view.Tag)))
	return out
}
