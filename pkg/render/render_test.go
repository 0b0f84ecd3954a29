package render_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/catalog"
	"github.com/hazyhaar/blockpage/pkg/registry"
	"github.com/hazyhaar/blockpage/pkg/render"
)

type countingSource struct {
	items []catalog.Item
	calls int
	err   error
}

func (s *countingSource) ListActive(context.Context) ([]catalog.Item, error) {
	s.calls++
	return s.items, s.err
}

type recordingObserver struct {
	rendered     []blocks.Type
	placeholders []blocks.Type
}

func (o *recordingObserver) ObserveRender(t blocks.Type, _ time.Duration) {
	o.rendered = append(o.rendered, t)
}

func (o *recordingObserver) ObservePlaceholder(t blocks.Type) {
	o.placeholders = append(o.placeholders, t)
}

type fixture struct {
	renderer   *render.Renderer
	registry   *registry.Registry
	dispatcher *render.Dispatcher
	composer   *render.Composer
	products   *countingSource
	observer   *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r, err := render.New(render.Config{})
	require.NoError(t, err)
	reg, err := registry.Builtin(r, nil)
	require.NoError(t, err)
	fallback, err := registry.DefaultComposition(reg)
	require.NoError(t, err)

	f := &fixture{
		renderer: r,
		registry: reg,
		products: &countingSource{items: []catalog.Item{
			{ID: "p1", Name: "Widget", Position: 1},
			{ID: "p2", Name: "Gadget", Position: 2},
		}},
		observer: &recordingObserver{},
	}
	f.dispatcher = render.NewDispatcher(render.DispatcherConfig{Lookup: reg, Renderer: r, Observer: f.observer})
	f.composer = render.NewComposer(render.ComposerConfig{
		Dispatcher: f.dispatcher,
		Fallback:   fallback,
		Products:   f.products,
		Solutions:  catalog.Static{},
	})
	return f
}

func ids(outs []render.Output) []string {
	out := make([]string, len(outs))
	for i, o := range outs {
		out[i] = o.BlockID
	}
	return out
}

func TestDispatchRegisteredType(t *testing.T) {
	f := newFixture(t)
	b := &blocks.Block{ID: "h1", Type: blocks.TypeHero, Active: true,
		Content: &blocks.HeroContent{Title: "Launch <now>", Subtitle: "Soon"}}

	out, err := f.dispatcher.Render(b, &render.PageData{Mode: render.ModePublic})
	require.NoError(t, err)

	assert.False(t, out.Placeholder)
	assert.Equal(t, "h1", out.BlockID)
	assert.Contains(t, string(out.HTML), "Launch &lt;now&gt;")
	assert.Equal(t, []blocks.Type{blocks.TypeHero}, f.observer.rendered)
}

func TestDispatchUnknownTypeRendersPlaceholder(t *testing.T) {
	f := newFixture(t)
	b := &blocks.Block{ID: "x1", Type: "carousel", Active: true,
		Content: &blocks.UnknownContent{Tag: "carousel", Raw: []byte(`{}`)}}

	public, err := f.dispatcher.Render(b, &render.PageData{Mode: render.ModePublic})
	require.NoError(t, err)
	assert.True(t, public.Placeholder)
	assert.Contains(t, string(public.HTML), "carousel")
	assert.NotContains(t, string(public.HTML), "Delete block")

	edit, err := f.dispatcher.Render(b, &render.PageData{Mode: render.ModeEdit})
	require.NoError(t, err)
	assert.Contains(t, string(edit.HTML), "Delete block")
	assert.Contains(t, string(edit.HTML), "/admin/blocks/x1")

	assert.Equal(t, []blocks.Type{"carousel", "carousel"}, f.observer.placeholders)
}

func TestDispatchShapeMismatchRendersPlaceholder(t *testing.T) {
	f := newFixture(t)
	b := &blocks.Block{ID: "m1", Type: blocks.TypeHero, Content: &blocks.TextContent{Body: "x"}}

	out, err := f.dispatcher.Render(b, nil)
	require.NoError(t, err)
	assert.True(t, out.Placeholder)
}

func TestDispatchWithoutTemplatesStillRendersPlaceholder(t *testing.T) {
	f := newFixture(t)
	d := render.NewDispatcher(render.DispatcherConfig{Lookup: f.registry})

	out, err := d.Render(&blocks.Block{ID: "x", Type: "gone"}, nil)
	require.NoError(t, err)
	assert.True(t, out.Placeholder)
	assert.Contains(t, string(out.HTML), "gone")
}

func TestComposeOrdersActiveBlocks(t *testing.T) {
	f := newFixture(t)
	page := []blocks.Block{
		{ID: "c", Type: blocks.TypeCTA, Position: 2, Active: true,
			Content: &blocks.CTAContent{Title: "C", ButtonText: "Go", ButtonLink: "/c"}},
		{ID: "hidden", Type: blocks.TypeText, Position: 0, Active: false,
			Content: &blocks.TextContent{Body: "secret"}},
		{ID: "a", Type: blocks.TypeText, Position: 0, Active: true,
			Content: &blocks.TextContent{Body: "first"}},
		{ID: "b", Type: "carousel", Position: 1, Active: true,
			Content: &blocks.UnknownContent{Tag: "carousel"}},
	}

	outs, err := f.composer.Compose(context.Background(), page, &render.PageData{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(outs))
	assert.True(t, outs[1].Placeholder)
}

func TestComposeEmptyPageUsesFallback(t *testing.T) {
	f := newFixture(t)
	inactive := []blocks.Block{{ID: "off", Type: blocks.TypeText, Active: false,
		Content: &blocks.TextContent{Body: "x"}}}

	first, err := f.composer.Compose(context.Background(), nil, &render.PageData{})
	require.NoError(t, err)
	second, err := f.composer.Compose(context.Background(), inactive, &render.PageData{})
	require.NoError(t, err)

	assert.Equal(t, registry.FallbackIDs, ids(first))
	assert.Equal(t, first, second)
}

func TestComposeLoadsListingsOnce(t *testing.T) {
	f := newFixture(t)
	page := []blocks.Block{
		{ID: "p1", Type: blocks.TypeProducts, Position: 0, Active: true, Content: &blocks.ProductsContent{Limit: 1}},
		{ID: "p2", Type: blocks.TypeProducts, Position: 1, Active: true, Content: &blocks.ProductsContent{}},
	}

	outs, err := f.composer.Compose(context.Background(), page, &render.PageData{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.products.calls)
	assert.Equal(t, 1, strings.Count(string(outs[0].HTML), "listing-item"))
	assert.Equal(t, 2, strings.Count(string(outs[1].HTML), "listing-item"))
}

func TestComposeSkipsListingsWhenUnused(t *testing.T) {
	f := newFixture(t)
	_, err := f.composer.Compose(context.Background(), nil, &render.PageData{})
	require.NoError(t, err)
	assert.Zero(t, f.products.calls)
}

func TestComposeSurvivesListingFailure(t *testing.T) {
	f := newFixture(t)
	f.products.err = errors.New("db down")
	f.products.items = nil
	page := []blocks.Block{{ID: "p", Type: blocks.TypeProducts, Active: true, Content: &blocks.ProductsContent{}}}

	outs, err := f.composer.Compose(context.Background(), page, &render.PageData{})
	require.NoError(t, err)
	assert.Contains(t, string(outs[0].HTML), "No products yet")
}

func TestMarkdownIsSanitized(t *testing.T) {
	f := newFixture(t)
	b := &blocks.Block{ID: "t", Type: blocks.TypeText, Active: true,
		Content: &blocks.TextContent{Body: "**bold** <script>alert(1)</script>"}}

	out, err := f.dispatcher.Render(b, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "<strong>bold</strong>")
	assert.NotContains(t, string(out.HTML), "<script>")
}

func TestRenderPage(t *testing.T) {
	f := newFixture(t)
	outs, err := f.composer.Compose(context.Background(), nil, &render.PageData{})
	require.NoError(t, err)

	var full bytes.Buffer
	require.NoError(t, f.renderer.RenderPage(&full, &render.PageData{Title: "Acme", Slug: "home"}, outs))
	assert.Contains(t, full.String(), "<title>Acme</title>")
	assert.Contains(t, full.String(), `data-block-id="fallback-0"`)
	assert.NotContains(t, full.String(), "EventSource")

	var partial bytes.Buffer
	require.NoError(t, f.renderer.RenderPage(&partial, &render.PageData{IsHTMX: true}, outs))
	assert.NotContains(t, partial.String(), "<html")
	assert.Equal(t, 3, strings.Count(partial.String(), "block-slot"))

	var edit bytes.Buffer
	require.NoError(t, f.renderer.RenderPage(&edit, &render.PageData{Slug: "home", Mode: render.ModeEdit}, outs))
	assert.Contains(t, edit.String(), "EventSource")
}

func TestRenderError(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	require.NoError(t, f.renderer.RenderError(&buf, &render.PageData{Error: errors.New("boom")}))
	assert.Contains(t, buf.String(), "boom")
}
