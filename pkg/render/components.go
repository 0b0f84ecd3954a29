package render

import (
	"fmt"
	"io"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/catalog"
)

// blockView is the data passed to a component template.
type blockView struct {
	Block   *blocks.Block
	Content blocks.Content
	Data    *PageData
	Items   []catalog.Item
}

// ShapeError reports a payload that does not match the component's type.
type ShapeError struct {
	BlockID string
	Want    blocks.Type
	Got     blocks.Content
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("block %s: %s component cannot render %T", e.BlockID, e.Want, e.Got)
}

func execute[T blocks.Content](r *Renderer, w io.Writer, name blocks.Type, b *blocks.Block, data *PageData, items []catalog.Item) error {
	content, ok := b.Content.(T)
	if !ok {
		return &ShapeError{BlockID: b.ID, Want: name, Got: b.Content}
	}
	return r.Execute(w, "component/"+string(name), blockView{
		Block:   b,
		Content: content,
		Data:    data,
		Items:   items,
	})
}

// HeroComponent renders the page banner.
type HeroComponent struct{ r *Renderer }

func (c *HeroComponent) Name() blocks.Type { return blocks.TypeHero }

func (c *HeroComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.HeroContent](c.r, w, c.Name(), b, data, nil)
}

// FeaturesComponent renders a feature grid.
type FeaturesComponent struct{ r *Renderer }

func (c *FeaturesComponent) Name() blocks.Type { return blocks.TypeFeatures }

func (c *FeaturesComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.FeaturesContent](c.r, w, c.Name(), b, data, nil)
}

// TextComponent renders a Markdown section.
type TextComponent struct{ r *Renderer }

func (c *TextComponent) Name() blocks.Type { return blocks.TypeText }

func (c *TextComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.TextContent](c.r, w, c.Name(), b, data, nil)
}

// ImageComponent renders a single figure.
type ImageComponent struct{ r *Renderer }

func (c *ImageComponent) Name() blocks.Type { return blocks.TypeImage }

func (c *ImageComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.ImageContent](c.r, w, c.Name(), b, data, nil)
}

// CTAComponent renders a call-to-action band.
type CTAComponent struct{ r *Renderer }

func (c *CTAComponent) Name() blocks.Type { return blocks.TypeCTA }

func (c *CTAComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.CTAContent](c.r, w, c.Name(), b, data, nil)
}

// ProductsComponent renders the active products loaded by the composer.
type ProductsComponent struct{ r *Renderer }

func (c *ProductsComponent) Name() blocks.Type { return blocks.TypeProducts }

func (c *ProductsComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	var items []catalog.Item
	if content, ok := b.Content.(*blocks.ProductsContent); ok && data != nil {
		items = catalog.Limit(data.Products, content.Limit)
	}
	return execute[*blocks.ProductsContent](c.r, w, c.Name(), b, data, items)
}

// SolutionsComponent renders the active solutions loaded by the composer.
type SolutionsComponent struct{ r *Renderer }

func (c *SolutionsComponent) Name() blocks.Type { return blocks.TypeSolutions }

func (c *SolutionsComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	var items []catalog.Item
	if content, ok := b.Content.(*blocks.SolutionsContent); ok && data != nil {
		items = catalog.Limit(data.Solutions, content.Limit)
	}
	return execute[*blocks.SolutionsContent](c.r, w, c.Name(), b, data, items)
}

// TestimonialsComponent renders customer quotes.
type TestimonialsComponent struct{ r *Renderer }

func (c *TestimonialsComponent) Name() blocks.Type { return blocks.TypeTestimonials }

func (c *TestimonialsComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.TestimonialsContent](c.r, w, c.Name(), b, data, nil)
}

// StatsComponent renders a row of figures.
type StatsComponent struct{ r *Renderer }

func (c *StatsComponent) Name() blocks.Type { return blocks.TypeStats }

func (c *StatsComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.StatsContent](c.r, w, c.Name(), b, data, nil)
}

// ContactComponent renders the contact form.
type ContactComponent struct{ r *Renderer }

func (c *ContactComponent) Name() blocks.Type { return blocks.TypeContact }

func (c *ContactComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.ContactContent](c.r, w, c.Name(), b, data, nil)
}

// BlogCTAComponent renders the blog teaser.
type BlogCTAComponent struct{ r *Renderer }

func (c *BlogCTAComponent) Name() blocks.Type { return blocks.TypeBlogCTA }

func (c *BlogCTAComponent) Render(w io.Writer, b *blocks.Block, data *PageData) error {
	return execute[*blocks.BlogCTAContent](c.r, w, c.Name(), b, data, nil)
}

// Components returns one component per built-in block type.
func (r *Renderer) Components() []Component {
	return []Component{
		&HeroComponent{r: r},
		&FeaturesComponent{r: r},
		&TextComponent{r: r},
		&ImageComponent{r: r},
		&CTAComponent{r: r},
		&ProductsComponent{r: r},
		&SolutionsComponent{r: r},
		&TestimonialsComponent{r: r},
		&StatsComponent{r: r},
		&ContactComponent{r: r},
		&BlogCTAComponent{r: r},
	}
}
