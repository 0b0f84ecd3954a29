package registry

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/render"
)

// Category names used by the block picker.
const (
	CategoryHeader  = "header"
	CategoryContent = "content"
	CategoryMedia   = "media"
	CategoryListing = "listing"
	CategoryAction  = "action"
)

var builtinMetadata = map[blocks.Type]Metadata{
	blocks.TypeHero:         {DisplayName: "Hero", Description: "Large banner with a title and a button", Icon: "star", Category: CategoryHeader},
	blocks.TypeFeatures:     {DisplayName: "Features", Description: "Grid of features", Icon: "grid", Category: CategoryContent},
	blocks.TypeText:         {DisplayName: "Text", Description: "Rich text section", Icon: "text", Category: CategoryContent},
	blocks.TypeImage:        {DisplayName: "Image", Description: "Single image with caption", Icon: "image", Category: CategoryMedia},
	blocks.TypeCTA:          {DisplayName: "Call to action", Description: "Band with a single button", Icon: "megaphone", Category: CategoryAction},
	blocks.TypeProducts:     {DisplayName: "Products", Description: "Active products", Icon: "box", Category: CategoryListing},
	blocks.TypeSolutions:    {DisplayName: "Solutions", Description: "Active solutions", Icon: "puzzle", Category: CategoryListing},
	blocks.TypeTestimonials: {DisplayName: "Testimonials", Description: "Customer quotes", Icon: "quote", Category: CategoryContent},
	blocks.TypeStats:        {DisplayName: "Stats", Description: "Key figures", Icon: "chart", Category: CategoryContent},
	blocks.TypeContact:      {DisplayName: "Contact", Description: "Contact form and details", Icon: "mail", Category: CategoryAction},
	blocks.TypeBlogCTA:      {DisplayName: "Blog teaser", Description: "Link to the blog", Icon: "book", Category: CategoryAction},
}

// Builtin returns a frozen registry holding every built-in block type,
// rendered with r.
func Builtin(r *render.Renderer, logger *slog.Logger) (*Registry, error) {
	reg := New(logger)
	for _, c := range r.Components() {
		factory, ok := defaults[c.Name()]
		if !ok {
			return nil, fmt.Errorf("builtin %s: no default content", c.Name())
		}
		err := reg.Register(Descriptor{
			Type:       c.Name(),
			Metadata:   builtinMetadata[c.Name()],
			Component:  c,
			NewDefault: factory,
		})
		if err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

// FallbackIDs are the ids of the default composition blocks.
var FallbackIDs = []string{"fallback-0", "fallback-1", "fallback-2"}

// DefaultComposition returns the blocks shown on a page with no active
// block: a hero, a features grid and a call to action with default content.
func DefaultComposition(reg *Registry) ([]blocks.Block, error) {
	types := []blocks.Type{blocks.TypeHero, blocks.TypeFeatures, blocks.TypeCTA}
	out := make([]blocks.Block, 0, len(types))
	for i, t := range types {
		content, err := reg.CreateDefault(t)
		if err != nil {
			return nil, fmt.Errorf("default composition: %w", err)
		}
		out = append(out, blocks.Block{
			ID:       FallbackIDs[i],
			Type:     t,
			Position: i,
			Active:   true,
			Content:  content,
		})
	}
	return out, nil
}
