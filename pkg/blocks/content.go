package blocks

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Content is the payload of a block. Every type tag has exactly one
// implementation; the renderer and the edit form of a type share it.
type Content interface {
	BlockType() Type
}

// Alignment of a text block.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// HeroContent is the banner at the top of a page.
type HeroContent struct {
	Title            string `json:"title" validate:"notblank" jsonschema:"title=Title"`
	Subtitle         string `json:"subtitle" validate:"notblank" jsonschema:"title=Subtitle"`
	CallToActionText string `json:"callToActionText" jsonschema:"title=Button text"`
	CallToActionLink string `json:"callToActionLink" jsonschema:"title=Button link"`
	MediaRef         string `json:"mediaRef,omitempty" jsonschema:"title=Background image,format=uri"`
}

func (*HeroContent) BlockType() Type { return TypeHero }

// FeatureItem is one cell of a feature grid.
type FeatureItem struct {
	Icon        string `json:"icon,omitempty"`
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description,omitempty"`
}

// FeaturesContent is a grid of features.
type FeaturesContent struct {
	Title    string        `json:"title" validate:"notblank"`
	Subtitle string        `json:"subtitle,omitempty"`
	Items    []FeatureItem `json:"items" validate:"min=1,dive"`
}

func (*FeaturesContent) BlockType() Type { return TypeFeatures }

// TextContent is a rich text section. Body is Markdown.
type TextContent struct {
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body" validate:"notblank" jsonschema:"title=Body,description=Markdown"`
	Alignment Alignment `json:"alignment" validate:"omitempty,oneof=left center right" jsonschema:"enum=left,enum=center,enum=right"`
}

func (*TextContent) BlockType() Type { return TypeText }

// ImageContent is a single image with caption.
type ImageContent struct {
	MediaRef string `json:"mediaRef" validate:"notblank" jsonschema:"format=uri"`
	Alt      string `json:"alt,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Link     string `json:"link,omitempty"`
}

func (*ImageContent) BlockType() Type { return TypeImage }

// CTAContent is a call-to-action band.
type CTAContent struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description,omitempty"`
	ButtonText  string `json:"buttonText" validate:"notblank"`
	ButtonLink  string `json:"buttonLink" validate:"notblank"`
}

func (*CTAContent) BlockType() Type { return TypeCTA }

// ProductsContent lists active products. Items come from the products
// collaborator, not from the author.
type ProductsContent struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"gte=0"`
}

func (*ProductsContent) BlockType() Type { return TypeProducts }

// SolutionsContent lists active solutions.
type SolutionsContent struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"gte=0"`
}

func (*SolutionsContent) BlockType() Type { return TypeSolutions }

// Testimonial is one customer quote.
type Testimonial struct {
	Quote     string `json:"quote" validate:"notblank"`
	Author    string `json:"author" validate:"notblank"`
	Role      string `json:"role,omitempty"`
	Company   string `json:"company,omitempty"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// TestimonialsContent is a set of quotes.
type TestimonialsContent struct {
	Title string        `json:"title,omitempty"`
	Items []Testimonial `json:"items" validate:"min=1,dive"`
}

func (*TestimonialsContent) BlockType() Type { return TypeTestimonials }

// StatEntry is one figure in a stats block.
type StatEntry struct {
	Value       string `json:"value" validate:"notblank"`
	Label       string `json:"label" validate:"notblank"`
	Description string `json:"description,omitempty"`
}

// StatsContent is a row of figures.
type StatsContent struct {
	Title    string      `json:"title,omitempty"`
	Subtitle string      `json:"subtitle,omitempty"`
	Entries  []StatEntry `json:"entries" validate:"min=1,dive"`
}

func (*StatsContent) BlockType() Type { return TypeStats }

// ContactContent is a contact form with optional direct details.
type ContactContent struct {
	Title      string `json:"title" validate:"notblank"`
	Subtitle   string `json:"subtitle,omitempty"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	SubmitText string `json:"submitText" validate:"notblank"`
}

func (*ContactContent) BlockType() Type { return TypeContact }

// BlogCTAContent promotes the blog.
type BlogCTAContent struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description,omitempty"`
	ButtonText  string `json:"buttonText" validate:"notblank"`
	ButtonLink  string `json:"buttonLink" validate:"notblank"`
}

func (*BlogCTAContent) BlockType() Type { return TypeBlogCTA }

// UnknownContent carries a stored payload whose tag is not registered.
// It round-trips the raw JSON untouched.
type UnknownContent struct {
	Tag Type
	Raw json.RawMessage
}

func (u *UnknownContent) BlockType() Type { return u.Tag }

// MarshalJSON returns the raw payload.
func (u *UnknownContent) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// CloneContent returns a deep copy of c with the same concrete type.
func CloneContent(c Content) (Content, error) {
	if c == nil {
		return nil, nil
	}
	if u, ok := c.(*UnknownContent); ok {
		raw := make(json.RawMessage, len(u.Raw))
		copy(raw, u.Raw)
		return &UnknownContent{Tag: u.Tag, Raw: raw}, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("clone %s content: %w", c.BlockType(), err)
	}
	fresh, err := newLike(c)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, fresh); err != nil {
		return nil, fmt.Errorf("clone %s content: %w", c.BlockType(), err)
	}
	return fresh, nil
}

// newLike allocates a zero value of c's concrete pointer type.
func newLike(c Content) (Content, error) {
	t := reflect.TypeOf(c)
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("content %T is not a pointer to struct", c)
	}
	fresh, ok := reflect.New(t.Elem()).Interface().(Content)
	if !ok {
		return nil, fmt.Errorf("content %T does not implement Content", c)
	}
	return fresh, nil
}

// SameShape reports whether a and b share a concrete type.
func SameShape(a, b Content) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}
