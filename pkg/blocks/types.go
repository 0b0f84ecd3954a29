// Package blocks provides the block model for composed pages.
// A page is an ordered list of independently typed blocks; each block carries
// one content payload whose shape is selected by its type tag.
package blocks

import (
	"time"
)

// Type is the discriminator selecting a block's content shape and renderer.
type Type string

// Built-in block types.
const (
	TypeHero         Type = "hero"
	TypeFeatures     Type = "features"
	TypeText         Type = "text"
	TypeImage        Type = "image"
	TypeCTA          Type = "cta"
	TypeProducts     Type = "products"
	TypeSolutions    Type = "solutions"
	TypeTestimonials Type = "testimonials"
	TypeStats        Type = "stats"
	TypeContact      Type = "contact"
	TypeBlogCTA      Type = "blog-cta"
)

// DraftID identifies the synthetic block of an unsaved preview.
const DraftID = "preview"

// Block represents one positioned unit of page content.
type Block struct {
	ID        string    `json:"id"`
	Page      string    `json:"page"`
	Type      Type      `json:"type"`
	Position  int       `json:"position"`
	Active    bool      `json:"active"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDraft returns true for the synthetic preview block.
func (b *Block) IsDraft() bool {
	return b.ID == DraftID
}

// Clone returns a copy of the block with its own content payload.
func (b *Block) Clone() (*Block, error) {
	c := *b
	if b.Content != nil {
		content, err := CloneContent(b.Content)
		if err != nil {
			return nil, err
		}
		c.Content = content
	}
	return &c, nil
}

// Patch describes an in-place update. Nil fields are left unchanged.
type Patch struct {
	Type     *Type
	Content  Content
	Active   *bool
	Position *int
}

// IsEmpty returns true if the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.Content == nil && p.Active == nil && p.Position == nil
}

// Apply writes the patch onto b.
func (p Patch) Apply(b *Block) {
	if p.Type != nil {
		b.Type = *p.Type
	}
	if p.Content != nil {
		b.Content = p.Content
	}
	if p.Active != nil {
		b.Active = *p.Active
	}
	if p.Position != nil {
		b.Position = *p.Position
	}
}

// MaxPosition returns the highest position among bs, or -1 when bs is empty.
func MaxPosition(bs []Block) int {
	highest := -1
	for _, b := range bs {
		if b.Position > highest {
			highest = b.Position
		}
	}
	return highest
}
