// Package registry provides the immutable table of block types. Each entry
// pairs a type tag with its presentation metadata, its renderer and the
// factory of its default content.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/render"
)

var (
	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("registry is frozen")

	// ErrDuplicate is returned when a type is registered twice.
	ErrDuplicate = errors.New("block type already registered")
)

// Metadata is presentation-only information shown in the block picker.
type Metadata struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Descriptor describes one block type.
type Descriptor struct {
	Type       blocks.Type
	Metadata   Metadata
	Component  render.Component
	NewDefault func() blocks.Content
}

// Registry maps type tags to descriptors.
type Registry struct {
	mu      sync.RWMutex
	entries map[blocks.Type]Descriptor
	order   []blocks.Type
	frozen  bool
	logger  *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[blocks.Type]Descriptor),
		logger:  logger,
	}
}

// Register adds a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if d.Type == "" {
		return errors.New("register block type: empty type")
	}
	if d.NewDefault == nil {
		return fmt.Errorf("register %s: no default factory", d.Type)
	}
	if d.Component == nil {
		return fmt.Errorf("register %s: no component", d.Type)
	}
	if d.Component.Name() != d.Type {
		return fmt.Errorf("register %s: component renders %s", d.Type, d.Component.Name())
	}
	sample := d.NewDefault()
	if sample == nil || sample.BlockType() != d.Type {
		return fmt.Errorf("register %s: default content has the wrong type", d.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s: %w", d.Type, ErrFrozen)
	}
	if _, exists := r.entries[d.Type]; exists {
		return fmt.Errorf("register %s: %w", d.Type, ErrDuplicate)
	}
	r.entries[d.Type] = d
	r.order = append(r.order, d.Type)
	r.logger.Debug("block type registered", "type", d.Type)
	return nil
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the descriptor of t.
func (r *Registry) Lookup(t blocks.Type) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[t]
	return d, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.entries[t])
	}
	return out
}

// CreateDefault returns a fresh default content value for t.
func (r *Registry) CreateDefault(t blocks.Type) (blocks.Content, error) {
	d, ok := r.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("create default: %w: %s", blocks.ErrUnknownType, t)
	}
	return d.NewDefault(), nil
}

// Component returns the renderer of t.
func (r *Registry) Component(t blocks.Type) (render.Component, bool) {
	d, ok := r.Lookup(t)
	if !ok {
		return nil, false
	}
	return d.Component, true
}

// Accepts reports whether c has the registered shape of its type.
func (r *Registry) Accepts(c blocks.Content) bool {
	if c == nil {
		return false
	}
	d, ok := r.Lookup(c.BlockType())
	if !ok {
		return false
	}
	return blocks.SameShape(c, d.NewDefault())
}

// Decode turns a stored payload into the registered shape of t. Fields
// missing from the payload keep their zero value, not the type's defaults.
// Payloads of unregistered types are kept verbatim as *blocks.UnknownContent.
func (r *Registry) Decode(t blocks.Type, raw []byte) (blocks.Content, error) {
	d, ok := r.Lookup(t)
	if !ok {
		kept := make(json.RawMessage, len(raw))
		copy(kept, raw)
		return &blocks.UnknownContent{Tag: t, Raw: kept}, nil
	}

	sample := d.NewDefault()
	content, ok := reflect.New(reflect.TypeOf(sample).Elem()).Interface().(blocks.Content)
	if !ok {
		return nil, fmt.Errorf("decode %s: default is not a pointer to content", t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return content, nil
	}
	if err := json.Unmarshal(raw, content); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return content, nil
}

// Schema reflects the content shape of t into the JSON Schema of its edit
// form.
func (r *Registry) Schema(t blocks.Type) (*jsonschema.Schema, error) {
	d, ok := r.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("schema: %w: %s", blocks.ErrUnknownType, t)
	}
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(d.NewDefault())
	schema.Title = d.Metadata.DisplayName
	schema.Description = d.Metadata.Description
	return schema, nil
}
