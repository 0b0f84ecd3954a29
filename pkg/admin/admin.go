// Package admin provides the operations of the block editor: edit sessions,
// committed block writes and the live preview of a draft.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/invopop/jsonschema"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/engine"
	"github.com/hazyhaar/blockpage/pkg/media"
	"github.com/hazyhaar/blockpage/pkg/preview"
	"github.com/hazyhaar/blockpage/pkg/registry"
	"github.com/hazyhaar/blockpage/pkg/render"
	"github.com/hazyhaar/blockpage/pkg/session"
)

// ErrNoUploader is returned by Upload when no media storage is configured.
var ErrNoUploader = errors.New("media uploads are not configured")

// Observer counts rejected saves.
type Observer interface {
	ObserveValidation(t blocks.Type)
}

// Config holds admin service configuration.
type Config struct {
	Sessions *session.Manager
	Engine   *engine.Engine
	Registry *registry.Registry
	Composer *render.Composer
	Uploader media.Uploader
	Observer Observer
	Logger   *slog.Logger
}

// Service is the editor backend.
type Service struct {
	sessions *session.Manager
	engine   *engine.Engine
	registry *registry.Registry
	composer *render.Composer
	uploader media.Uploader
	observer Observer
	logger   *slog.Logger
}

// New creates an admin service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		sessions: cfg.Sessions,
		engine:   cfg.Engine,
		registry: cfg.Registry,
		composer: cfg.Composer,
		uploader: cfg.Uploader,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// StartSession opens an idle edit session on page.
func (s *Service) StartSession(page string) string {
	return s.sessions.Create(page)
}

// EndSession closes a session. Unknown ids are ignored.
func (s *Service) EndSession(id string) {
	s.sessions.Discard(id)
}

// Draft returns the current state of a session.
func (s *Service) Draft(id string) (session.Draft, error) {
	return s.apply(id, func(*session.Session) error { return nil })
}

// StartCreate begins a new block of type t.
func (s *Service) StartCreate(id string, t blocks.Type) (session.Draft, error) {
	return s.apply(id, func(sess *session.Session) error { return sess.StartCreate(t) })
}

// StartEdit begins editing a committed block.
func (s *Service) StartEdit(ctx context.Context, id, blockID string) (session.Draft, error) {
	b, err := s.engine.Get(ctx, blockID)
	if err != nil {
		return session.Draft{}, err
	}
	return s.apply(id, func(sess *session.Session) error { return sess.StartEdit(b) })
}

// SetType switches the type of a new block, resetting its content.
func (s *Service) SetType(id string, t blocks.Type) (session.Draft, error) {
	return s.apply(id, func(sess *session.Session) error { return sess.SetType(t) })
}

// SetField sets one field of the draft.
func (s *Service) SetField(id, path string, value any) (session.Draft, error) {
	return s.apply(id, func(sess *session.Session) error { return sess.SetField(path, value) })
}

// SetActive sets the draft's visibility.
func (s *Service) SetActive(id string, active bool) (session.Draft, error) {
	return s.apply(id, func(sess *session.Session) error { return sess.SetActive(active) })
}

// Cancel discards the draft and returns the session to idle.
func (s *Service) Cancel(id string) (session.Draft, error) {
	return s.apply(id, func(sess *session.Session) error {
		sess.Cancel()
		return nil
	})
}

// Save validates and commits the draft. A rejected draft stays in the
// session for correction.
func (s *Service) Save(ctx context.Context, id string) (*blocks.Block, error) {
	var saved *blocks.Block
	err := s.sessions.With(id, func(sess *session.Session) error {
		t := sess.Draft().Type
		b, err := sess.Save(ctx, s.engine)
		if err != nil {
			var ve *blocks.ValidationError
			if errors.As(err, &ve) && s.observer != nil {
				s.observer.ObserveValidation(t)
			}
			return err
		}
		saved = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) apply(id string, fn func(*session.Session) error) (session.Draft, error) {
	var d session.Draft
	err := s.sessions.With(id, func(sess *session.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		d = sess.Draft()
		return nil
	})
	return d, err
}

// Blocks returns every block of page in display order, hidden ones included.
func (s *Service) Blocks(ctx context.Context, page string) ([]blocks.Block, error) {
	return s.engine.List(ctx, page)
}

// Swap exchanges the positions of two blocks.
func (s *Service) Swap(ctx context.Context, a, b string) error {
	return s.engine.Swap(ctx, a, b)
}

// MoveUp moves a block one slot towards the top.
func (s *Service) MoveUp(ctx context.Context, id string) error {
	return s.engine.MoveUp(ctx, id)
}

// MoveDown moves a block one slot towards the bottom.
func (s *Service) MoveDown(ctx context.Context, id string) error {
	return s.engine.MoveDown(ctx, id)
}

// ToggleActive flips a block's visibility.
func (s *Service) ToggleActive(ctx context.Context, id string) (bool, error) {
	return s.engine.ToggleActive(ctx, id)
}

// Remove deletes a block.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.engine.Remove(ctx, id)
}

// Preview is the rendered projection of a session.
type Preview struct {
	Draft   session.Draft
	Outputs []render.Output
}

// Preview renders the page of a session as it will look once the draft
// is saved.
func (s *Service) Preview(ctx context.Context, id string, data *render.PageData) (*Preview, error) {
	d, err := s.Draft(id)
	if err != nil {
		return nil, err
	}
	committed, err := s.engine.List(ctx, d.Page)
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = &render.PageData{}
	}
	data.Mode = render.ModeEdit
	data.Slug = d.Page

	projected := preview.Project(committed, d)
	if len(projected) == 0 {
		projected = s.composer.Fallback()
	}
	outputs, err := s.composer.Render(ctx, projected, data)
	if err != nil {
		return nil, fmt.Errorf("render preview of %s: %w", d.Page, err)
	}
	return &Preview{Draft: d, Outputs: outputs}, nil
}

// TypeInfo describes a registered block type for the block picker.
type TypeInfo struct {
	Type blocks.Type `json:"type"`
	registry.Metadata
}

// Types lists the registered block types in registration order.
func (s *Service) Types() []TypeInfo {
	descs := s.registry.List()
	out := make([]TypeInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, TypeInfo{Type: d.Type, Metadata: d.Metadata})
	}
	return out
}

// Schema returns the edit form schema of t.
func (s *Service) Schema(t blocks.Type) (*jsonschema.Schema, error) {
	return s.registry.Schema(t)
}

// Upload stores a media file and returns the reference to put in a block.
func (s *Service) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrNoUploader
	}
	url, err := s.uploader.Upload(ctx, name, contentType, r)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return url, nil
}
