// Package session provides the admin edit session: a draft of one block
// being created or edited, isolated from the committed page until saved.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// ErrInvalidTransition is returned for operations the current mode does
// not allow.
var ErrInvalidTransition = errors.New("invalid session transition")

// Mode is the state of an edit session.
type Mode int

const (
	Idle Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Defaults creates the initial content of a block type.
type Defaults interface {
	CreateDefault(t blocks.Type) (blocks.Content, error)
}

// Committer persists a saved draft.
type Committer interface {
	Create(ctx context.Context, page string, t blocks.Type, content blocks.Content, active bool) (*blocks.Block, error)
	Update(ctx context.Context, id string, p blocks.Patch) (*blocks.Block, error)
}

// Draft is an immutable snapshot of a session.
type Draft struct {
	Mode     Mode           `json:"mode"`
	Page     string         `json:"page"`
	TargetID string         `json:"targetId,omitempty"`
	Type     blocks.Type    `json:"type,omitempty"`
	Content  blocks.Content `json:"content,omitempty"`
	Active   bool           `json:"active"`
}

// Session is one author's edit of one page. It is not safe for concurrent
// use; the Manager serialises access.
type Session struct {
	id       string
	page     string
	defaults Defaults

	mode         Mode
	target       string
	draftType    blocks.Type
	draftContent blocks.Content
	draftActive  bool
}

// New creates an idle session for page.
func New(id, page string, defaults Defaults) *Session {
	return &Session{id: id, page: page, defaults: defaults}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Page returns the page being edited.
func (s *Session) Page() string { return s.page }

// Mode returns the current mode.
func (s *Session) Mode() Mode { return s.mode }

// StartCreate begins a new block of type t with default content.
func (s *Session) StartCreate(t blocks.Type) error {
	if s.mode != Idle {
		return fmt.Errorf("start create in %s: %w", s.mode, ErrInvalidTransition)
	}
	content, err := s.defaults.CreateDefault(t)
	if err != nil {
		return err
	}
	s.mode = Creating
	s.target = ""
	s.draftType = t
	s.draftContent = content
	s.draftActive = true
	return nil
}

// StartEdit begins editing a committed block. The draft is a copy; the
// block itself is never touched.
func (s *Session) StartEdit(b *blocks.Block) error {
	if s.mode != Idle {
		return fmt.Errorf("start edit in %s: %w", s.mode, ErrInvalidTransition)
	}
	if b.Page != s.page {
		return fmt.Errorf("start edit: block %s belongs to page %q, not %q: %w", b.ID, b.Page, s.page, ErrInvalidTransition)
	}
	if _, err := s.defaults.CreateDefault(b.Type); err != nil {
		return err
	}
	if _, unknown := b.Content.(*blocks.UnknownContent); unknown || b.Content == nil {
		return fmt.Errorf("start edit %s: %w: %s", b.ID, blocks.ErrUnknownType, b.Type)
	}
	content, err := blocks.CloneContent(b.Content)
	if err != nil {
		return err
	}
	s.mode = Editing
	s.target = b.ID
	s.draftType = b.Type
	s.draftContent = content
	s.draftActive = b.Active
	return nil
}

// SetType switches the type of a new block. The content is reset to the
// new type's default; nothing entered so far carries over.
func (s *Session) SetType(t blocks.Type) error {
	if s.mode != Creating {
		return fmt.Errorf("set type in %s: %w", s.mode, ErrInvalidTransition)
	}
	content, err := s.defaults.CreateDefault(t)
	if err != nil {
		return err
	}
	s.draftType = t
	s.draftContent = content
	return nil
}

// SetField sets one field of the draft content. Values are not validated
// until Save.
func (s *Session) SetField(path string, value any) error {
	if s.mode == Idle {
		return fmt.Errorf("set field in %s: %w", s.mode, ErrInvalidTransition)
	}
	content, err := blocks.SetField(s.draftContent, path, value)
	if err != nil {
		return err
	}
	s.draftContent = content
	return nil
}

// SetActive sets the draft's visibility.
func (s *Session) SetActive(active bool) error {
	if s.mode == Idle {
		return fmt.Errorf("set active in %s: %w", s.mode, ErrInvalidTransition)
	}
	s.draftActive = active
	return nil
}

// Cancel discards the draft.
func (s *Session) Cancel() {
	s.reset()
}

// Save validates the draft and commits it. On any failure the session is
// left as it was so the author can fix the draft or retry.
func (s *Session) Save(ctx context.Context, c Committer) (*blocks.Block, error) {
	if s.mode == Idle {
		return nil, fmt.Errorf("save in %s: %w", s.mode, ErrInvalidTransition)
	}
	if err := blocks.Validate(s.draftContent); err != nil {
		return nil, err
	}
	content, err := blocks.CloneContent(s.draftContent)
	if err != nil {
		return nil, err
	}

	var saved *blocks.Block
	switch s.mode {
	case Creating:
		saved, err = c.Create(ctx, s.page, s.draftType, content, s.draftActive)
	case Editing:
		t, active := s.draftType, s.draftActive
		saved, err = c.Update(ctx, s.target, blocks.Patch{Type: &t, Content: content, Active: &active})
	}
	if err != nil {
		return nil, err
	}
	s.reset()
	return saved, nil
}

// Draft returns a snapshot of the session.
func (s *Session) Draft() Draft {
	d := Draft{
		Mode:     s.mode,
		Page:     s.page,
		TargetID: s.target,
		Type:     s.draftType,
		Active:   s.draftActive,
	}
	if s.draftContent != nil {
		// Registered content always round-trips; a failure leaves the
		// snapshot without content.
		if content, err := blocks.CloneContent(s.draftContent); err == nil {
			d.Content = content
		}
	}
	return d
}

func (s *Session) reset() {
	s.mode = Idle
	s.target = ""
	s.draftType = ""
	s.draftContent = nil
	s.draftActive = false
}
