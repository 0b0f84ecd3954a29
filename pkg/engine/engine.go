// Package engine provides the committed write operations on page blocks:
// create, update, remove, reorder and visibility toggles.
//
// Writes are not retried. A store failure surfaces as a
// *blocks.PersistenceError; a missing block as blocks.ErrNotFound.
// A page accepts one write at a time: a second write while one is in
// flight fails with ErrBusy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/sse"
	"github.com/hazyhaar/blockpage/pkg/store"
)

var (
	// ErrBusy is returned when the page already has a write in flight.
	ErrBusy = errors.New("page has a write in flight")

	// ErrCrossPage is returned when swapping blocks of different pages.
	ErrCrossPage = errors.New("blocks belong to different pages")

	// ErrMismatch is returned when content does not match the block type.
	ErrMismatch = errors.New("content does not match block type")
)

// EventBlocksChanged is published on the page channel after every write.
const EventBlocksChanged = "blocks.changed"

// Event describes a committed write.
type Event struct {
	Op       string   `json:"op"`
	Page     string   `json:"page"`
	BlockIDs []string `json:"blockIds"`
}

// Notifier publishes change events. *sse.Hub implements it.
type Notifier interface {
	PublishJSON(channel, eventType string, data any) error
}

// Observer records the outcome and latency of every operation.
type Observer interface {
	ObserveOp(op, outcome string, d time.Duration)
}

// Config holds engine configuration.
type Config struct {
	Store    store.Store
	Notifier Notifier
	Observer Observer
	Logger   *slog.Logger

	// Now replaces the clock in tests.
	Now func() time.Time
}

// Engine applies writes to a store.
type Engine struct {
	store    store.Store
	notifier Notifier
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
		inflight: make(map[string]bool),
	}
}

// acquire marks page as having a write in flight.
func (e *Engine) acquire(page string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[page] {
		return nil, fmt.Errorf("%w: %s", ErrBusy, page)
	}
	e.inflight[page] = true
	return func() {
		e.mu.Lock()
		delete(e.inflight, page)
		e.mu.Unlock()
	}, nil
}

// List returns every block of a page in display order, inactive included.
func (e *Engine) List(ctx context.Context, page string) ([]blocks.Block, error) {
	bs, err := e.store.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list page %s: %w", page, err)
	}
	return blocks.Sorted(bs), nil
}

// Get returns one block.
func (e *Engine) Get(ctx context.Context, id string) (*blocks.Block, error) {
	b, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.fault("get", id, false, err)
	}
	return b, nil
}

// Create appends a block after every existing block of the page, active or
// not. An empty page starts at position 0.
func (e *Engine) Create(ctx context.Context, page string, t blocks.Type, content blocks.Content, active bool) (_ *blocks.Block, err error) {
	defer e.observe("create", time.Now(), &err)

	if content == nil || content.BlockType() != t {
		return nil, fmt.Errorf("create %s block: %w", t, ErrMismatch)
	}
	release, err := e.acquire(page)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := e.store.List(ctx, page)
	if err != nil {
		return nil, &blocks.PersistenceError{Op: "create", Err: err}
	}

	now := e.now().UTC()
	b := &blocks.Block{
		ID:        blocks.NewBlockID(),
		Page:      page,
		Type:      t,
		Position:  blocks.MaxPosition(existing) + 1,
		Active:    active,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Insert(ctx, b); err != nil {
		return nil, &blocks.PersistenceError{Op: "create", BlockID: b.ID, Err: err}
	}

	e.logger.Info("block created", "page", page, "block", b.ID, "type", t, "position", b.Position)
	e.notify("create", page, b.ID)
	return b, nil
}

// Update changes a block's type, content or visibility. Position is never
// changed by Update; use Swap.
func (e *Engine) Update(ctx context.Context, id string, p blocks.Patch) (_ *blocks.Block, err error) {
	defer e.observe("update", time.Now(), &err)

	p.Position = nil
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, e.fault("update", id, false, err)
	}
	if p.IsEmpty() {
		return current, nil
	}

	t := current.Type
	if p.Type != nil {
		t = *p.Type
	}
	content := current.Content
	if p.Content != nil {
		content = p.Content
	}
	if content == nil || content.BlockType() != t {
		return nil, fmt.Errorf("update block %s: %w", id, ErrMismatch)
	}

	release, err := e.acquire(current.Page)
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := e.store.Update(ctx, id, p)
	if err != nil {
		return nil, e.fault("update", id, false, err)
	}

	e.logger.Info("block updated", "page", updated.Page, "block", id)
	e.notify("update", updated.Page, id)
	return updated, nil
}

// Remove deletes a block. The remaining blocks keep their positions.
func (e *Engine) Remove(ctx context.Context, id string) (err error) {
	defer e.observe("remove", time.Now(), &err)

	current, err := e.store.Get(ctx, id)
	if err != nil {
		return e.fault("remove", id, false, err)
	}
	release, err := e.acquire(current.Page)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.Remove(ctx, id); err != nil {
		return e.fault("remove", id, false, err)
	}

	e.logger.Info("block removed", "page", current.Page, "block", id)
	e.notify("remove", current.Page, id)
	return nil
}

// ToggleActive flips a block's visibility and returns the new state.
func (e *Engine) ToggleActive(ctx context.Context, id string) (_ bool, err error) {
	defer e.observe("toggle", time.Now(), &err)

	current, err := e.store.Get(ctx, id)
	if err != nil {
		return false, e.fault("toggle", id, false, err)
	}
	release, err := e.acquire(current.Page)
	if err != nil {
		return false, err
	}
	defer release()

	active := !current.Active
	updated, err := e.store.Update(ctx, id, blocks.Patch{Active: &active})
	if err != nil {
		return false, e.fault("toggle", id, false, err)
	}

	e.logger.Info("block visibility changed", "page", current.Page, "block", id, "active", updated.Active)
	e.notify("toggle", current.Page, id)
	return updated.Active, nil
}

// fault classifies a store error. Not-found passes through untouched.
func (e *Engine) fault(op, id string, resync bool, err error) error {
	if errors.Is(err, blocks.ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	return &blocks.PersistenceError{Op: op, BlockID: id, Resync: resync, Err: err}
}

func (e *Engine) notify(op, page string, ids ...string) {
	if e.notifier == nil {
		return
	}
	ev := Event{Op: op, Page: page, BlockIDs: ids}
	if err := e.notifier.PublishJSON(sse.PageChannel(page), EventBlocksChanged, ev); err != nil {
		e.logger.Warn("publish change event failed", "page", page, "error", err)
	}
}

func (e *Engine) observe(op string, start time.Time, errp *error) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveOp(op, Outcome(*errp), time.Since(start))
}

// Outcome names the class of an operation error for metrics and logs.
func Outcome(err error) string {
	var (
		ve *blocks.ValidationError
		pe *blocks.PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, blocks.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &pe):
		return "persistence"
	}
	return "error"
}
