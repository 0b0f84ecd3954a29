package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/catalog"
	"github.com/hazyhaar/blockpage/pkg/registry"
	"github.com/hazyhaar/blockpage/pkg/render"
	"github.com/hazyhaar/blockpage/pkg/session"
	"github.com/hazyhaar/blockpage/pkg/store"
)

// flakyStore fails updates of selected ids.
type flakyStore struct {
	*store.Memory
	mu         sync.Mutex
	failUpdate map[string]error
	updates    []string
}

func (s *flakyStore) Update(ctx context.Context, id string, p blocks.Patch) (*blocks.Block, error) {
	s.mu.Lock()
	s.updates = append(s.updates, id)
	err := s.failUpdate[id]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Memory.Update(ctx, id, p)
}

// swappingStore adds an atomic swap that can be made to fail.
type swappingStore struct {
	*store.Memory
	err   error
	calls int
}

func (s *swappingStore) SwapPositions(ctx context.Context, a, b string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	first, err := s.Get(ctx, a)
	if err != nil {
		return err
	}
	second, err := s.Get(ctx, b)
	if err != nil {
		return err
	}
	if _, err := s.Memory.Update(ctx, a, blocks.Patch{Position: &second.Position}); err != nil {
		return err
	}
	_, err = s.Memory.Update(ctx, b, blocks.Patch{Position: &first.Position})
	return err
}

// blockingStore parks Insert until released.
type blockingStore struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Insert(ctx context.Context, b *blocks.Block) error {
	close(s.entered)
	<-s.release
	return s.Memory.Insert(ctx, b)
}

// racingStore runs onGet once, right after the first read of id returns.
type racingStore struct {
	*store.Memory
	id    string
	fired bool
	onGet func()
}

func (s *racingStore) Get(ctx context.Context, id string) (*blocks.Block, error) {
	b, err := s.Memory.Get(ctx, id)
	if id == s.id && !s.fired {
		s.fired = true
		s.onGet()
	}
	return b, err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) PublishJSON(channel, eventType string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, data.(Event))
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveOp(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string][]string)
	}
	o.outcomes[op] = append(o.outcomes[op], outcome)
}

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func textBlock(id string, pos int, active bool) *blocks.Block {
	return &blocks.Block{ID: id, Page: "home", Type: blocks.TypeText, Position: pos, Active: active,
		Content: &blocks.TextContent{Body: id}, CreatedAt: t0, UpdatedAt: t0}
}

func seed(t *testing.T, s store.Store, bs ...*blocks.Block) {
	t.Helper()
	for _, b := range bs {
		require.NoError(t, s.Insert(context.Background(), b))
	}
}

func positions(t *testing.T, e *Engine) map[string]int {
	t.Helper()
	list, err := e.List(context.Background(), "home")
	require.NoError(t, err)
	out := make(map[string]int, len(list))
	for _, b := range list {
		out[b.ID] = b.Position
	}
	return out
}

func newEngine(s store.Store) (*Engine, *recordingNotifier, *recordingObserver) {
	n := &recordingNotifier{}
	o := &recordingObserver{}
	return New(Config{Store: s, Notifier: n, Observer: o, Now: func() time.Time { return t0.Add(time.Hour) }}), n, o
}

func TestNewHeroBlockScenario(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 0, true), textBlock("b", 1, true))
	e, _, _ := newEngine(mem)

	r, err := render.New(render.Config{})
	require.NoError(t, err)
	reg, err := registry.Builtin(r, nil)
	require.NoError(t, err)

	s := session.New("s", "home", reg)
	require.NoError(t, s.StartCreate(blocks.TypeHero))
	require.NoError(t, s.SetField("title", "Launch"))
	require.NoError(t, s.SetField("subtitle", "Now"))
	saved, err := s.Save(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, 2, saved.Position)
	assert.Equal(t, blocks.TypeHero, saved.Type)
	assert.True(t, saved.Active)

	want, err := reg.CreateDefault(blocks.TypeHero)
	require.NoError(t, err)
	hero := want.(*blocks.HeroContent)
	hero.Title, hero.Subtitle = "Launch", "Now"

	stored, err := e.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, hero, stored.Content)
}

func TestValidationBlocksSaveScenario(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 0, true))
	e, n, _ := newEngine(mem)

	r, err := render.New(render.Config{})
	require.NoError(t, err)
	reg, err := registry.Builtin(r, nil)
	require.NoError(t, err)

	s := session.New("s", "home", reg)
	require.NoError(t, s.StartCreate(blocks.TypeText))
	_, err = s.Save(ctx, e)

	var ve *blocks.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has("body"))

	list, err := e.List(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Empty(t, n.events)
}

func TestReorderDownScenario(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("A", 0, true), textBlock("B", 1, true), textBlock("C", 2, true))
	e, n, _ := newEngine(mem)

	require.NoError(t, e.Swap(ctx, "A", "B"))
	assert.Equal(t, map[string]int{"B": 0, "A": 1, "C": 2}, positions(t, e))

	r, err := render.New(render.Config{})
	require.NoError(t, err)
	reg, err := registry.Builtin(r, nil)
	require.NoError(t, err)
	composer := render.NewComposer(render.ComposerConfig{
		Dispatcher: render.NewDispatcher(render.DispatcherConfig{Lookup: reg, Renderer: r}),
		Products:   catalog.Static{},
	})
	list, err := e.List(ctx, "home")
	require.NoError(t, err)
	outs, err := composer.Compose(ctx, list, &render.PageData{})
	require.NoError(t, err)

	var order []string
	for _, o := range outs {
		order = append(order, o.BlockID)
	}
	assert.Equal(t, []string{"B", "A", "C"}, order)

	require.Len(t, n.events, 1)
	assert.Equal(t, Event{Op: "swap", Page: "home", BlockIDs: []string{"A", "B"}}, n.events[0])
}

func TestCreatePositions(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e, _, _ := newEngine(mem)

	first, err := e.Create(ctx, "home", blocks.TypeText, &blocks.TextContent{Body: "x"}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, t0.Add(time.Hour), first.CreatedAt)

	seed(t, mem, textBlock("hidden", 7, false))
	next, err := e.Create(ctx, "home", blocks.TypeText, &blocks.TextContent{Body: "y"}, false)
	require.NoError(t, err)
	assert.Equal(t, 8, next.Position, "inactive blocks count toward the next position")
	assert.False(t, next.Active)
}

func TestCreateRejectsMismatchedContent(t *testing.T) {
	e, _, _ := newEngine(store.NewMemory())
	_, err := e.Create(context.Background(), "home", blocks.TypeHero, &blocks.TextContent{Body: "x"}, true)
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestUpdateNeverMovesBlock(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 3, true))
	e, _, _ := newEngine(mem)

	pos := 0
	updated, err := e.Update(ctx, "a", blocks.Patch{Position: &pos, Content: &blocks.TextContent{Body: "new"}})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Position)
	assert.Equal(t, "new", updated.Content.(*blocks.TextContent).Body)

	hero := blocks.TypeHero
	_, err = e.Update(ctx, "a", blocks.Patch{Type: &hero})
	assert.True(t, errors.Is(err, ErrMismatch))

	_, err = e.Update(ctx, "missing", blocks.Patch{Content: &blocks.TextContent{Body: "x"}})
	assert.True(t, errors.Is(err, blocks.ErrNotFound))
}

func TestRemoveLeavesGaps(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 0, true), textBlock("b", 1, true), textBlock("c", 2, true))
	e, _, _ := newEngine(mem)

	require.NoError(t, e.Remove(ctx, "b"))
	assert.Equal(t, map[string]int{"a": 0, "c": 2}, positions(t, e))
	assert.True(t, errors.Is(e.Remove(ctx, "b"), blocks.ErrNotFound))
}

func TestToggleActive(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 0, true))
	e, _, o := newEngine(mem)

	active, err := e.ToggleActive(ctx, "a")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = e.ToggleActive(ctx, "a")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = e.ToggleActive(ctx, "missing")
	assert.True(t, errors.Is(err, blocks.ErrNotFound))
	assert.Equal(t, []string{"ok", "ok", "not_found"}, o.outcomes["toggle"])
}

func TestSwapRollsBackFirstHalf(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Memory: store.NewMemory(), failUpdate: map[string]error{"b": errors.New("timeout")}}
	seed(t, flaky, textBlock("a", 0, true), textBlock("b", 1, true))
	e, n, o := newEngine(flaky)

	err := e.Swap(ctx, "a", "b")

	var pe *blocks.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Resync)
	assert.Equal(t, []string{"a", "b", "a"}, flaky.updates)
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, positions(t, e))
	assert.Empty(t, n.events)
	assert.Equal(t, []string{"persistence"}, o.outcomes["swap"])
}

func TestSwapUsesAtomicStore(t *testing.T) {
	ctx := context.Background()
	sw := &swappingStore{Memory: store.NewMemory()}
	seed(t, sw, textBlock("a", 0, true), textBlock("b", 1, true))
	e, _, _ := newEngine(sw)

	require.NoError(t, e.Swap(ctx, "a", "b"))
	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, positions(t, e))

	sw.err = errors.New("serialization failure")
	var pe *blocks.PersistenceError
	require.True(t, errors.As(e.Swap(ctx, "a", "b"), &pe))
	assert.True(t, pe.Resync)
}

func TestSwapReadsPositionsUnderPageGuard(t *testing.T) {
	ctx := context.Background()
	racing := &racingStore{Memory: store.NewMemory(), id: "b"}
	seed(t, racing, textBlock("a", 0, true), textBlock("b", 1, true), textBlock("c", 2, true))
	e, _, _ := newEngine(racing)

	var competing error
	racing.onGet = func() { competing = e.Swap(ctx, "b", "c") }

	require.NoError(t, e.Swap(ctx, "a", "b"))

	got := positions(t, e)
	seen := make(map[int]string, len(got))
	for id, pos := range got {
		other, dup := seen[pos]
		assert.False(t, dup, "%s and %s share position %d", id, other, pos)
		seen[pos] = id
	}
	assert.True(t, errors.Is(competing, ErrBusy))
	assert.Equal(t, map[string]int{"a": 1, "b": 0, "c": 2}, got)
}

func TestSwapLogsIDsOnly(t *testing.T) {
	ctx := context.Background()
	sw := &swappingStore{Memory: store.NewMemory()}
	seed(t, sw, textBlock("a", 0, true), textBlock("b", 1, true))
	var out bytes.Buffer
	e := New(Config{Store: sw, Logger: slog.New(slog.NewTextHandler(&out, nil))})

	require.NoError(t, e.Swap(ctx, "a", "b"))
	assert.Contains(t, out.String(), `msg="blocks swapped" page=home a=a b=b`)
	assert.NotContains(t, out.String(), "position")
}

func TestSwapRejectsBadPairs(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	other := textBlock("x", 0, true)
	other.Page = "about"
	seed(t, mem, textBlock("a", 0, true), other)
	e, _, _ := newEngine(mem)

	assert.True(t, errors.Is(e.Swap(ctx, "a", "x"), ErrCrossPage))
	assert.True(t, errors.Is(e.Swap(ctx, "a", "missing"), blocks.ErrNotFound))
	assert.NoError(t, e.Swap(ctx, "a", "a"))
}

func TestMoveSkipsHiddenNeighbours(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem, textBlock("a", 0, true), textBlock("hidden", 1, false), textBlock("c", 2, true))
	e, _, _ := newEngine(mem)

	require.NoError(t, e.MoveUp(ctx, "c"))
	assert.Equal(t, map[string]int{"c": 0, "hidden": 1, "a": 2}, positions(t, e))

	require.NoError(t, e.MoveUp(ctx, "c"), "first block stays put")
	require.NoError(t, e.MoveDown(ctx, "a"), "last block stays put")
	assert.Equal(t, map[string]int{"c": 0, "hidden": 1, "a": 2}, positions(t, e))

	require.NoError(t, e.MoveDown(ctx, "hidden"))
	assert.Equal(t, map[string]int{"c": 0, "a": 1, "hidden": 2}, positions(t, e))

	assert.True(t, errors.Is(e.MoveDown(ctx, "missing"), blocks.ErrNotFound))
}

func TestSecondWriteOnBusyPageFailsFast(t *testing.T) {
	ctx := context.Background()
	bs := &blockingStore{Memory: store.NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	e, _, _ := newEngine(bs)

	done := make(chan error, 1)
	go func() {
		_, err := e.Create(ctx, "home", blocks.TypeText, &blocks.TextContent{Body: "x"}, true)
		done <- err
	}()
	<-bs.entered

	_, err := e.Create(ctx, "home", blocks.TypeText, &blocks.TextContent{Body: "y"}, true)
	assert.True(t, errors.Is(err, ErrBusy))

	seed(t, bs.Memory, &blocks.Block{ID: "other", Page: "about", Type: blocks.TypeText,
		Content: &blocks.TextContent{Body: "z"}})
	_, err = e.ToggleActive(ctx, "other")
	assert.NoError(t, err, "other pages are not blocked")

	close(bs.release)
	require.NoError(t, <-done)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(blocks.NotFound("x")))
	assert.Equal(t, "busy", Outcome(ErrBusy))
	assert.Equal(t, "invalid", Outcome(&blocks.ValidationError{}))
	assert.Equal(t, "persistence", Outcome(&blocks.PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
