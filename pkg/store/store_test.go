package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/cache"
	"github.com/hazyhaar/blockpage/pkg/db"
)

// heroDecoder knows hero and text blocks only.
type heroDecoder struct{}

func (heroDecoder) Decode(t blocks.Type, raw []byte) (blocks.Content, error) {
	var c blocks.Content
	switch t {
	case blocks.TypeHero:
		c = &blocks.HeroContent{}
	case blocks.TypeText:
		c = &blocks.TextContent{}
	default:
		return &blocks.UnknownContent{Tag: t, Raw: raw}, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func hero(id, page string, pos int, active bool) *blocks.Block {
	return &blocks.Block{
		ID: id, Page: page, Type: blocks.TypeHero, Position: pos, Active: active,
		Content:   &blocks.HeroContent{Title: "T-" + id, Subtitle: "S"},
		CreatedAt: t0, UpdatedAt: t0,
	}
}

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "blocks.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(ctx))
	return NewSQLite(SQLiteConfig{DB: database, Decoder: heroDecoder{}})
}

func stores(t *testing.T) map[string]Store {
	enabled := cache.New(cache.Config{Enabled: true})
	return map[string]Store{
		"memory":        NewMemory(),
		"sqlite":        newSQLiteStore(t),
		"cached-memory": NewCached(NewMemory(), enabled),
		"cached-sqlite": NewCached(newSQLiteStore(t), cache.New(cache.Config{Enabled: true})),
	}
}

func ids(bs []blocks.Block) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Insert(ctx, hero("b", "home", 1, true)))
			require.NoError(t, s.Insert(ctx, hero("a", "home", 0, true)))
			require.NoError(t, s.Insert(ctx, hero("off", "home", 2, false)))
			require.NoError(t, s.Insert(ctx, hero("x", "about", 0, true)))

			err := s.Insert(ctx, hero("a", "home", 5, true))
			assert.True(t, errors.Is(err, ErrExists), "duplicate insert: %v", err)

			list, err := s.List(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "off"}, ids(list))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, &blocks.HeroContent{Title: "T-a", Subtitle: "S"}, got.Content)
			assert.True(t, got.CreatedAt.Equal(t0))

			inactive := false
			updated, err := s.Update(ctx, "a", blocks.Patch{
				Active:  &inactive,
				Content: &blocks.HeroContent{Title: "New", Subtitle: "S"},
			})
			require.NoError(t, err)
			assert.False(t, updated.Active)
			assert.Equal(t, 0, updated.Position)
			assert.True(t, updated.UpdatedAt.After(t0))

			list, err = s.List(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, "New", list[0].Content.(*blocks.HeroContent).Title)

			_, err = s.Update(ctx, "missing", blocks.Patch{Active: &inactive})
			assert.True(t, errors.Is(err, blocks.ErrNotFound))

			require.NoError(t, s.Remove(ctx, "b"))
			assert.True(t, errors.Is(s.Remove(ctx, "b"), blocks.ErrNotFound))
			_, err = s.Get(ctx, "b")
			assert.True(t, errors.Is(err, blocks.ErrNotFound))

			list, err = s.List(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "off"}, ids(list))
		})
	}
}

func TestStoreSwapPositions(t *testing.T) {
	for name, s := range stores(t) {
		sw, ok := s.(Swapper)
		if !ok {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, hero("a", "home", 0, true)))
			require.NoError(t, s.Insert(ctx, hero("b", "home", 1, true)))

			_, err := s.List(ctx, "home")
			require.NoError(t, err)
			require.NoError(t, sw.SwapPositions(ctx, "a", "b"))

			list, err := s.List(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a"}, ids(list))

			err = sw.SwapPositions(ctx, "a", "missing")
			assert.True(t, errors.Is(err, blocks.ErrNotFound))

			list, err = s.List(ctx, "home")
			require.NoError(t, err)
			assert.Equal(t, 1, list[1].Position, "failed swap must roll back")
		})
	}
}

func TestMemoryIsNotSwapper(t *testing.T) {
	_, ok := NewCached(NewMemory(), cache.New(cache.Config{})).(Swapper)
	assert.False(t, ok)
	_, ok = NewCached(newSQLiteStore(t), cache.New(cache.Config{})).(Swapper)
	assert.True(t, ok)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Insert(ctx, hero("a", "home", 0, true)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.Content.(*blocks.HeroContent).Title = "mutated"

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "T-a", again.Content.(*blocks.HeroContent).Title)
}

func TestSQLiteKeepsUndecodableContent(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	legacy := &blocks.Block{ID: "l", Page: "home", Type: "carousel", Active: true,
		Content: &blocks.UnknownContent{Tag: "carousel", Raw: json.RawMessage(`{"slides":3}`)},
		CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, s.Insert(ctx, legacy))

	broken := hero("h", "home", 1, true)
	require.NoError(t, s.Insert(ctx, broken))
	conn, release, err := s.db.Writer(ctx)
	require.NoError(t, err)
	err = sqlitex.ExecuteTransient(conn, `UPDATE blocks SET content = '{"title": 7}' WHERE id = 'h'`, nil)
	release()
	require.NoError(t, err)

	list, err := s.List(ctx, "home")
	require.NoError(t, err)
	require.Len(t, list, 2)

	unknown, ok := list[0].Content.(*blocks.UnknownContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"slides":3}`, string(unknown.Raw))

	kept, ok := list[1].Content.(*blocks.UnknownContent)
	require.True(t, ok, "undecodable hero must be kept as unknown content")
	assert.Equal(t, blocks.TypeHero, kept.Tag)
}

func TestCachedListIsInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.Config{Enabled: true})
	s := NewCached(NewMemory(), c)

	require.NoError(t, s.Insert(ctx, hero("a", "home", 0, true)))
	_, err := s.List(ctx, "home")
	require.NoError(t, err)
	_, err = s.List(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.GetStats().Hits)

	require.NoError(t, s.Insert(ctx, hero("b", "home", 1, true)))
	list, err := s.List(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(list))

	require.NoError(t, s.Remove(ctx, "a"))
	list, err = s.List(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(list))
}
