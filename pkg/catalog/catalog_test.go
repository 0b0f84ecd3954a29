package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/blockpage/pkg/db"
)

func TestStaticOrdersByPosition(t *testing.T) {
	s := Static{{ID: "b", Position: 2}, {ID: "a", Position: 1}}

	items, err := s.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", s[0].ID, "source must not be reordered")
}

func TestLimit(t *testing.T) {
	items := []Item{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	assert.Len(t, Limit(items, 0), 3)
	assert.Len(t, Limit(items, 2), 2)
	assert.Len(t, Limit(items, 10), 3)
}

func TestSQLiteListsActiveOnly(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(ctx))

	src, err := NewSQLite(database, Products, nil)
	require.NoError(t, err)

	require.NoError(t, src.Put(ctx, Item{ID: "p2", Name: "Beta", Position: 2}, true))
	require.NoError(t, src.Put(ctx, Item{ID: "p1", Name: "Alpha", Position: 1, Link: "/alpha"}, true))
	require.NoError(t, src.Put(ctx, Item{ID: "p3", Name: "Gone", Position: 0}, false))

	items, err := src.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Item{ID: "p1", Name: "Alpha", Position: 1, Link: "/alpha"}, items[0])
	assert.Equal(t, "p2", items[1].ID)
}

func TestNewSQLiteRejectsUnknownCollection(t *testing.T) {
	_, err := NewSQLite(nil, "users", nil)
	assert.Error(t, err)
}
