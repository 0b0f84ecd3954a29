package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/blockpage/pkg/db"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Collection names a listing table.
type Collection string

const (
	Products  Collection = "products"
	Solutions Collection = "solutions"
)

// SQLite reads a collection table created by db.Migrate.
type SQLite struct {
	db         *db.DB
	collection Collection
	logger     *slog.Logger
}

// NewSQLite returns a Source over the given collection.
func NewSQLite(database *db.DB, c Collection, logger *slog.Logger) (*SQLite, error) {
	if c != Products && c != Solutions {
		return nil, fmt.Errorf("new catalog source: unknown collection %q", c)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{db: database, collection: c, logger: logger}, nil
}

// ListActive returns the active rows ordered by position then name.
func (s *SQLite) ListActive(ctx context.Context) ([]Item, error) {
	conn, release, err := s.db.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// The table name comes from the closed Collection set.
	query := fmt.Sprintf(`SELECT id, name, summary, image_ref, link, position
		FROM %s WHERE active = 1 ORDER BY position, name`, s.collection)

	var items []Item
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			items = append(items, Item{
				ID:       stmt.ColumnText(0),
				Name:     stmt.ColumnText(1),
				Summary:  stmt.ColumnText(2),
				ImageRef: stmt.ColumnText(3),
				Link:     stmt.ColumnText(4),
				Position: stmt.ColumnInt(5),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collection, err)
	}
	s.logger.Debug("catalog listed", "collection", s.collection, "count", len(items))
	return items, nil
}

// Put inserts or replaces an item.
func (s *SQLite) Put(ctx context.Context, item Item, active bool) error {
	conn, release, err := s.db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, name, summary, image_ref, link, position, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.collection)
	var flag int64
	if active {
		flag = 1
	}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{item.ID, item.Name, item.Summary, item.ImageRef, item.Link, item.Position, flag},
	})
	if err != nil {
		return fmt.Errorf("put %s %s: %w", s.collection, item.ID, err)
	}
	return nil
}
