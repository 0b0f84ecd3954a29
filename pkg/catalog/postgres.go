package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Postgres reads a collection table created by store.Postgres.Migrate.
type Postgres struct {
	db         *sql.DB
	collection Collection
	logger     *slog.Logger
}

// NewPostgres returns a Source over the given collection.
func NewPostgres(conn *sql.DB, c Collection, logger *slog.Logger) (*Postgres, error) {
	if c != Products && c != Solutions {
		return nil, fmt.Errorf("new catalog source: unknown collection %q", c)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: conn, collection: c, logger: logger}, nil
}

// ListActive returns the active rows ordered by position then name.
func (p *Postgres) ListActive(ctx context.Context) ([]Item, error) {
	// The table name comes from the closed Collection set.
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, name, summary, image_ref, link, position
		FROM %s WHERE active ORDER BY position, name`, p.collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.collection, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Summary, &it.ImageRef, &it.Link, &it.Position); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.collection, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", p.collection, err)
	}
	p.logger.Debug("catalog listed", "collection", p.collection, "count", len(items))
	return items, nil
}

// Put inserts or replaces an item.
func (p *Postgres) Put(ctx context.Context, item Item, active bool) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, name, summary, image_ref, link, position, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, summary = EXCLUDED.summary,
			image_ref = EXCLUDED.image_ref, link = EXCLUDED.link,
			position = EXCLUDED.position, active = EXCLUDED.active`, p.collection),
		item.ID, item.Name, item.Summary, item.ImageRef, item.Link, item.Position, active)
	if err != nil {
		return fmt.Errorf("put %s %s: %w", p.collection, item.ID, err)
	}
	return nil
}
