package db

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite/sqlitex"
)

// schema creates the tables of a block page database. Statements are
// idempotent so Migrate can run on every start.
const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	id         TEXT PRIMARY KEY,
	page       TEXT NOT NULL,
	type       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	content    TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page, position);

CREATE TABLE IF NOT EXISTS products (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	summary   TEXT NOT NULL DEFAULT '',
	image_ref TEXT NOT NULL DEFAULT '',
	link      TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	active    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS solutions (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	summary   TEXT NOT NULL DEFAULT '',
	image_ref TEXT NOT NULL DEFAULT '',
	link      TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	active    INTEGER NOT NULL DEFAULT 1
);
`

// Migrate creates the blocks, products and solutions tables.
func (db *DB) Migrate(ctx context.Context) error {
	conn, release, err := db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db.logger.Info("schema migrated", "path", db.path)
	return nil
}

// Optimize checkpoints the WAL and refreshes the query planner statistics.
func (db *DB) Optimize(ctx context.Context) error {
	conn, release, err := db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()

	for _, pragma := range []string{
		"PRAGMA wal_checkpoint(TRUNCATE);",
		"PRAGMA optimize;",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("optimize %s: %w", db.path, err)
		}
	}
	db.logger.Debug("database optimized", "path", db.path)
	return nil
}
