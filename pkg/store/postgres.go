package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blocks (
	id         TEXT PRIMARY KEY,
	page       TEXT NOT NULL,
	type       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	content    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page, position);

CREATE TABLE IF NOT EXISTS products (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	summary   TEXT NOT NULL DEFAULT '',
	image_ref TEXT NOT NULL DEFAULT '',
	link      TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	active    BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS solutions (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	summary   TEXT NOT NULL DEFAULT '',
	image_ref TEXT NOT NULL DEFAULT '',
	link      TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	active    BOOLEAN NOT NULL DEFAULT TRUE
);
`

// Postgres stores blocks in a PostgreSQL database through lib/pq.
type Postgres struct {
	db      *sql.DB
	decoder Decoder
	logger  *slog.Logger
	now     func() time.Time
}

// PostgresConfig holds Postgres store configuration.
type PostgresConfig struct {
	DB      *sql.DB
	Decoder Decoder
	Logger  *slog.Logger
}

// OpenPostgres opens and pings a PostgreSQL connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

// NewPostgres creates a Postgres store.
func NewPostgres(cfg PostgresConfig) *Postgres {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Postgres{
		db:      cfg.DB,
		decoder: cfg.Decoder,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Migrate creates the blocks, products and solutions tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) scan(row rowScanner) (blocks.Block, error) {
	var (
		b       blocks.Block
		typ     string
		content []byte
	)
	if err := row.Scan(&b.ID, &b.Page, &typ, &b.Position, &b.Active, &content, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return b, err
	}
	b.Type = blocks.Type(typ)
	b.Content = decodeContent(p.decoder, p.logger, b.ID, b.Type, content)
	return b, nil
}

// List returns the blocks of a page.
func (p *Postgres) List(ctx context.Context, page string) ([]blocks.Block, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE page = $1 ORDER BY position, created_at, id`, page)
	if err != nil {
		return nil, fmt.Errorf("list blocks of %s: %w", page, err)
	}
	defer rows.Close()

	var out []blocks.Block
	for rows.Next() {
		b, err := p.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocks of %s: %w", page, err)
	}
	return out, nil
}

// Get returns one block.
func (p *Postgres) Get(ctx context.Context, id string) (*blocks.Block, error) {
	b, err := p.scan(p.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blocks.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}
	return &b, nil
}

// Insert stores a new block.
func (p *Postgres) Insert(ctx context.Context, b *blocks.Block) error {
	content, err := encodeContent(b.Content)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO blocks (`+blockColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.Page, string(b.Type), b.Position, b.Active, content, b.CreatedAt, b.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("insert %s: %w", b.ID, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

// Update applies a patch inside one transaction.
func (p *Postgres) Update(ctx context.Context, id string, patch blocks.Patch) (*blocks.Block, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	b, err := p.scan(tx.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blocks.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}

	patch.Apply(&b)
	b.UpdatedAt = p.now().UTC()
	content, err := encodeContent(b.Content)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE blocks SET type = $1, position = $2, active = $3, content = $4, updated_at = $5 WHERE id = $6`,
		string(b.Type), b.Position, b.Active, content, b.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update block %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update %s: %w", id, err)
	}
	return &b, nil
}

// Remove deletes a block.
func (p *Postgres) Remove(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove block %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove block %s: %w", id, err)
	}
	if n == 0 {
		return blocks.NotFound(id)
	}
	return nil
}

// SwapPositions exchanges the positions of two blocks in one transaction.
func (p *Postgres) SwapPositions(ctx context.Context, a, b string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback()

	positions := make(map[string]int, 2)
	for _, id := range []string{a, b} {
		var pos int
		err := tx.QueryRowContext(ctx, `SELECT position FROM blocks WHERE id = $1 FOR UPDATE`, id).Scan(&pos)
		if errors.Is(err, sql.ErrNoRows) {
			return blocks.NotFound(id)
		}
		if err != nil {
			return fmt.Errorf("lock block %s: %w", id, err)
		}
		positions[id] = pos
	}

	now := p.now().UTC()
	for _, u := range []struct {
		id       string
		position int
	}{{a, positions[b]}, {b, positions[a]}} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE blocks SET position = $1, updated_at = $2 WHERE id = $3`, u.position, now, u.id); err != nil {
			return fmt.Errorf("swap block %s: %w", u.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}
