package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/db"
)

const blockColumns = `id, page, type, position, active, content, created_at, updated_at`

// SQLite stores blocks in the table created by db.Migrate.
type SQLite struct {
	db      *db.DB
	decoder Decoder
	logger  *slog.Logger
	now     func() time.Time
}

// SQLiteConfig holds SQLite store configuration.
type SQLiteConfig struct {
	DB      *db.DB
	Decoder Decoder
	Logger  *slog.Logger
}

// NewSQLite creates a SQLite store.
func NewSQLite(cfg SQLiteConfig) *SQLite {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SQLite{
		db:      cfg.DB,
		decoder: cfg.Decoder,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

func (s *SQLite) scan(stmt *sqlite.Stmt) (blocks.Block, error) {
	b := blocks.Block{
		ID:       stmt.ColumnText(0),
		Page:     stmt.ColumnText(1),
		Type:     blocks.Type(stmt.ColumnText(2)),
		Position: stmt.ColumnInt(3),
		Active:   stmt.ColumnInt64(4) != 0,
	}
	b.Content = decodeContent(s.decoder, s.logger, b.ID, b.Type, []byte(stmt.ColumnText(5)))

	var err error
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, stmt.ColumnText(6)); err != nil {
		return b, fmt.Errorf("parse created_at of %s: %w", b.ID, err)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, stmt.ColumnText(7)); err != nil {
		return b, fmt.Errorf("parse updated_at of %s: %w", b.ID, err)
	}
	return b, nil
}

func (s *SQLite) get(conn *sqlite.Conn, id string) (*blocks.Block, error) {
	var found *blocks.Block
	err := sqlitex.Execute(conn, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			b, err := s.scan(stmt)
			if err != nil {
				return err
			}
			found = &b
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", id, err)
	}
	if found == nil {
		return nil, blocks.NotFound(id)
	}
	return found, nil
}

// List returns the blocks of a page.
func (s *SQLite) List(ctx context.Context, page string) ([]blocks.Block, error) {
	conn, release, err := s.db.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []blocks.Block
	err = sqlitex.Execute(conn,
		`SELECT `+blockColumns+` FROM blocks WHERE page = ? ORDER BY position, created_at, id`,
		&sqlitex.ExecOptions{
			Args: []any{page},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				b, err := s.scan(stmt)
				if err != nil {
					return err
				}
				out = append(out, b)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list blocks of %s: %w", page, err)
	}
	return out, nil
}

// Get returns one block.
func (s *SQLite) Get(ctx context.Context, id string) (*blocks.Block, error) {
	conn, release, err := s.db.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.get(conn, id)
}

// Insert stores a new block.
func (s *SQLite) Insert(ctx context.Context, b *blocks.Block) error {
	content, err := encodeContent(b.Content)
	if err != nil {
		return err
	}
	conn, release, err := s.db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = sqlitex.Execute(conn,
		`INSERT INTO blocks (`+blockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			b.ID, b.Page, string(b.Type), b.Position, boolInt(b.Active), string(content),
			formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
		}})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
		return fmt.Errorf("insert %s: %w", b.ID, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

// Update applies a patch inside one savepoint.
func (s *SQLite) Update(ctx context.Context, id string, p blocks.Patch) (_ *blocks.Block, err error) {
	conn, release, err := s.db.Writer(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	defer sqlitex.Save(conn)(&err)

	b, err := s.get(conn, id)
	if err != nil {
		return nil, err
	}
	p.Apply(b)
	b.UpdatedAt = s.now().UTC()

	content, err := encodeContent(b.Content)
	if err != nil {
		return nil, err
	}
	err = sqlitex.Execute(conn,
		`UPDATE blocks SET type = ?, position = ?, active = ?, content = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{
			string(b.Type), b.Position, boolInt(b.Active), string(content), formatTime(b.UpdatedAt), id,
		}})
	if err != nil {
		return nil, fmt.Errorf("update block %s: %w", id, err)
	}
	return b, nil
}

// Remove deletes a block.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	conn, release, err := s.db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := sqlitex.Execute(conn, `DELETE FROM blocks WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
		return fmt.Errorf("remove block %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return blocks.NotFound(id)
	}
	return nil
}

// SwapPositions exchanges the positions of two blocks in one savepoint.
func (s *SQLite) SwapPositions(ctx context.Context, a, b string) (err error) {
	conn, release, err := s.db.Writer(ctx)
	if err != nil {
		return err
	}
	defer release()
	defer sqlitex.Save(conn)(&err)

	first, err := s.get(conn, a)
	if err != nil {
		return err
	}
	second, err := s.get(conn, b)
	if err != nil {
		return err
	}

	now := formatTime(s.now())
	for _, u := range []struct {
		id       string
		position int
	}{{a, second.Position}, {b, first.Position}} {
		err = sqlitex.Execute(conn, `UPDATE blocks SET position = ?, updated_at = ? WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{u.position, now, u.id}})
		if err != nil {
			return fmt.Errorf("swap block %s: %w", u.id, err)
		}
	}
	return nil
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
