// Package db provides SQLite database connection pooling using zombiezen.
// It implements a single writer connection and a reader pool (size N)
// to handle SQLite's single-writer limitation.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DB wraps SQLite connections with separate reader/writer access.
type DB struct {
	path   string
	logger *slog.Logger

	// readerPool for concurrent reads
	readerPool *sqlitex.Pool

	// writerConn is a single connection for writes (SQLite limitation)
	writerConn *sqlite.Conn
	writerMu   sync.Mutex
}

// Config holds database configuration.
type Config struct {
	Path        string
	ReaderCount int
	Logger      *slog.Logger
}

// Open creates the database file if needed and opens the writer connection
// followed by the reader pool.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("open database: empty path")
	}
	if cfg.ReaderCount <= 0 {
		cfg.ReaderCount = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The writer goes first: read-only connections cannot create the file.
	writerConn, err := sqlite.OpenConn(cfg.Path, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open writer conn: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if err := sqlitex.ExecuteTransient(writerConn, pragma, nil); err != nil {
			writerConn.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	readerPool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadOnly | sqlite.OpenWAL,
		PoolSize: cfg.ReaderCount,
	})
	if err != nil {
		writerConn.Close()
		return nil, fmt.Errorf("open reader pool: %w", err)
	}

	cfg.Logger.Debug("database opened", "path", cfg.Path, "readers", cfg.ReaderCount)

	return &DB{
		path:       cfg.Path,
		logger:     cfg.Logger,
		readerPool: readerPool,
		writerConn: writerConn,
	}, nil
}

// Reader gets a read-only connection from the pool.
// The returned function must be called to release the connection.
func (db *DB) Reader(ctx context.Context) (*sqlite.Conn, func(), error) {
	conn, err := db.readerPool.Take(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("take reader: %w", err)
	}
	return conn, func() { db.readerPool.Put(conn) }, nil
}

// Writer gets exclusive access to the writer connection. Statements run on
// it are interrupted when ctx is done.
// The returned function must be called to release the lock.
func (db *DB) Writer(ctx context.Context) (*sqlite.Conn, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("take writer: %w", err)
	}
	db.writerMu.Lock()
	db.writerConn.SetInterrupt(ctx.Done())
	return db.writerConn, func() {
		db.writerConn.SetInterrupt(nil)
		db.writerMu.Unlock()
	}, nil
}

// Close closes all connections.
func (db *DB) Close() error {
	db.writerMu.Lock()
	defer db.writerMu.Unlock()

	var errs []error
	if err := db.readerPool.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.writerConn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close database: %w", errors.Join(errs...))
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
