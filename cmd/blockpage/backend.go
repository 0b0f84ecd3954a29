package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/blockpage/pkg/catalog"
	"github.com/hazyhaar/blockpage/pkg/config"
	"github.com/hazyhaar/blockpage/pkg/db"
	"github.com/hazyhaar/blockpage/pkg/store"
)

// backend is the opened storage of a configuration.
type backend struct {
	store     store.Store
	products  catalog.Source
	solutions catalog.Source

	// sqlite is nil with the postgres driver.
	sqlite *db.DB
	closer func() error
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// openBackend opens and migrates the configured database.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, dec store.Decoder, logger *slog.Logger) (*backend, error) {
	switch cfg.Driver {
	case "postgres":
		conn, err := store.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(store.PostgresConfig{DB: conn, Decoder: dec, Logger: logger})
		if err := pg.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		products, err := catalog.NewPostgres(conn, catalog.Products, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		solutions, err := catalog.NewPostgres(conn, catalog.Solutions, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		logger.Info("using postgres block store")
		return &backend{
			store:     pg,
			products:  products,
			solutions: solutions,
			closer:    conn.Close,
		}, nil

	case "sqlite":
		database, err := db.Open(db.Config{Path: cfg.Path, ReaderCount: cfg.Readers, Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		products, err := catalog.NewSQLite(database, catalog.Products, logger)
		if err != nil {
			database.Close()
			return nil, err
		}
		solutions, err := catalog.NewSQLite(database, catalog.Solutions, logger)
		if err != nil {
			database.Close()
			return nil, err
		}
		logger.Info("using sqlite block store", "path", cfg.Path)
		return &backend{
			store:     store.NewSQLite(store.SQLiteConfig{DB: database, Decoder: dec, Logger: logger}),
			products:  products,
			solutions: solutions,
			sqlite:    database,
			closer:    database.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
