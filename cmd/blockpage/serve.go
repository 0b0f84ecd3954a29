package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/blockpage/pkg/admin"
	"github.com/hazyhaar/blockpage/pkg/cache"
	"github.com/hazyhaar/blockpage/pkg/config"
	"github.com/hazyhaar/blockpage/pkg/engine"
	"github.com/hazyhaar/blockpage/pkg/gc"
	"github.com/hazyhaar/blockpage/pkg/media"
	"github.com/hazyhaar/blockpage/pkg/metrics"
	"github.com/hazyhaar/blockpage/pkg/registry"
	"github.com/hazyhaar/blockpage/pkg/render"
	"github.com/hazyhaar/blockpage/pkg/server"
	"github.com/hazyhaar/blockpage/pkg/session"
	"github.com/hazyhaar/blockpage/pkg/sse"
	"github.com/hazyhaar/blockpage/pkg/store"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := render.New(render.Config{TemplatesDir: cfg.Templates.Dir, Logger: logger})
	if err != nil {
		return err
	}
	if cfg.Templates.Watch {
		go func() {
			if err := r.Watch(ctx); err != nil {
				logger.Error("template watcher stopped", "error", err)
			}
		}()
	}

	reg, err := registry.Builtin(r, logger)
	if err != nil {
		return err
	}
	fallback, err := registry.DefaultComposition(reg)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg.Database, reg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	m := metrics.New()
	c := cache.New(cache.Config{
		TTL:        cfg.Cache.TTL.Duration,
		MaxEntries: cfg.Cache.MaxEntries,
		Enabled:    cfg.Cache.Enabled,
		Logger:     logger,
	})
	m.WatchCache(c)

	hub := sse.NewHub(logger)
	defer hub.Close()

	eng := engine.New(engine.Config{
		Store:    store.NewCached(b.store, c),
		Notifier: hub,
		Observer: m,
		Logger:   logger,
	})
	dispatcher := render.NewDispatcher(render.DispatcherConfig{
		Lookup:   reg,
		Renderer: r,
		Observer: m,
		Logger:   logger,
	})
	composer := render.NewComposer(render.ComposerConfig{
		Dispatcher: dispatcher,
		Fallback:   fallback,
		Products:   b.products,
		Solutions:  b.solutions,
		Logger:     logger,
	})
	sessions := session.NewManager(session.ManagerConfig{
		Defaults: reg,
		Observer: m,
		Logger:   logger,
	})

	uploader, mediaHandler, err := openMedia(ctx, cfg.Media, logger)
	if err != nil {
		return err
	}

	svc := admin.New(admin.Config{
		Sessions: sessions,
		Engine:   eng,
		Registry: reg,
		Composer: composer,
		Uploader: uploader,
		Observer: m,
		Logger:   logger,
	})

	gcCfg := gc.Config{
		Schedule: cfg.Sessions.Schedule,
		MaxIdle:  cfg.Sessions.MaxIdle.Duration,
		Sessions: sessions,
		Logger:   logger,
	}
	if b.sqlite != nil {
		gcCfg.Optimizer = b.sqlite
	}
	collector, err := gc.New(gcCfg)
	if err != nil {
		return err
	}
	collector.Start()

	srv := server.New(server.Config{
		Admin:    svc,
		Engine:   eng,
		Composer: composer,
		Renderer: r,
		Events:   hub,
		Media:    mediaHandler,
		Metrics:  m.Handler(),
		Observer: m,
		GC:       collector,
		Title:    cfg.Server.Title,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open event streams would hold Shutdown until the timeout.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("shutdown error", "error", err)
	}
	collector.Stop(shutdownCtx)

	logger.Info("server stopped")
	return nil
}

// openMedia returns the configured uploader and, for local storage, the
// handler serving the files.
func openMedia(ctx context.Context, cfg config.MediaConfig, logger *slog.Logger) (media.Uploader, http.Handler, error) {
	switch cfg.Backend {
	case "s3":
		s3cfg := cfg.S3
		s3cfg.Logger = logger
		up, err := media.NewS3(ctx, s3cfg)
		if err != nil {
			return nil, nil, err
		}
		return up, nil, nil
	default:
		local, err := media.NewLocal(media.LocalConfig{Dir: cfg.Dir, BaseURL: cfg.BaseURL, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return local, local.Handler(), nil
	}
}

