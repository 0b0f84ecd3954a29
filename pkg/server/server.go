// Package server provides the HTTP server for block pages: the public
// pages, the admin JSON API and its live event stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/blockpage/pkg/admin"
	"github.com/hazyhaar/blockpage/pkg/engine"
	"github.com/hazyhaar/blockpage/pkg/gc"
	"github.com/hazyhaar/blockpage/pkg/render"
)

// HomePage is the page served at "/".
const HomePage = "home"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// RequestObserver records HTTP requests.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// Server is the blockpage HTTP server.
type Server struct {
	router   *chi.Mux
	http     *http.Server
	admin    *admin.Service
	engine   *engine.Engine
	composer *render.Composer
	renderer *render.Renderer
	events   http.Handler
	media    http.Handler
	metrics  http.Handler
	observer RequestObserver
	gc       *gc.GC
	title    string
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Admin    *admin.Service
	Engine   *engine.Engine
	Composer *render.Composer
	Renderer *render.Renderer

	// Events streams page change events; usually an *sse.Hub.
	Events http.Handler

	// Media serves uploaded files under /media/. Optional.
	Media http.Handler

	// Metrics serves /metrics. Optional.
	Metrics  http.Handler
	Observer RequestObserver

	GC     *gc.GC
	Title  string
	Logger *slog.Logger
}

// New creates a new server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		router:   chi.NewRouter(),
		admin:    cfg.Admin,
		engine:   cfg.Engine,
		composer: cfg.Composer,
		renderer: cfg.Renderer,
		events:   cfg.Events,
		media:    cfg.Media,
		metrics:  cfg.Metrics,
		observer: cfg.Observer,
		gc:       cfg.GC,
		title:    cfg.Title,
		logger:   cfg.Logger,
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the router.
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	if s.media != nil {
		r.Handle("/media/*", http.StripPrefix("/media/", s.media))
	}

	r.Route("/admin", func(r chi.Router) {
		if s.events != nil {
			r.Handle("/events", s.events)
		}
		r.Get("/types", s.handleTypes)
		r.Get("/types/{type}/schema", s.handleSchema)
		r.Get("/pages/{page}/blocks", s.handlePageBlocks)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Route("/{session}", func(r chi.Router) {
				r.Get("/", s.handleDraft)
				r.Delete("/", s.handleEndSession)
				r.Post("/create", s.handleStartCreate)
				r.Post("/edit", s.handleStartEdit)
				r.Post("/type", s.handleSetType)
				r.Post("/field", s.handleSetField)
				r.Post("/active", s.handleSetActive)
				r.Post("/cancel", s.handleCancel)
				r.Post("/save", s.handleSave)
				r.Get("/preview", s.handlePreview)
			})
		})

		r.Route("/blocks", func(r chi.Router) {
			r.Post("/swap", s.handleSwap)
			r.Post("/{id}/up", s.handleMoveUp)
			r.Post("/{id}/down", s.handleMoveDown)
			r.Post("/{id}/toggle", s.handleToggle)
			r.Delete("/{id}", s.handleRemove)
		})

		r.Post("/media", s.handleUpload)
	})

	r.Get("/", s.handlePage)
	r.Get("/{slug}", s.handlePage)
}

// logRequests logs every request with slog and feeds the request observer.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		if s.observer != nil {
			s.observer.ObserveRequest(r.Method, route, status, d)
		}
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// handlePage renders a public page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "slug")
	if page == "" {
		page = HomePage
	}
	data := &render.PageData{
		Title:       s.title,
		Slug:        page,
		Mode:        render.ModePublic,
		CurrentPath: r.URL.Path,
		IsHTMX:      r.Header.Get("HX-Request") == "true",
	}
	if !slugPattern.MatchString(page) {
		s.renderError(w, r, data, http.StatusNotFound, "Page not found")
		return
	}

	ctx := r.Context()
	bs, err := s.engine.List(ctx, page)
	if err != nil {
		s.logger.Error("list blocks", "page", page, "error", err)
		s.renderError(w, r, data, http.StatusInternalServerError, "Failed to load page")
		return
	}
	outputs, err := s.composer.Compose(ctx, bs, data)
	if err != nil {
		s.logger.Error("compose page", "page", page, "error", err)
		s.renderError(w, r, data, http.StatusInternalServerError, "Failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderPage(w, data, outputs); err != nil {
		s.logger.Error("render error", "page", page, "error", err)
	}
}

// renderError renders an error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, data *render.PageData, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	data.Title = "Error"
	data.Error = &PageError{Status: status, Message: message}
	if err := s.renderer.RenderError(w, data); err != nil {
		s.logger.Error("render error page failed", "error", err)
		http.Error(w, message, status)
	}
}

// PageError represents a page error.
type PageError struct {
	Status  int
	Message string
}

func (e *PageError) Error() string {
	return e.Message
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	if s.gc != nil {
		h := s.gc.GetHealth()
		health["gc"] = h
		if h.Status == "degraded" {
			health["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, health)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and blocks until it stops.
// It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("starting server", "addr", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server. Open event streams are
// closed by the hub, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
