// Package gc runs periodic housekeeping: abandoned edit sessions are closed
// and the database is optimized.
package gc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper closes sessions idle for longer than maxIdle.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Optimizer runs database maintenance.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Config holds GC configuration.
type Config struct {
	// Schedule is a cron expression. Defaults to every five minutes.
	Schedule string

	// MaxIdle is how long a session may stay untouched. Defaults to 30m.
	MaxIdle time.Duration

	Sessions  Sweeper
	Optimizer Optimizer
	Logger    *slog.Logger
}

// GC is the garbage collector.
type GC struct {
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger

	mu             sync.Mutex
	running        bool
	lastRun        time.Time
	sessionsClosed int64
	lastErr        error
}

// New creates a garbage collector. The schedule is parsed here.
func New(cfg Config) (*GC, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 30 * time.Minute
	}

	g := &GC{
		cfg:    cfg,
		cron:   cron.New(),
		logger: cfg.Logger,
	}
	if _, err := g.cron.AddFunc(cfg.Schedule, func() { g.RunNow(context.Background()) }); err != nil {
		return nil, fmt.Errorf("gc schedule %q: %w", cfg.Schedule, err)
	}
	return g, nil
}

// Start starts the scheduler in its own goroutine.
func (g *GC) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.cron.Start()
	g.logger.Info("GC started", "schedule", g.cfg.Schedule, "max_idle", g.cfg.MaxIdle)
}

// Stop stops the scheduler and waits for a running cycle, or ctx.
func (g *GC) Stop(ctx context.Context) {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.mu.Unlock()

	select {
	case <-g.cron.Stop().Done():
	case <-ctx.Done():
	}
	g.logger.Info("GC stopped")
}

// RunNow executes one cycle.
func (g *GC) RunNow(ctx context.Context) {
	start := time.Now()

	var closed int
	if g.cfg.Sessions != nil {
		closed = g.cfg.Sessions.Sweep(g.cfg.MaxIdle)
	}

	var err error
	if g.cfg.Optimizer != nil {
		if err = g.cfg.Optimizer.Optimize(ctx); err != nil {
			g.logger.Error("optimize database", "error", err)
		}
	}

	g.mu.Lock()
	g.lastRun = start
	g.sessionsClosed += int64(closed)
	g.lastErr = err
	g.mu.Unlock()

	g.logger.Info("GC cycle completed", "sessions_closed", closed, "duration", time.Since(start))
}

// Health is the GC status.
type Health struct {
	Status         string    `json:"status"`
	LastRunAt      time.Time `json:"last_run_at"`
	NextRunAt      time.Time `json:"next_run_at,omitempty"`
	SessionsClosed int64     `json:"sessions_closed"`
	LastError      string    `json:"last_error,omitempty"`
}

// GetHealth returns the current health status.
func (g *GC) GetHealth() *Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := &Health{
		Status:         "ok",
		LastRunAt:      g.lastRun,
		SessionsClosed: g.sessionsClosed,
	}
	if !g.running {
		h.Status = "stopped"
	}
	if g.lastErr != nil {
		h.Status = "degraded"
		h.LastError = g.lastErr.Error()
	}
	if entries := g.cron.Entries(); len(entries) > 0 {
		h.NextRunAt = entries[0].Next
	}
	return h
}
