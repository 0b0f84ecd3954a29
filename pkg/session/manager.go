package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/blockpage/pkg/blocks"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Observer is told how many sessions are open after every change.
type Observer interface {
	SessionsOpen(n int)
}

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	Defaults Defaults
	Observer Observer
	Logger   *slog.Logger

	// Now replaces the clock in tests.
	Now func() time.Time
}

// Manager holds the open edit sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	defaults Defaults
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type entry struct {
	mu           sync.Mutex
	session      *Session
	lastActivity time.Time
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*entry),
		defaults: cfg.Defaults,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Create opens an idle session on page and returns its id.
func (m *Manager) Create(page string) string {
	id := blocks.NewSessionID(page)

	m.mu.Lock()
	m.sessions[id] = &entry{
		session:      New(id, page, m.defaults),
		lastActivity: m.now(),
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session opened", "session", id, "page", page)
	m.notify(n)
	return id
}

// With runs fn with exclusive access to the session.
func (m *Manager) With(id string, fn func(*Session) error) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = m.now()
	return fn(e.session)
}

// Discard closes a session. It returns false if the id was unknown.
func (m *Manager) Discard(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		m.logger.Info("session discarded", "session", id)
		m.notify(n)
	}
	return ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were closed. Sessions in use are skipped.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	threshold := m.now().Add(-maxIdle)

	m.mu.Lock()
	var removed int
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.lastActivity.Before(threshold)
		e.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
			m.logger.Info("removing abandoned session", "session", id, "page", e.session.Page())
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		m.notify(n)
	}
	return removed
}

func (m *Manager) notify(n int) {
	if m.observer != nil {
		m.observer.SessionsOpen(n)
	}
}
