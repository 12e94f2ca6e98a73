package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/identity"
	"github.com/feral-file/ff-minter/internal/logger"
)

// DEFAULT_SWEEP_INTERVAL is how often idle sessions are evicted
const DEFAULT_SWEEP_INTERVAL = time.Minute

// Manager owns the live sessions of the process
type Manager struct {
	deps   Dependencies
	config Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(deps Dependencies, config Config) *Manager {
	return &Manager{
		deps:     deps,
		config:   config,
		sessions: make(map[string]*Session),
	}
}

// Create bootstraps a new session for the given host credentials
func (m *Manager) Create(ctx context.Context, creds identity.Credentials) *Session {
	s := New(uuid.NewString(), m.deps, m.config)
	s.Bootstrap(ctx, creds)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	logger.InfoCtx(ctx, "Session created",
		zap.String("session_id", s.ID()),
		zap.String("state", string(s.Snapshot().State)))
	return s
}

// Get returns a live session and marks it active
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	s.Touch()
	return s, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL. Sessions with an action in flight are kept.
func (m *Manager) Sweep() int {
	if m.config.TTL <= 0 {
		return 0
	}

	now := m.deps.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.Busy() || now.Sub(s.idleSince()) < m.config.TTL {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	return evicted
}

// Run sweeps idle sessions until the context is cancelled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DEFAULT_SWEEP_INTERVAL
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.deps.Clock.After(interval):
			if n := m.Sweep(); n > 0 {
				logger.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
