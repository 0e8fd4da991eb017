package session

import (
	"context"
	"sync"
	"time"

	"botscan/internal"
	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/metrics"

	"github.com/google/uuid"
)

// Factory builds the orchestrator for a new session id
type Factory func(sessionID string) *Orchestrator

// Manager holds one orchestrator per client session
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	factory  Factory
	ttl      time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *internal.Logger
	onRemove []func(id string)
}

// NewManager creates a manager that evicts sessions idle for longer than ttl.
// A zero ttl disables eviction.
func NewManager(factory Factory, ttl time.Duration, clk clock.Clock, m *metrics.Metrics, logger *internal.Logger) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Manager{
		sessions: make(map[string]*Orchestrator),
		factory:  factory,
		ttl:      ttl,
		clock:    clk,
		metrics:  m,
		logger:   logger.Named("Sessions"),
	}
}

// Create starts a new session
func (m *Manager) Create() (string, *Orchestrator) {
	id := uuid.New().String()
	o := m.factory(id)

	m.mu.Lock()
	m.sessions[id] = o
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.logger.Debug("created session %s (%d active)", id, n)
	return id, o
}

// OnRemove registers fn to run after a session is removed or evicted.
// Hooks must be registered before the manager is shared.
func (m *Manager) OnRemove(fn func(id string)) {
	m.onRemove = append(m.onRemove, fn)
}

// Get returns the session with id
func (m *Manager) Get(id string) (*Orchestrator, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ValidationError("invalid session id")
	}
	m.mu.RLock()
	o, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("session")
	}
	return o, nil
}

// Remove closes and forgets a session
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		o.Close()
		m.metrics.SetActiveSessions(n)
		for _, fn := range m.onRemove {
			fn(id)
		}
	}
	return ok
}

// Len counts live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle past the ttl. Sessions with a remote call in
// flight are kept.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.clock.Now().Add(-m.ttl)

	var expired []string
	m.mu.RLock()
	for id, o := range m.sessions {
		if o.LastActive().Before(cutoff) && !o.CurrentState().Busy() {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Remove(id)
	}
	if len(expired) > 0 {
		m.logger.Info("evicted %d idle sessions", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close closes every session
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Orchestrator)
	m.mu.Unlock()

	for _, o := range sessions {
		o.Close()
	}
	m.metrics.SetActiveSessions(0)
}
