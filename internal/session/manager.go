package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nim-chat/internal/sampling"
)

// Manager owns the live sessions. Sessions are independent of one another;
// the manager only guards the index.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     time.Duration
	limit    int
	defaults sampling.Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager creates a Manager whose new sessions start with defaults and which
// ends sessions idle for longer than idle.
func NewManager(defaults sampling.Config, idle time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		idle:     idle,
		defaults: defaults,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// SetLimit caps the number of live sessions. When the cap is reached, Create
// ends the least recently active session. Zero or less means no cap.
func (m *Manager) SetLimit(n int) {
	m.mu.Lock()
	m.limit = n
	m.mu.Unlock()
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	now := m.now()
	sess := newSession(uuid.New().String(), m.defaults, now)

	m.mu.Lock()
	evicted := ""
	if m.limit > 0 && len(m.sessions) >= m.limit {
		evicted = m.evictOldestLocked()
	}
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if evicted != "" {
		m.logger.Warn("session limit reached, ended least recently active session",
			"session_id", evicted, "limit", m.limit)
	}
	m.logger.Debug("session started", "session_id", sess.ID)
	return sess
}

// evictOldestLocked removes the session idle the longest. m.mu must be held.
func (m *Manager) evictOldestLocked() string {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range m.sessions {
		if t := sess.idleSince(); oldestID == "" || t.Before(oldest) {
			oldestID, oldest = id, t
		}
	}
	delete(m.sessions, oldestID)
	return oldestID
}

// Get returns the live session with id and marks it as active.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sess.touch(m.now())
	return sess, true
}

// GetOrCreate returns the session with id, or a new one if id is unknown or expired.
func (m *Manager) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := m.Get(id); ok {
		return sess, false
	}
	return m.Create(), true
}

// End discards the session with id. Ending an unknown session is a no-op.
func (m *Manager) End(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.logger.Debug("session ended", "session_id", id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep ends every session idle for longer than the idle timeout and returns
// how many were ended.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	ended := 0
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			ended++
		}
	}
	return ended
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}
