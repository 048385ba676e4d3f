// Package session manages elevated-access tokens that gate decryption of
// SECRET and ULTRA_SECRET content. Sessions expire lazily by timestamp
// comparison; there are no background timers.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recallhq/memvault/models"
)

// Manager holds all live elevated sessions for the process. Each session is
// independent: one owner may hold several concurrent sessions (multi-device)
// and invalidating one window never touches another.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.ElevatedSession // token -> session
	ttl      time.Duration
	logger   *zap.Logger

	// now is replaceable in tests to exercise the TTL boundary.
	now func() time.Time
}

// NewManager creates a session manager with the given TTL.
func NewManager(ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	return &Manager{
		sessions: make(map[string]*models.ElevatedSession),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a fresh elevated window for the owner and returns the session.
func (m *Manager) Create(ownerPhone string) *models.ElevatedSession {
	s := models.NewElevatedSession(ownerPhone, m.now(), m.ttl)

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()

	m.logger.Info("elevated session created",
		zap.String("owner", ownerPhone),
		zap.Time("expires_at", s.ExpiresAt))
	return s
}

// Get returns the session for a token if it is still valid. Expired
// sessions are removed on access.
func (m *Manager) Get(token string) (*models.ElevatedSession, bool) {
	if token == "" {
		return nil, false
	}

	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.ValidAt(m.now()) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, false
	}
	return s, true
}

// Validate reports whether the token identifies a live session.
func (m *Manager) Validate(token string) bool {
	_, ok := m.Get(token)
	return ok
}

// InvalidateAll destroys every session belonging to the owner (logout).
// Returns the number of sessions removed.
func (m *Manager) InvalidateAll(ownerPhone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, s := range m.sessions {
		if s.OwnerPhone == ownerPhone {
			delete(m.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("elevated sessions invalidated",
			zap.String("owner", ownerPhone),
			zap.Int("count", removed))
	}
	return removed
}

// ActiveCount returns the number of live sessions for the owner.
func (m *Manager) ActiveCount(ownerPhone string) int {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.sessions {
		if s.OwnerPhone == ownerPhone && s.ValidAt(now) {
			count++
		}
	}
	return count
}

// PurgeExpired removes all expired sessions and returns how many were
// dropped. Expiry is otherwise handled lazily on access; this exists for
// housekeeping callers.
func (m *Manager) PurgeExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for token, s := range m.sessions {
		if !s.ValidAt(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed
}

// SetClock replaces the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
