package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the lifetime of an elevated session window.
const DefaultSessionTTL = 10 * time.Minute

// ElevatedSession is a short-lived credential granting decrypt and search
// rights on SECRET and ULTRA_SECRET tiers. Multiple concurrent sessions per
// owner are allowed so multi-device login does not interfere with itself.
type ElevatedSession struct {
	Token      string    `json:"token"`
	OwnerPhone string    `json:"owner_phone"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewElevatedSession creates a session starting a fresh TTL window at now.
func NewElevatedSession(ownerPhone string, now time.Time, ttl time.Duration) *ElevatedSession {
	return &ElevatedSession{
		Token:      uuid.NewString(),
		OwnerPhone: ownerPhone,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// ValidAt reports whether the session is still live at the given instant.
// Expiry is computed lazily from the timestamp; there are no background timers.
func (s *ElevatedSession) ValidAt(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}
