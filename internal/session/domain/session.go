package domain

import "time"

// Session represents one authenticated login bound to a device and IP.
// Sessions are deactivated, never deleted; inactive rows are kept for audit.
type Session struct {
	ID                string
	UserID            string
	Token             string // opaque bearer token, unique across all sessions
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	CreatedAt         time.Time
	LastActivityAt    time.Time
	ExpiresAt         time.Time
	Active            bool
}

// Expired reports whether the session's expiry has passed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
