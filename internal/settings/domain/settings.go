package domain

import (
	"strconv"
	"time"
)

// Configuration keys consumed for session timeouts.
const (
	CategorySessions = "sesiones"
	KeyAdminTimeout  = "admin_session_timeout"
	KeyUserTimeout   = "user_session_timeout"
)

// Hardcoded fallbacks when no configuration row exists.
const (
	DefaultAdminTimeout = 600 * time.Second
	DefaultUserTimeout  = 900 * time.Second
)

// SessionTimeouts holds the per-role session timeouts (from the configurations
// table or defaults).
type SessionTimeouts struct {
	Admin time.Duration
	User  time.Duration
}

// ParseTimeout interprets a configuration value as a session timeout. Integer
// values are seconds; non-integer numeric values were stored as minutes and
// are converted. Returns false for values that are not numeric or not positive.
func ParseTimeout(value string) (time.Duration, bool) {
	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if f <= 0 {
			return 0, false
		}
		return time.Duration(f * float64(time.Minute)), true
	}
	return 0, false
}
