package domain

import (
	"errors"
	"time"
)

// Role identifies the user's role; it selects the session timeout policy.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "conductor"
	RoleUser   Role = "user"
)

// User is the core user entity. Verification holds the email two-factor state;
// it is persisted on the user row so it survives process restarts and is
// visible across concurrent handlers.
type User struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  string
	Role          Role
	Superuser     bool // superusers bypass session validation entirely
	Active        bool
	EmailVerified bool
	Verification  VerificationState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VerificationState holds the email verification code lifecycle for a user.
// A non-empty Code is always paired with a future ExpiresAt; both are cleared
// together when the code is consumed.
type VerificationState struct {
	Code        string
	ExpiresAt   *time.Time
	Attempts    int
	LockedUntil *time.Time
	SentAt      *time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
