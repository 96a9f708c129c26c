// Package verification implements email two-factor verification with lockout.
//
// Per-user state machine: Unverified -> CodeSent -> (Verified | LockedOut),
// where CodeSent self-loops on incorrect attempts until the retry budget is
// exhausted. All state is persisted on the user row so it survives process
// restarts and is visible across concurrent handlers.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	userdomain "eco-puntos/backend/internal/user/domain"
)

const (
	codeTTL         = 10 * time.Minute
	maxAttempts     = 3
	lockoutDuration = 15 * time.Minute
	resendCooldown  = 60 * time.Second
)

// ErrEmailDelivery marks a verification email that could not be delivered.
// The issued code remains valid; a resend can replace it.
var ErrEmailDelivery = errors.New("verification email delivery failed")

// Status is the outcome of a Verify call.
type Status string

const (
	StatusVerified  Status = "verified"
	StatusLockedOut Status = "locked_out"
	StatusExpired   Status = "expired"
	StatusIncorrect Status = "incorrect"
)

// Result holds the outcome of Verify with user-facing detail.
type Result struct {
	Status Status
	// Message is a user-facing explanation (Spanish, matching the platform UI).
	Message string
	// AttemptsLeft is set when Status is StatusIncorrect.
	AttemptsLeft int
	// LockedFor is the remaining lockout time when Status is StatusLockedOut.
	LockedFor time.Duration
}

// UserRepo is the minimal user repository needed by the verifier.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateVerification(ctx context.Context, userID string, v userdomain.VerificationState) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

// Mailer delivers the verification code by email.
type Mailer interface {
	SendVerificationCode(to, username, code string) error
}

// Service issues, verifies, and rate-limits email verification codes.
type Service struct {
	users  UserRepo
	mailer Mailer
	now    func() time.Time
}

// NewService returns a verification service. mailer may be nil in tests; then
// IssueCode reports ErrEmailDelivery while still persisting the code.
func NewService(users UserRepo, mailer Mailer) *Service {
	return &Service{users: users, mailer: mailer, now: func() time.Time { return time.Now().UTC() }}
}

// IssueCode generates a fresh 6-digit code for the user, persists it with a
// 10-minute expiry and a reset attempt counter, and emails it. The code is
// returned for flows that deliver it through another channel. An active
// lockout is carried over, so a reissued code cannot be used until the
// lockout has passed.
//
// Delivery failure returns the code together with a wrapped ErrEmailDelivery;
// issuance is not rolled back, so the code stays usable and a resend may
// replace it after the cooldown.
func (s *Service) IssueCode(ctx context.Context, user *userdomain.User) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	now := s.now()
	expires := now.Add(codeTTL)
	state := userdomain.VerificationState{
		Code:        code,
		ExpiresAt:   &expires,
		Attempts:    0,
		LockedUntil: user.Verification.LockedUntil,
		SentAt:      &now,
	}
	if err := s.users.UpdateVerification(ctx, user.ID, state); err != nil {
		return "", err
	}
	user.Verification = state

	if s.mailer == nil {
		return code, fmt.Errorf("%w: no mailer configured", ErrEmailDelivery)
	}
	if err := s.mailer.SendVerificationCode(user.Email, user.Username, code); err != nil {
		return code, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return code, nil
}

// Verify checks the submitted code against the user's pending verification
// state and advances the state machine.
func (s *Service) Verify(ctx context.Context, user *userdomain.User, submitted string) (*Result, error) {
	now := s.now()
	v := user.Verification

	if v.LockedUntil != nil && v.LockedUntil.After(now) {
		remaining := v.LockedUntil.Sub(now)
		return &Result{
			Status:    StatusLockedOut,
			Message:   fmt.Sprintf("Cuenta bloqueada temporalmente. Intenta en %d minutos.", int(remaining.Minutes())),
			LockedFor: remaining,
		}, nil
	}

	if v.Code == "" || v.ExpiresAt == nil || v.ExpiresAt.Before(now) {
		return &Result{
			Status:  StatusExpired,
			Message: "El código de verificación ha expirado. Solicita uno nuevo.",
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(submitted)) != 1 {
		v.Attempts++
		if v.Attempts >= maxAttempts {
			lockedUntil := now.Add(lockoutDuration)
			v.LockedUntil = &lockedUntil
			if err := s.users.UpdateVerification(ctx, user.ID, v); err != nil {
				return nil, err
			}
			user.Verification = v
			return &Result{
				Status:    StatusLockedOut,
				Message:   "Demasiados intentos fallidos. Cuenta bloqueada por 15 minutos.",
				LockedFor: lockoutDuration,
			}, nil
		}
		if err := s.users.UpdateVerification(ctx, user.ID, v); err != nil {
			return nil, err
		}
		user.Verification = v
		left := maxAttempts - v.Attempts
		return &Result{
			Status:       StatusIncorrect,
			Message:      fmt.Sprintf("Código incorrecto. Te quedan %d intentos.", left),
			AttemptsLeft: left,
		}, nil
	}

	// Correct code: mark verified + active and clear all verification fields
	// in one update.
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	user.Active = true
	user.Verification = userdomain.VerificationState{SentAt: v.SentAt}
	return &Result{
		Status:  StatusVerified,
		Message: "¡Email verificado correctamente! Ya puedes iniciar sesión.",
	}, nil
}

// CanResend reports whether a new code may be issued for the user, enforcing a
// 60-second cooldown from the persisted last-issue time. When not allowed,
// remaining is the time left on the cooldown.
func (s *Service) CanResend(user *userdomain.User) (allowed bool, remaining time.Duration) {
	sentAt := user.Verification.SentAt
	if sentAt == nil {
		return true, 0
	}
	elapsed := s.now().Sub(*sentAt)
	if elapsed < resendCooldown {
		return false, resendCooldown - elapsed
	}
	return true, 0
}
