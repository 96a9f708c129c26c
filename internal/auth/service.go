// Package auth implements registration, login, and logout on top of the
// session manager and the email verification flow.
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"eco-puntos/backend/internal/security"
	userdomain "eco-puntos/backend/internal/user/domain"
	"eco-puntos/backend/internal/verification"
)

var (
	// ErrInvalidCredentials is returned on unknown email or wrong password.
	// Callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned when the account has not completed email
	// verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrUserDisabled is returned when the account is deactivated.
	ErrUserDisabled = errors.New("user disabled")
	// ErrEmailAlreadyRegistered is returned by Register on a duplicate email.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionManager opens and closes device-bound sessions.
type SessionManager interface {
	Create(ctx context.Context, user *userdomain.User, fingerprint, ip, userAgent string) (string, error)
	Invalidate(ctx context.Context, token string) error
}

// Verifier starts the email verification flow for a new account.
type Verifier interface {
	IssueCode(ctx context.Context, user *userdomain.User) (string, error)
}

// TokenIssuer signs access tokens for authenticated clients.
type TokenIssuer interface {
	IssueAccess(userID, role, sessionToken string) (string, time.Time, error)
}

// Service handles account registration and credential-based login.
type Service struct {
	users    UserRepo
	hasher   *security.Hasher
	tokens   TokenIssuer
	sessions SessionManager
	verifier Verifier
	now      func() time.Time
}

// NewService returns an auth service over the given collaborators.
func NewService(users UserRepo, hasher *security.Hasher, tokens TokenIssuer, sessions SessionManager, verifier Verifier) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     userdomain.Role
}

// Register creates an inactive, unverified account and sends the verification
// code email. The account stays usable for a resend even when the email could
// not be delivered, so a delivery failure does not fail registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = userdomain.RoleUser
	}
	now := s.now()
	u := &userdomain.User{
		ID:            uuid.New().String(),
		Email:         email,
		Username:      in.Username,
		PasswordHash:  hash,
		Role:          role,
		Active:        false,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if _, err := s.verifier.IssueCode(ctx, u); err != nil {
		if errors.Is(err, verification.ErrEmailDelivery) {
			// Code is persisted; the user can request a resend.
			log.Printf("auth: verification email for %s not delivered: %v", email, err)
			return u, nil
		}
		return nil, err
	}
	return u, nil
}

// LoginInput carries the credentials and client attributes of a login request.
type LoginInput struct {
	Email       string
	Password    string
	Fingerprint string
	IP          string
	UserAgent   string
}

// LoginResult is a successful login: the user, the opaque session token, and
// the signed access token with its expiry.
type LoginResult struct {
	User         *userdomain.User
	SessionToken string
	AccessToken  string
	ExpiresAt    time.Time
}

// Login verifies the credentials, checks the account gates, opens a session
// bound to the client's device and IP, and issues an access token. Opening the
// session supersedes any previously active session for the user.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if !u.Active {
		return nil, ErrUserDisabled
	}

	sessionToken, err := s.sessions.Create(ctx, u, in.Fingerprint, in.IP, in.UserAgent)
	if err != nil {
		return nil, err
	}
	access, expiresAt, err := s.tokens.IssueAccess(u.ID, string(u.Role), sessionToken)
	if err != nil {
		// The session was opened; close it rather than leave an orphan the
		// client never received a token for.
		if cerr := s.sessions.Invalidate(ctx, sessionToken); cerr != nil {
			log.Printf("auth: failed to close orphaned session: %v", cerr)
		}
		return nil, err
	}
	return &LoginResult{
		User:         u,
		SessionToken: sessionToken,
		AccessToken:  access,
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout closes the session bearing token. Idempotent.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	return s.sessions.Invalidate(ctx, sessionToken)
}
