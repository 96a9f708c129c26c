package repository

import (
	"context"
	"time"

	"eco-puntos/backend/internal/session/domain"
)

// Repository defines persistence for sessions. All mutations are single-row or
// single-statement bulk updates; deactivation is monotonic (active -> inactive,
// never reversed).
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Deactivate marks the session inactive by id.
	Deactivate(ctx context.Context, id string) error
	// DeactivateByToken marks the session inactive by token. No error when the
	// token is unknown or the session is already inactive.
	DeactivateByToken(ctx context.Context, token string) error
	DeactivateAllByUser(ctx context.Context, userID string) error
	// Touch records activity: sets last_activity_at and extends expires_at.
	Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	// ListActive returns all active sessions ordered by most recent activity,
	// for the admin security monitor.
	ListActive(ctx context.Context) ([]*domain.Session, error)
	// DeactivateExpired bulk-deactivates active sessions whose expiry has
	// passed. Returns the number of sessions deactivated.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// DeactivateIdle bulk-deactivates active sessions with no activity since
	// cutoff, restricted to the given role when adminOnly is true and to all
	// non-admin roles otherwise. Returns the number deactivated.
	DeactivateIdle(ctx context.Context, cutoff time.Time, adminOnly bool) (int64, error)
}
