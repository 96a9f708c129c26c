package repository

import (
	"context"

	"eco-puntos/backend/internal/accessattempt/domain"
)

// Repository defines persistence for access attempts. Append-only.
type Repository interface {
	Create(ctx context.Context, a *domain.Attempt) error
	// ListRecent returns the most recent attempts, newest first, up to limit.
	ListRecent(ctx context.Context, limit int32) ([]*domain.Attempt, error)
}
