package repository

import (
	"context"

	"eco-puntos/backend/internal/settings/domain"
)

// Repository defines read access to the configurations table.
type Repository interface {
	// GetSessionTimeouts returns the per-role session timeouts. Missing or
	// unparseable configuration values fall back to the hardcoded defaults
	// (600s admin, 900s otherwise).
	GetSessionTimeouts(ctx context.Context) (*domain.SessionTimeouts, error)
}
