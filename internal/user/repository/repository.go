package repository

import (
	"context"

	"eco-puntos/backend/internal/user/domain"
)

// Repository defines persistence for users and their verification state.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateVerification persists the verification state fields for the user.
	UpdateVerification(ctx context.Context, userID string, v domain.VerificationState) error
	// MarkEmailVerified marks the user verified and active and clears all
	// verification fields in a single update.
	MarkEmailVerified(ctx context.Context, userID string) error
}
