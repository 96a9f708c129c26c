package repository

import (
	"context"

	"eco-puntos/backend/internal/notification/domain"
)

// Repository defines persistence for notifications.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListUnreadByUser(ctx context.Context, userID string) ([]*domain.Notification, error)
	// MarkRead marks the notification read. No error when already read.
	MarkRead(ctx context.Context, id string) error
}
