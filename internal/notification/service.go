// Package notification creates security notifications and fans them out in real time.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eco-puntos/backend/internal/notification/dispatcher"
	"eco-puntos/backend/internal/notification/domain"
	notifrepo "eco-puntos/backend/internal/notification/repository"
)

// Notifier creates a security notification for a user and pushes it in real
// time. Push delivery is best-effort; the created row is the source of truth.
type Notifier interface {
	SecurityAlert(ctx context.Context, userID, title, message, category string) (*domain.Notification, error)
}

// Service implements Notifier over the notification repository and an optional
// real-time dispatcher.
type Service struct {
	repo notifrepo.Repository
	disp dispatcher.Dispatcher
	now  func() time.Time
}

// NewService returns a Notifier backed by repo. disp may be nil; then
// notifications are only persisted, not pushed.
func NewService(repo notifrepo.Repository, disp dispatcher.Dispatcher) *Service {
	return &Service{repo: repo, disp: disp, now: func() time.Time { return time.Now().UTC() }}
}

// SecurityAlert inserts a notification row and fires an async publish on the
// dispatcher. The insert error is returned; publish failures never surface.
func (s *Service) SecurityAlert(ctx context.Context, userID, title, message, category string) (*domain.Notification, error) {
	if category == "" {
		category = domain.CategorySystem
	}
	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Category:  category,
		Read:      false,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	dispatcher.PublishAsync(s.disp, n)
	return n, nil
}
