package repository

import (
	"context"
	"database/sql"

	"eco-puntos/backend/internal/notification/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a notification repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the notification. The notification must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, category, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Message, n.Category, n.Read, n.CreatedAt)
	return err
}

// ListUnreadByUser returns unread notifications for the user, newest first.
func (r *PostgresRepository) ListUnreadByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, category, read, created_at
		FROM notifications WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead marks the notification read. Idempotent.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}
