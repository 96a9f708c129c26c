package repository

import (
	"context"
	"database/sql"

	"eco-puntos/backend/internal/accessattempt/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an access attempt repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the attempt. The attempt must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Attempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_attempts (id, ip_address, user_agent, url, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.IPAddress, a.UserAgent, a.URL, a.Reason, a.CreatedAt)
	return err
}

// ListRecent returns the most recent attempts, newest first, up to limit.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int32) ([]*domain.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ip_address, user_agent, url, reason, created_at
		FROM access_attempts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.IPAddress, &a.UserAgent, &a.URL, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
