package repository

import (
	"context"
	"database/sql"
	"errors"

	"eco-puntos/backend/internal/settings/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a configurations repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetSessionTimeouts returns per-role session timeouts from the configurations
// table, or the defaults for missing/unparseable values.
func (r *PostgresRepository) GetSessionTimeouts(ctx context.Context) (*domain.SessionTimeouts, error) {
	out := &domain.SessionTimeouts{
		Admin: domain.DefaultAdminTimeout,
		User:  domain.DefaultUserTimeout,
	}
	if v, err := r.getValue(ctx, domain.CategorySessions, domain.KeyAdminTimeout); err != nil {
		return nil, err
	} else if d, ok := domain.ParseTimeout(v); ok {
		out.Admin = d
	}
	if v, err := r.getValue(ctx, domain.CategorySessions, domain.KeyUserTimeout); err != nil {
		return nil, err
	} else if d, ok := domain.ParseTimeout(v); ok {
		out.User = d
	}
	return out, nil
}

// getValue returns the configuration value for (category, name), or "" when no
// row exists.
func (r *PostgresRepository) getValue(ctx context.Context, category, name string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM configurations WHERE category = $1 AND name = $2`,
		category, name).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}
