package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eco-puntos/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, token, device_fingerprint, ip_address, user_agent,
	created_at, last_activity_at, expires_at, active`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByToken returns the session bearing token, or nil if not found.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	return scanSession(row)
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token, device_fingerprint, ip_address, user_agent,
			created_at, last_activity_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.Token, s.DeviceFingerprint, s.IPAddress, s.UserAgent,
		s.CreatedAt, s.LastActivityAt, s.ExpiresAt, s.Active,
	)
	return err
}

// Deactivate marks the session with the given id as inactive.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE id = $1`, id)
	return err
}

// DeactivateByToken marks the session bearing token as inactive. Idempotent.
func (r *PostgresRepository) DeactivateByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE WHERE token = $1`, token)
	return err
}

// DeactivateAllByUser deactivates every active session for the given user.
func (r *PostgresRepository) DeactivateAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active`, userID)
	return err
}

// Touch sets the session's last-activity timestamp and extends its expiry.
func (r *PostgresRepository) Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = $2, expires_at = $3 WHERE id = $1`,
		id, lastActivity, expiresAt)
	return err
}

// CountActiveByUser returns the number of active sessions for the given user.
func (r *PostgresRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND active`, userID).Scan(&n)
	return n, err
}

// ListActive returns all active sessions ordered by most recent activity.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE active ORDER BY last_activity_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Token, &s.DeviceFingerprint, &s.IPAddress,
			&s.UserAgent, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeactivateExpired bulk-deactivates active sessions whose expiry has passed.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE active AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeactivateIdle bulk-deactivates active sessions idle since before cutoff,
// for admin users only or for all non-admin users.
func (r *PostgresRepository) DeactivateIdle(ctx context.Context, cutoff time.Time, adminOnly bool) (int64, error) {
	op := `!=`
	if adminOnly {
		op = `=`
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE
		WHERE active AND last_activity_at < $1
		AND user_id IN (SELECT id FROM users WHERE role `+op+` 'admin')`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.DeviceFingerprint, &s.IPAddress,
		&s.UserAgent, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
