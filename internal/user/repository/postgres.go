package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eco-puntos/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, username, password_hash, role, superuser, active, email_verified,
	verification_code, verification_expires_at, verification_attempts,
	verification_locked_until, verification_sent_at, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, role, superuser, active, email_verified,
			verification_code, verification_expires_at, verification_attempts,
			verification_locked_until, verification_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), u.Superuser, u.Active, u.EmailVerified,
		nullString(u.Verification.Code), nullTime(u.Verification.ExpiresAt), u.Verification.Attempts,
		nullTime(u.Verification.LockedUntil), nullTime(u.Verification.SentAt), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdateVerification persists the verification state fields for the user.
func (r *PostgresRepository) UpdateVerification(ctx context.Context, userID string, v domain.VerificationState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET verification_code = $2, verification_expires_at = $3,
			verification_attempts = $4, verification_locked_until = $5,
			verification_sent_at = $6, updated_at = now()
		WHERE id = $1`,
		userID, nullString(v.Code), nullTime(v.ExpiresAt), v.Attempts,
		nullTime(v.LockedUntil), nullTime(v.SentAt),
	)
	return err
}

// MarkEmailVerified marks the user verified and active and clears all verification fields.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verified = TRUE, active = TRUE,
			verification_code = NULL, verification_expires_at = NULL,
			verification_attempts = 0, verification_locked_until = NULL,
			updated_at = now()
		WHERE id = $1`, userID)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u           domain.User
		role        string
		code        sql.NullString
		expiresAt   sql.NullTime
		lockedUntil sql.NullTime
		sentAt      sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.Superuser,
		&u.Active, &u.EmailVerified, &code, &expiresAt, &u.Verification.Attempts,
		&lockedUntil, &sentAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Verification.Code = code.String
	u.Verification.ExpiresAt = nullTimeToPtr(expiresAt)
	u.Verification.LockedUntil = nullTimeToPtr(lockedUntil)
	u.Verification.SentAt = nullTimeToPtr(sentAt)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
