// Package accessattempt records rejected access attempts for audit.
package accessattempt

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"eco-puntos/backend/internal/accessattempt/domain"
	attemptrepo "eco-puntos/backend/internal/accessattempt/repository"
)

// AttemptLogger records a rejected access attempt. Used on every session
// validation rejection path.
// Log is best-effort: failures are logged and do not affect the caller, so a
// logging failure can never block the access-control decision it records.
type AttemptLogger interface {
	Log(ctx context.Context, ip, userAgent, url, reason string)
}

// Logger implements AttemptLogger using the access attempt repository.
type Logger struct {
	repo attemptrepo.Repository
}

// NewLogger returns an AttemptLogger that persists to repo.
func NewLogger(repo attemptrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Log writes one access attempt record. Best-effort: errors are logged and not returned.
func (l *Logger) Log(ctx context.Context, ip, userAgent, url, reason string) {
	if l.repo == nil || reason == "" {
		return
	}
	attempt := &domain.Attempt{
		ID:        uuid.New().String(),
		IPAddress: ip,
		UserAgent: userAgent,
		URL:       url,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, attempt); err != nil {
		log.Printf("accessattempt: failed to log attempt %s from %s: %v", reason, ip, err)
	}
}
