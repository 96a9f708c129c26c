// Package service implements the session security manager: creation,
// validation, invalidation, forced closure, and sweeps.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"eco-puntos/backend/internal/accessattempt"
	attemptdomain "eco-puntos/backend/internal/accessattempt/domain"
	"eco-puntos/backend/internal/events"
	"eco-puntos/backend/internal/notification"
	notifdomain "eco-puntos/backend/internal/notification/domain"
	"eco-puntos/backend/internal/security"
	sessiondomain "eco-puntos/backend/internal/session/domain"
	settingsdomain "eco-puntos/backend/internal/settings/domain"
	userdomain "eco-puntos/backend/internal/user/domain"
)

// ErrSessionNotFound is returned by ForceClose when the session does not exist
// or is already inactive.
var ErrSessionNotFound = errors.New("session not found or already closed")

// Status is the outcome of a session validation.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNotAuthenticated Status = "not_authenticated"
	StatusTokenNotFound    Status = "token_not_found"
	StatusExpired          Status = "session_expired"
	StatusDeviceMismatch   Status = "device_mismatch"
	StatusIPMismatch       Status = "ip_mismatch"
)

// ValidationResult reports the outcome of Validate. The primary outcome
// (Status) is independent of auxiliary effects: audit logging and notification
// push are best-effort and never change the status.
type ValidationResult struct {
	Status Status
	// Message is a user-facing explanation (Spanish, matching the platform UI).
	Message string
	// NotificationCreated reports whether a security notification row was
	// stored for the user on this rejection. Real-time delivery is
	// fire-and-forget and not reflected here.
	NotificationCreated bool
}

// OK reports whether the session is valid.
func (r *ValidationResult) OK() bool {
	return r.Status == StatusOK
}

// SessionRepo is the minimal session repository needed by the manager.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Deactivate(ctx context.Context, id string) error
	DeactivateByToken(ctx context.Context, token string) error
	DeactivateAllByUser(ctx context.Context, userID string) error
	Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	ListActive(ctx context.Context) ([]*sessiondomain.Session, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	DeactivateIdle(ctx context.Context, cutoff time.Time, adminOnly bool) (int64, error)
}

// SettingsRepo is the minimal settings repository needed by the manager.
type SettingsRepo interface {
	GetSessionTimeouts(ctx context.Context) (*settingsdomain.SessionTimeouts, error)
}

// Manager enforces the session security policy: one active session per user,
// device/IP binding with IP-strict and device-lenient handling, and
// differentiated per-role timeouts.
type Manager struct {
	sessions SessionRepo
	settings SettingsRepo
	attempts accessattempt.AttemptLogger
	notifier notification.Notifier
	producer events.Producer
	now      func() time.Time
}

// NewManager returns a session manager with the given dependencies.
// attempts, notifier, and producer may be nil; the corresponding side effects
// are then skipped.
func NewManager(
	sessions SessionRepo,
	settings SettingsRepo,
	attempts accessattempt.AttemptLogger,
	notifier notification.Notifier,
	producer events.Producer,
) *Manager {
	return &Manager{
		sessions: sessions,
		settings: settings,
		attempts: attempts,
		notifier: notifier,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session for the user bound to the given device
// fingerprint and IP, and returns the opaque session token. All previously
// active sessions for the user are deactivated first (one active session per
// user); superseded sessions get no notification.
func (m *Manager) Create(ctx context.Context, user *userdomain.User, fingerprint, ip, userAgent string) (string, error) {
	if err := m.sessions.DeactivateAllByUser(ctx, user.ID); err != nil {
		return "", err
	}
	token, err := security.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	now := m.now()
	s := &sessiondomain.Session{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		Token:             token,
		DeviceFingerprint: fingerprint,
		IPAddress:         ip,
		UserAgent:         userAgent,
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(m.timeoutForRole(ctx, user.Role)),
		Active:            true,
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", err
	}
	return token, nil
}

// RequestMeta carries the client attributes of the request being validated.
type RequestMeta struct {
	Token       string
	Fingerprint string
	IP          string
	UserAgent   string
	URL         string
}

// Validate checks the token against the stored session for the given user and
// the current device fingerprint and IP. On success it extends the session's
// expiry and records the activity. Every rejection is logged to the access
// attempt audit; an IP mismatch additionally deactivates the session and
// notifies the user. Superusers bypass validation entirely.
func (m *Manager) Validate(ctx context.Context, user *userdomain.User, meta RequestMeta) *ValidationResult {
	if user == nil {
		return &ValidationResult{Status: StatusNotAuthenticated, Message: "Usuario no autenticado"}
	}
	if user.Superuser {
		return &ValidationResult{Status: StatusOK, Message: "Superusuario válido"}
	}
	if meta.Token == "" {
		return &ValidationResult{Status: StatusTokenNotFound, Message: "Token de sesión no encontrado"}
	}

	s, err := m.sessions.GetByToken(ctx, meta.Token)
	if err != nil {
		log.Printf("session: token lookup failed: %v", err)
		return &ValidationResult{Status: StatusTokenNotFound, Message: "Sesión no válida"}
	}
	if s == nil || !s.Active || s.UserID != user.ID {
		m.logAttempt(ctx, meta, attemptdomain.ReasonTokenInvalid)
		return &ValidationResult{Status: StatusTokenNotFound, Message: "Sesión no válida"}
	}

	now := m.now()
	if s.Expired(now) {
		if err := m.sessions.Deactivate(ctx, s.ID); err != nil {
			log.Printf("session: deactivate expired %s: %v", s.ID, err)
		}
		m.logAttempt(ctx, meta, attemptdomain.ReasonSessionExpired)
		return &ValidationResult{Status: StatusExpired, Message: "Sesión expirada"}
	}

	if s.DeviceFingerprint != meta.Fingerprint {
		// Fingerprints are weak (identical browser builds behind a proxy
		// collide), so a mismatch gates access but keeps the session active.
		m.logAttempt(ctx, meta, attemptdomain.ReasonDeviceMismatch)
		return &ValidationResult{Status: StatusDeviceMismatch, Message: "Dispositivo no autorizado"}
	}

	if s.IPAddress != meta.IP {
		// An IP change mid-session is the primary hijack signal: hard
		// invalidation plus alerting.
		m.logAttempt(ctx, meta, attemptdomain.ReasonIPMismatch)
		notified := m.securityAlert(ctx, s.UserID, "Alerta de seguridad", fmt.Sprintf(
			"Intento de acceso detectado desde IP %s. Tu sesión fue iniciada desde %s. Si no fuiste tú, cambia tu contraseña inmediatamente.",
			meta.IP, s.IPAddress), notifdomain.CategorySystem)
		if err := m.sessions.Deactivate(ctx, s.ID); err != nil {
			log.Printf("session: deactivate on ip mismatch %s: %v", s.ID, err)
		}
		events.EmitAsync(m.producer, &events.SecurityEvent{
			EventType: events.TypeIPMismatch,
			UserID:    s.UserID,
			SessionID: s.ID,
			IPAddress: meta.IP,
			Metadata:  fmt.Sprintf("session ip %s", s.IPAddress),
			CreatedAt: now,
		})
		return &ValidationResult{
			Status: StatusIPMismatch,
			Message: fmt.Sprintf("Acceso denegado: IP no autorizada. Sesión iniciada desde %s, intento desde %s",
				s.IPAddress, meta.IP),
			NotificationCreated: notified,
		}
	}

	if err := m.sessions.Touch(ctx, s.ID, now, now.Add(m.timeoutForRole(ctx, user.Role))); err != nil {
		log.Printf("session: touch %s: %v", s.ID, err)
	}
	return &ValidationResult{Status: StatusOK, Message: "Sesión válida"}
}

// Invalidate marks the session bearing token inactive. Idempotent: unknown or
// already-inactive tokens are not an error.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.DeactivateByToken(ctx, token)
}

// InvalidateAllForUser deactivates every active session for the user. Used on
// password change and other account security events.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) error {
	return m.sessions.DeactivateAllByUser(ctx, userID)
}

// ForceClose deactivates a specific session by id (administrator action) and
// notifies its owner. Returns ErrSessionNotFound when the session does not
// exist or is already inactive. The notification attempt is isolated from the
// closure itself.
func (m *Manager) ForceClose(ctx context.Context, sessionID string) error {
	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || !s.Active {
		return ErrSessionNotFound
	}
	if err := m.sessions.Deactivate(ctx, s.ID); err != nil {
		return err
	}
	m.securityAlert(ctx, s.UserID, "Sesión cerrada por administrador",
		"Tu sesión ha sido cerrada por un administrador. Si no fuiste tú, por favor cambia tu contraseña.",
		notifdomain.CategorySessionClosed)
	events.EmitAsync(m.producer, &events.SecurityEvent{
		EventType: events.TypeForcedClose,
		UserID:    s.UserID,
		SessionID: s.ID,
		IPAddress: s.IPAddress,
		CreatedAt: m.now(),
	})
	return nil
}

// CountActive returns the number of active sessions for the user.
func (m *Manager) CountActive(ctx context.Context, userID string) (int, error) {
	return m.sessions.CountActiveByUser(ctx, userID)
}

// ListActive returns all active sessions, most recent activity first, for the
// admin security monitor.
func (m *Manager) ListActive(ctx context.Context) ([]*sessiondomain.Session, error) {
	return m.sessions.ListActive(ctx)
}

// SweepExpired bulk-deactivates all active sessions past their expiry and
// returns the count. Idempotent; safe to run concurrently with validation.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeactivateExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("session: swept %d expired sessions", n)
		events.EmitAsync(m.producer, &events.SecurityEvent{
			EventType: events.TypeSessionsSwept,
			Metadata:  fmt.Sprintf("expired=%d", n),
			CreatedAt: m.now(),
		})
	}
	return n, nil
}

// SweepInactive deactivates administrator sessions idle beyond adminIdle and
// non-administrator sessions idle beyond userIdle. Returns the total count.
func (m *Manager) SweepInactive(ctx context.Context, adminIdle, userIdle time.Duration) (int64, error) {
	now := m.now()
	adminCount, err := m.sessions.DeactivateIdle(ctx, now.Add(-adminIdle), true)
	if err != nil {
		return 0, err
	}
	userCount, err := m.sessions.DeactivateIdle(ctx, now.Add(-userIdle), false)
	if err != nil {
		return adminCount, err
	}
	total := adminCount + userCount
	if total > 0 {
		log.Printf("session: swept %d idle sessions (admins: %d, users: %d)", total, adminCount, userCount)
		events.EmitAsync(m.producer, &events.SecurityEvent{
			EventType: events.TypeSessionsSwept,
			Metadata:  fmt.Sprintf("idle_admin=%d idle_user=%d", adminCount, userCount),
			CreatedAt: now,
		})
	}
	return total, nil
}

// timeoutForRole returns the session timeout for the role, falling back to the
// hardcoded defaults when the settings lookup fails.
func (m *Manager) timeoutForRole(ctx context.Context, role userdomain.Role) time.Duration {
	timeouts, err := m.settings.GetSessionTimeouts(ctx)
	if err != nil {
		log.Printf("session: timeout lookup failed, using defaults: %v", err)
		if role == userdomain.RoleAdmin {
			return settingsdomain.DefaultAdminTimeout
		}
		return settingsdomain.DefaultUserTimeout
	}
	if role == userdomain.RoleAdmin {
		return timeouts.Admin
	}
	return timeouts.User
}

// logAttempt records a rejected access attempt. Best-effort.
func (m *Manager) logAttempt(ctx context.Context, meta RequestMeta, reason string) {
	if m.attempts == nil {
		return
	}
	m.attempts.Log(ctx, meta.IP, meta.UserAgent, meta.URL, reason)
}

// securityAlert creates and pushes a security notification. Best-effort;
// reports whether the notification row was stored.
func (m *Manager) securityAlert(ctx context.Context, userID, title, message, category string) bool {
	if m.notifier == nil {
		return false
	}
	if _, err := m.notifier.SecurityAlert(ctx, userID, title, message, category); err != nil {
		log.Printf("session: security notification for user %s failed: %v", userID, err)
		return false
	}
	return true
}
