package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	attemptdomain "eco-puntos/backend/internal/accessattempt/domain"
	notifdomain "eco-puntos/backend/internal/notification/domain"
	sessiondomain "eco-puntos/backend/internal/session/domain"
	settingsdomain "eco-puntos/backend/internal/settings/domain"
	userdomain "eco-puntos/backend/internal/user/domain"
)

type memSessionRepo struct {
	mu    sync.Mutex
	byID  map[string]*sessiondomain.Session
	roles map[string]userdomain.Role // userID -> role, for idle sweeps
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		byID:  make(map[string]*sessiondomain.Session),
		roles: make(map[string]userdomain.Role),
	}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memSessionRepo) GetByToken(ctx context.Context, token string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Token == token {
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.byID[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.Active = false
	}
	return nil
}

func (r *memSessionRepo) DeactivateByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Token == token {
			s.Active = false
		}
	}
	return nil
}

func (r *memSessionRepo) DeactivateAllByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.UserID == userID {
			s.Active = false
		}
	}
	return nil
}

func (r *memSessionRepo) Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.LastActivityAt = lastActivity
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (r *memSessionRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byID {
		if s.UserID == userID && s.Active {
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) ListActive(ctx context.Context) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.byID {
		if s.Active {
			s2 := *s
			out = append(out, &s2)
		}
	}
	return out, nil
}

func (r *memSessionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.Active && s.ExpiresAt.Before(now) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeactivateIdle(ctx context.Context, cutoff time.Time, adminOnly bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		isAdmin := r.roles[s.UserID] == userdomain.RoleAdmin
		if isAdmin != adminOnly {
			continue
		}
		if s.Active && s.LastActivityAt.Before(cutoff) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

type fakeSettings struct {
	timeouts *settingsdomain.SessionTimeouts
	err      error
}

func (f *fakeSettings) GetSessionTimeouts(ctx context.Context) (*settingsdomain.SessionTimeouts, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.timeouts != nil {
		return f.timeouts, nil
	}
	return &settingsdomain.SessionTimeouts{
		Admin: settingsdomain.DefaultAdminTimeout,
		User:  settingsdomain.DefaultUserTimeout,
	}, nil
}

type spyAttempts struct {
	mu      sync.Mutex
	reasons []string
}

func (a *spyAttempts) Log(ctx context.Context, ip, userAgent, url, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = append(a.reasons, reason)
}

func (a *spyAttempts) count(reason string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, r := range a.reasons {
		if r == reason {
			n++
		}
	}
	return n
}

type spyNotifier struct {
	mu     sync.Mutex
	alerts []*notifdomain.Notification
	err    error
}

func (n *spyNotifier) SecurityAlert(ctx context.Context, userID, title, message, category string) (*notifdomain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	alert := &notifdomain.Notification{UserID: userID, Title: title, Message: message, Category: category}
	n.alerts = append(n.alerts, alert)
	return alert, nil
}

type testEnv struct {
	repo     *memSessionRepo
	attempts *spyAttempts
	notifier *spyNotifier
	manager  *Manager
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     newMemSessionRepo(),
		attempts: &spyAttempts{},
		notifier: &spyNotifier{},
		now:      time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	env.manager = NewManager(env.repo, &fakeSettings{}, env.attempts, env.notifier, nil)
	env.manager.now = func() time.Time { return env.now }
	return env
}

func regularUser(id string) *userdomain.User {
	return &userdomain.User{ID: id, Email: id + "@example.com", Username: id, Role: userdomain.RoleUser, Active: true}
}

func adminUser(id string) *userdomain.User {
	return &userdomain.User{ID: id, Email: id + "@example.com", Username: id, Role: userdomain.RoleAdmin, Active: true}
}

func meta(token, fp, ip string) RequestMeta {
	return RequestMeta{Token: token, Fingerprint: fp, IP: ip, UserAgent: "Mozilla/5.0", URL: "/panel"}
}

func TestCreate_SingleActiveSessionPerUser(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok1, err := env.manager.Create(ctx, alice, "fp-1", "1.2.3.4", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tok1) != 64 {
		t.Errorf("token length = %d, want 64", len(tok1))
	}

	tok2, err := env.manager.Create(ctx, alice, "fp-2", "5.6.7.8", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("Create (second login): %v", err)
	}

	n, err := env.manager.CountActive(ctx, "alice")
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if n != 1 {
		t.Errorf("CountActive = %d, want 1", n)
	}

	// A request bearing the superseded token is rejected as invalid.
	res := env.manager.Validate(ctx, alice, meta(tok1, "fp-1", "1.2.3.4"))
	if res.Status != StatusTokenNotFound {
		t.Errorf("stale token status = %q, want token_not_found", res.Status)
	}
	if env.attempts.count(attemptdomain.ReasonTokenInvalid) != 1 {
		t.Errorf("token_invalido logged %d times, want 1", env.attempts.count(attemptdomain.ReasonTokenInvalid))
	}

	// The current token still validates.
	res = env.manager.Validate(ctx, alice, meta(tok2, "fp-2", "5.6.7.8"))
	if !res.OK() {
		t.Errorf("current token status = %q, want ok", res.Status)
	}
}

func TestCreate_RoleTimeouts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tokAdmin, err := env.manager.Create(ctx, adminUser("root"), "fp", "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("Create admin: %v", err)
	}
	tokUser, err := env.manager.Create(ctx, regularUser("bob"), "fp", "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	sAdmin, _ := env.repo.GetByToken(ctx, tokAdmin)
	if want := env.now.Add(600 * time.Second); !sAdmin.ExpiresAt.Equal(want) {
		t.Errorf("admin expiry = %v, want %v", sAdmin.ExpiresAt, want)
	}
	sUser, _ := env.repo.GetByToken(ctx, tokUser)
	if want := env.now.Add(900 * time.Second); !sUser.ExpiresAt.Equal(want) {
		t.Errorf("user expiry = %v, want %v", sUser.ExpiresAt, want)
	}
}

func TestCreate_SettingsFailureFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.manager.settings = &fakeSettings{err: errors.New("db down")}
	ctx := context.Background()

	tok, err := env.manager.Create(ctx, regularUser("bob"), "fp", "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if want := env.now.Add(settingsdomain.DefaultUserTimeout); !s.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want default %v", s.ExpiresAt, want)
	}
}

func TestValidate_SuccessExtendsExpiry(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp-1", "1.2.3.4", "ua")
	before, _ := env.repo.GetByToken(ctx, tok)

	env.now = env.now.Add(5 * time.Minute)
	res := env.manager.Validate(ctx, alice, meta(tok, "fp-1", "1.2.3.4"))
	if !res.OK() {
		t.Fatalf("Validate: %+v", res)
	}

	after, _ := env.repo.GetByToken(ctx, tok)
	if !after.ExpiresAt.After(before.ExpiresAt) {
		t.Errorf("expiry not extended: %v -> %v", before.ExpiresAt, after.ExpiresAt)
	}
	if !after.LastActivityAt.Equal(env.now) {
		t.Errorf("last activity = %v, want %v", after.LastActivityAt, env.now)
	}
	if len(env.attempts.reasons) != 0 {
		t.Errorf("attempts logged on success: %v", env.attempts.reasons)
	}
}

func TestValidate_Expired(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp-1", "1.2.3.4", "ua")

	env.now = env.now.Add(16 * time.Minute) // past the 900s user timeout
	res := env.manager.Validate(ctx, alice, meta(tok, "fp-1", "1.2.3.4"))
	if res.Status != StatusExpired {
		t.Fatalf("status = %q, want session_expired", res.Status)
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if s.Active {
		t.Error("expired session still active")
	}
	if env.attempts.count(attemptdomain.ReasonSessionExpired) != 1 {
		t.Error("sesion_expirada not logged")
	}

	// Repeat: session is now inactive, so the token is simply invalid.
	res = env.manager.Validate(ctx, alice, meta(tok, "fp-1", "1.2.3.4"))
	if res.Status != StatusTokenNotFound {
		t.Errorf("repeat status = %q, want token_not_found", res.Status)
	}
	if env.attempts.count(attemptdomain.ReasonSessionExpired) != 1 {
		t.Error("sesion_expirada logged more than once")
	}
}

func TestValidate_DeviceMismatchKeepsSessionActive(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp-1", "1.2.3.4", "ua")

	res := env.manager.Validate(ctx, alice, meta(tok, "fp-other", "1.2.3.4"))
	if res.Status != StatusDeviceMismatch {
		t.Fatalf("status = %q, want device_mismatch", res.Status)
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if !s.Active {
		t.Error("device mismatch must not deactivate the session")
	}
	if env.attempts.count(attemptdomain.ReasonDeviceMismatch) != 1 {
		t.Error("dispositivo_no_autorizado not logged")
	}
	if len(env.notifier.alerts) != 0 {
		t.Error("device mismatch must not create a notification")
	}

	// The same browser configuration still gets in.
	res = env.manager.Validate(ctx, alice, meta(tok, "fp-1", "1.2.3.4"))
	if !res.OK() {
		t.Errorf("original fingerprint: %+v", res)
	}
}

func TestValidate_IPMismatchDeactivatesAndNotifiesOnce(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp-1", "10.0.0.1", "ua")

	res := env.manager.Validate(ctx, alice, meta(tok, "fp-1", "10.0.0.2"))
	if res.Status != StatusIPMismatch {
		t.Fatalf("status = %q, want ip_mismatch", res.Status)
	}
	if !res.NotificationCreated {
		t.Error("NotificationCreated = false, want true")
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if s.Active {
		t.Error("ip mismatch must deactivate the session")
	}
	if env.attempts.count(attemptdomain.ReasonIPMismatch) != 1 {
		t.Error("ip_diferente not logged")
	}
	if len(env.notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want exactly 1", len(env.notifier.alerts))
	}
	alert := env.notifier.alerts[0]
	if alert.UserID != "alice" || alert.Title != "Alerta de seguridad" || alert.Category != notifdomain.CategorySystem {
		t.Errorf("alert = %+v", alert)
	}

	// Repeated presentation of the dead token: no duplicate notification.
	res = env.manager.Validate(ctx, alice, meta(tok, "fp-1", "10.0.0.2"))
	if res.Status != StatusTokenNotFound {
		t.Errorf("repeat status = %q, want token_not_found", res.Status)
	}
	if len(env.notifier.alerts) != 1 {
		t.Errorf("alerts after repeat = %d, want 1", len(env.notifier.alerts))
	}
}

func TestValidate_IPMismatch_NotificationFailureDoesNotChangeOutcome(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("notification store down")
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp-1", "10.0.0.1", "ua")
	res := env.manager.Validate(ctx, alice, meta(tok, "fp-1", "10.0.0.2"))
	if res.Status != StatusIPMismatch {
		t.Fatalf("status = %q, want ip_mismatch", res.Status)
	}
	if res.NotificationCreated {
		t.Error("NotificationCreated = true despite failure")
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if s.Active {
		t.Error("session must be deactivated even when notification fails")
	}
}

func TestValidate_SuperuserBypass(t *testing.T) {
	env := newTestEnv(t)
	root := adminUser("root")
	root.Superuser = true
	ctx := context.Background()

	// No session exists at all; a superuser is exempt from the policy.
	res := env.manager.Validate(ctx, root, meta("no-such-token", "fp", "1.2.3.4"))
	if !res.OK() {
		t.Errorf("superuser status = %q, want ok", res.Status)
	}
	if len(env.attempts.reasons) != 0 {
		t.Errorf("superuser validation logged attempts: %v", env.attempts.reasons)
	}
}

func TestValidate_NotAuthenticatedAndMissingToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.manager.Validate(ctx, nil, meta("tok", "fp", "1.2.3.4"))
	if res.Status != StatusNotAuthenticated {
		t.Errorf("nil user status = %q, want not_authenticated", res.Status)
	}

	res = env.manager.Validate(ctx, regularUser("alice"), meta("", "fp", "1.2.3.4"))
	if res.Status != StatusTokenNotFound {
		t.Errorf("empty token status = %q, want token_not_found", res.Status)
	}
	if len(env.attempts.reasons) != 0 {
		t.Errorf("pre-lookup rejections must not hit the audit log: %v", env.attempts.reasons)
	}
}

func TestInvalidate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp", "1.2.3.4", "ua")
	if err := env.manager.Invalidate(ctx, tok); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	s, _ := env.repo.GetByToken(ctx, tok)
	if s.Active {
		t.Error("session still active after Invalidate")
	}
	if err := env.manager.Invalidate(ctx, tok); err != nil {
		t.Errorf("Invalidate (repeat): %v", err)
	}
	if err := env.manager.Invalidate(ctx, "unknown-token"); err != nil {
		t.Errorf("Invalidate (unknown): %v", err)
	}
	if err := env.manager.Invalidate(ctx, ""); err != nil {
		t.Errorf("Invalidate (empty): %v", err)
	}
}

func TestInvalidateAllForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Seed two active rows directly to simulate the concurrent-login window.
	for _, id := range []string{"s1", "s2"} {
		env.repo.Create(ctx, &sessiondomain.Session{
			ID: id, UserID: "alice", Token: "tok-" + id, Active: true,
			ExpiresAt: env.now.Add(time.Hour),
		})
	}
	if err := env.manager.InvalidateAllForUser(ctx, "alice"); err != nil {
		t.Fatalf("InvalidateAllForUser: %v", err)
	}
	n, _ := env.manager.CountActive(ctx, "alice")
	if n != 0 {
		t.Errorf("CountActive = %d, want 0", n)
	}
}

func TestForceClose(t *testing.T) {
	env := newTestEnv(t)
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp", "1.2.3.4", "ua")
	s, _ := env.repo.GetByToken(ctx, tok)

	if err := env.manager.ForceClose(ctx, s.ID); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	closed, _ := env.repo.GetByID(ctx, s.ID)
	if closed.Active {
		t.Error("session still active after ForceClose")
	}
	if len(env.notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(env.notifier.alerts))
	}
	alert := env.notifier.alerts[0]
	if alert.Title != "Sesión cerrada por administrador" || alert.Category != notifdomain.CategorySessionClosed {
		t.Errorf("alert = %+v", alert)
	}

	// Already closed and unknown ids both report not found.
	if err := env.manager.ForceClose(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ForceClose (closed) = %v, want ErrSessionNotFound", err)
	}
	if err := env.manager.ForceClose(ctx, "no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ForceClose (unknown) = %v, want ErrSessionNotFound", err)
	}
}

func TestForceClose_NotificationFailureDoesNotFailClosure(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("publish transport down")
	alice := regularUser("alice")
	ctx := context.Background()

	tok, _ := env.manager.Create(ctx, alice, "fp", "1.2.3.4", "ua")
	s, _ := env.repo.GetByToken(ctx, tok)
	if err := env.manager.ForceClose(ctx, s.ID); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	closed, _ := env.repo.GetByID(ctx, s.ID)
	if closed.Active {
		t.Error("session still active")
	}
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.repo.Create(ctx, &sessiondomain.Session{
		ID: "fresh", UserID: "a", Token: "t1", Active: true, ExpiresAt: env.now.Add(time.Hour),
	})
	env.repo.Create(ctx, &sessiondomain.Session{
		ID: "stale1", UserID: "b", Token: "t2", Active: true, ExpiresAt: env.now.Add(-time.Minute),
	})
	env.repo.Create(ctx, &sessiondomain.Session{
		ID: "stale2", UserID: "c", Token: "t3", Active: true, ExpiresAt: env.now.Add(-time.Hour),
	})

	n, err := env.manager.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("swept = %d, want 2", n)
	}
	fresh, _ := env.repo.GetByID(ctx, "fresh")
	if !fresh.Active {
		t.Error("unexpired session was swept")
	}

	// Idempotent.
	n, err = env.manager.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired (repeat): %v", err)
	}
	if n != 0 {
		t.Errorf("repeat swept = %d, want 0", n)
	}
}

func TestSweepInactive_DifferentiatedTimeouts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.repo.roles["root"] = userdomain.RoleAdmin
	env.repo.roles["bob"] = userdomain.RoleUser

	// Admin idle 12 minutes (over its 10m budget), user idle 12 minutes
	// (under its 15m budget).
	env.repo.Create(ctx, &sessiondomain.Session{
		ID: "admin-idle", UserID: "root", Token: "t1", Active: true,
		LastActivityAt: env.now.Add(-12 * time.Minute), ExpiresAt: env.now.Add(time.Hour),
	})
	env.repo.Create(ctx, &sessiondomain.Session{
		ID: "user-idle", UserID: "bob", Token: "t2", Active: true,
		LastActivityAt: env.now.Add(-12 * time.Minute), ExpiresAt: env.now.Add(time.Hour),
	})

	n, err := env.manager.SweepInactive(ctx, 600*time.Second, 900*time.Second)
	if err != nil {
		t.Fatalf("SweepInactive: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	adminSession, _ := env.repo.GetByID(ctx, "admin-idle")
	if adminSession.Active {
		t.Error("idle admin session not swept")
	}
	userSession, _ := env.repo.GetByID(ctx, "user-idle")
	if !userSession.Active {
		t.Error("user session under its idle budget was swept")
	}

	// Past the user budget too.
	env.now = env.now.Add(5 * time.Minute)
	n, err = env.manager.SweepInactive(ctx, 600*time.Second, 900*time.Second)
	if err != nil {
		t.Fatalf("SweepInactive (second): %v", err)
	}
	if n != 1 {
		t.Errorf("second swept = %d, want 1", n)
	}
}

func TestListActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.repo.Create(ctx, &sessiondomain.Session{ID: "a", UserID: "u1", Token: "t1", Active: true, ExpiresAt: env.now.Add(time.Hour)})
	env.repo.Create(ctx, &sessiondomain.Session{ID: "b", UserID: "u2", Token: "t2", Active: false, ExpiresAt: env.now.Add(time.Hour)})

	list, err := env.manager.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("ListActive = %+v", list)
	}
}
