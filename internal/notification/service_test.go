package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eco-puntos/backend/internal/notification/domain"
)

type memNotifRepo struct {
	mu   sync.Mutex
	rows []*domain.Notification
	fail bool
}

func (r *memNotifRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("insert failed")
	}
	r.rows = append(r.rows, n)
	return nil
}

func (r *memNotifRepo) ListUnreadByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotifRepo) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			n.Read = true
		}
	}
	return nil
}

type spyDispatcher struct {
	mu        sync.Mutex
	published []*domain.Notification
	err       error
	done      chan struct{}
}

func (d *spyDispatcher) Publish(ctx context.Context, n *domain.Notification) error {
	d.mu.Lock()
	d.published = append(d.published, n)
	d.mu.Unlock()
	if d.done != nil {
		close(d.done)
	}
	return d.err
}

func (d *spyDispatcher) Close() error { return nil }

func TestService_SecurityAlert(t *testing.T) {
	repo := &memNotifRepo{}
	disp := &spyDispatcher{done: make(chan struct{})}
	s := NewService(repo, disp)

	n, err := s.SecurityAlert(context.Background(), "user-1", "Alerta de seguridad", "msg", "")
	if err != nil {
		t.Fatalf("SecurityAlert: %v", err)
	}
	if n.Category != domain.CategorySystem {
		t.Errorf("category = %q, want default %q", n.Category, domain.CategorySystem)
	}
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Errorf("notification not fully populated: %+v", n)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(repo.rows))
	}

	select {
	case <-disp.done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not invoked")
	}
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.published) != 1 || disp.published[0].ID != n.ID {
		t.Errorf("published = %+v", disp.published)
	}
}

func TestService_SecurityAlert_RepoFailure(t *testing.T) {
	repo := &memNotifRepo{fail: true}
	s := NewService(repo, nil)
	if _, err := s.SecurityAlert(context.Background(), "user-1", "t", "m", "sistema"); err == nil {
		t.Error("SecurityAlert should surface the insert error")
	}
}

func TestService_SecurityAlert_NilDispatcher(t *testing.T) {
	repo := &memNotifRepo{}
	s := NewService(repo, nil)
	if _, err := s.SecurityAlert(context.Background(), "user-1", "t", "m", "sistema"); err != nil {
		t.Fatalf("SecurityAlert with nil dispatcher: %v", err)
	}
}
