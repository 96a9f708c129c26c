// Package dispatcher pushes security notifications to users in real time.
package dispatcher

import (
	"context"
	"log"
	"time"

	"eco-puntos/backend/internal/notification/domain"
)

// publishTimeout bounds a single publish so a slow transport cannot stall the
// invalidation or creation the notification is attached to.
const publishTimeout = 5 * time.Second

// Dispatcher publishes a notification to the user's real-time channel.
// Callers use it best-effort: log and ignore errors.
type Dispatcher interface {
	// Publish sends the notification on the channel derived from n.UserID.
	// Returns an error only on transport failure; callers typically log and ignore.
	Publish(ctx context.Context, n *domain.Notification) error
	// Close releases transport resources. Safe to call if already closed.
	Close() error
}

// PublishAsync runs Publish in a goroutine with a short timeout so the caller
// is not blocked. Use for fire-and-forget delivery; errors are logged.
//
// d and n may be nil; PublishAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight publish.
func PublishAsync(d Dispatcher, n *domain.Notification) {
	if d == nil || n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.Publish(ctx, n); err != nil {
			log.Printf("notification: async publish failed for user %s: %v", n.UserID, err)
		}
	}()
}
