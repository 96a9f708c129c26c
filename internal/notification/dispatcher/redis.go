package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"eco-puntos/backend/internal/notification/domain"
)

// channelPrefix is the per-user pub/sub channel prefix; the full channel is
// notifications:{user_id}.
const channelPrefix = "notifications:"

// payload is the wire format pushed to the real-time transport.
type payload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
	Read      bool   `json:"read"`
}

// RedisDispatcher implements Dispatcher using Redis pub/sub.
type RedisDispatcher struct {
	client *redis.Client
}

// NewRedisDispatcher creates a dispatcher that publishes to the given Redis
// address. Returns nil when addr is empty (publishing disabled).
func NewRedisDispatcher(addr, password string) *RedisDispatcher {
	if addr == "" {
		return nil
	}
	return &RedisDispatcher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}
}

// NewRedisDispatcherWithClient creates a dispatcher over an existing client.
func NewRedisDispatcherWithClient(client *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{client: client}
}

// Channel returns the pub/sub channel key for the given user.
func Channel(userID string) string {
	return channelPrefix + userID
}

// Publish serializes the notification as JSON and publishes it on the user's channel.
func (d *RedisDispatcher) Publish(ctx context.Context, n *domain.Notification) error {
	if d == nil || d.client == nil || n == nil {
		return nil
	}
	raw, err := json.Marshal(payload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		Read:      false,
	})
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, Channel(n.UserID), raw).Err()
}

// Close closes the Redis client. Safe to call multiple times.
func (d *RedisDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
