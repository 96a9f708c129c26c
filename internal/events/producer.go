// Package events emits security events (e.g. to Kafka) for downstream analysis.
package events

import (
	"context"
	"log"
	"time"
)

// Event types emitted by the session manager and janitor.
const (
	TypeIPMismatch    = "ip_mismatch"
	TypeForcedClose   = "session_forced_close"
	TypeSessionsSwept = "sessions_swept"
)

// SecurityEvent is one security-relevant occurrence.
type SecurityEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Producer emits security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a
	// goroutine if needed. Returns an error only on write failure.
	Emit(ctx context.Context, event *SecurityEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not
// blocked. Use for fire-and-forget, best-effort emission; errors are logged.
//
// producer and event may be nil; EmitAsync returns immediately without
// starting a goroutine. The goroutine uses context.Background() so request
// cancellation does not abort an in-flight emit.
func EmitAsync(producer Producer, event *SecurityEvent) {
	if producer == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := producer.Emit(ctx, event); err != nil {
			log.Printf("events: async emit failed: %v", err)
		}
	}()
}
