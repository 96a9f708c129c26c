package domain

import "time"

// Notification categories.
const (
	CategorySystem        = "sistema"
	CategorySessionClosed = "session_closed"
)

// Notification is a message addressed to a user. Security notifications are
// created by the session manager on detected anomalies or forced logout; the
// UI layer marks them read.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Category  string
	Read      bool
	CreatedAt time.Time
}
