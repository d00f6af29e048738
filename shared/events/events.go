package events

import "time"

// Event types
const (
	NotificationCreated = "notification.created"
)

// Stream names
const (
	NotificationsStream = "notifications"
)

// Notification entities, one WebSocket channel each.
const (
	EntityMovements = "MOVEMENTS"
	EntityAccounts  = "ACCOUNTS"
	EntityCards     = "CARDS"
)

// Notification kinds.
const (
	KindCreate  = "CREATE"
	KindUpdate  = "UPDATE"
	KindDelete  = "DELETE"
	KindExecute = "EXECUTE"
)

// Base event structure
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NotificationEvent carries one WebSocket message addressed to a user.
type NotificationEvent struct {
	Entity    string `json:"entity"`
	Kind      string `json:"type"`
	Recipient string `json:"recipient"`
	Data      any    `json:"data"`
	CreatedAt string `json:"createdAt"`
}
