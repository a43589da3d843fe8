package schema

import "time"

// NotificationKind classifies a notification.
type NotificationKind string

// Notification is a short-lived user-facing message.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
}
