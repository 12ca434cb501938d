// Package notify is the local notification platform: a persistent queue of
// scheduled notifications and a dispatcher that delivers them when due.
package notify

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no pending notification has the given id.
var ErrNotFound = errors.New("notification not found")

// Status values for queued notifications.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Notification is one scheduled alert.
type Notification struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority"`
	FireAt    time.Time `json:"fire_at"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
