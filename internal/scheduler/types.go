// Package scheduler handles one-shot reminders: persistence, timers,
// delivery and natural-language time parsing.
package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reminder is a message to deliver to a chat at a fixed time.
type Reminder struct {
	ID        string     `json:"id"`
	ChatID    int64      `json:"chat_id"`
	Message   string     `json:"message"`
	At        time.Time  `json:"at"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	FiredAt   *time.Time `json:"fired_at,omitempty"`
	Result    string     `json:"result,omitempty"` // delivery error, if any
}

// Status is the lifecycle state of a reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusMissed    Status = "missed" // Fired too late after downtime
)

// reminderNamespace scopes deterministic reminder IDs.
var reminderNamespace = uuid.MustParse("6f1c2a57-3a8e-4f0e-9b59-9a3c1d0e7b21")

// ReminderID derives a stable ID from chat, message and time, so asking
// for the same reminder twice replaces it instead of duplicating it.
func ReminderID(chatID int64, message string, at time.Time) string {
	key := fmt.Sprintf("%d_%s_%s", chatID, message, at.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(reminderNamespace, []byte(key)).String()
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
