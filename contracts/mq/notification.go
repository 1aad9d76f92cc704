package mq

import "time"

// Routing keys for notification outcome events.
const (
	RoutingNotificationSent   = "notification.sent"
	RoutingNotificationFailed = "notification.failed"
)

type NotificationSentPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	TaskID         *int64    `json:"task_id,omitempty"`
	Kind           string    `json:"kind"`
	Channel        string    `json:"channel"`
	MessageID      string    `json:"message_id,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

type NotificationFailedPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	TaskID         *int64    `json:"task_id,omitempty"`
	Kind           string    `json:"kind"`
	Channel        string    `json:"channel"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
}
