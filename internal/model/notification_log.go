package model

import "time"

// Kind identifies what a notification is about.
type Kind string

const (
	KindDueSoon     Kind = "due_soon"
	KindOverdue     Kind = "overdue"
	KindDailyDigest Kind = "daily_digest"
	KindWelcome     Kind = "welcome"
)

const testKindPrefix = "test_"

// BaseKinds are the kinds a test notification can be requested for.
var BaseKinds = []Kind{KindDueSoon, KindOverdue, KindDailyDigest, KindWelcome}

// Valid reports whether k is one of the base kinds.
func (k Kind) Valid() bool {
	for _, b := range BaseKinds {
		if k == b {
			return true
		}
	}
	return false
}

// Test returns the marker kind used when k is sent as an ad-hoc test.
func (k Kind) Test() Kind {
	return Kind(testKindPrefix + string(k))
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Channel string

const ChannelEmail Channel = "email"

// NotificationRecord is one row of the append-only notification log.
type NotificationRecord struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TaskID      *int64     `json:"task_id,omitempty"`
	Kind        Kind       `json:"kind"`
	Channel     Channel    `json:"channel"`
	Status      Status     `json:"status"`
	MessageID   *string    `json:"message_id,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ErrorDetail *string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// TaskTitle is only populated by history reads.
	TaskTitle *string `json:"task_title,omitempty"`
}

// StatBucket is a count of records sharing kind, channel and status.
type StatBucket struct {
	Kind    Kind    `json:"kind"`
	Channel Channel `json:"channel"`
	Status  Status  `json:"status"`
	Count   int64   `json:"count"`
}

// LogTotals summarizes a user's whole log.
type LogTotals struct {
	Total      int64 `json:"total_notifications"`
	Successful int64 `json:"successful_notifications"`
	Failed     int64 `json:"failed_notifications"`
}
