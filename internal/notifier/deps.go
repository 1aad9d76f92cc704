package notifier

import (
	"context"
	"time"

	"todonotify/internal/model"
)

// UserDirectory enumerates and resolves users.
type UserDirectory interface {
	ListAll(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// PreferenceStore returns a user's settings, creating the defaults on first access.
type PreferenceStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*model.Preference, error)
}

// TaskSource is the read-only task view the passes query.
type TaskSource interface {
	DueBetween(ctx context.Context, userID int64, from, to time.Time, limit int) ([]model.Task, error)
	Overdue(ctx context.Context, userID int64, asOf time.Time, limit int) ([]model.Task, error)
	Stats(ctx context.Context, userID int64, now time.Time) (model.TaskStats, error)
}

// NotificationLog is the append-only record of every attempt.
type NotificationLog interface {
	Append(ctx context.Context, rec *model.NotificationRecord) error
	ExistsSince(ctx context.Context, userID int64, taskID *int64, kind model.Kind, since time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.NotificationRecord, int64, error)
	CountGrouped(ctx context.Context, userID int64, since *time.Time) ([]model.StatBucket, error)
	Totals(ctx context.Context, userID int64) (model.LogTotals, error)
	Delete(ctx context.Context, userID int64, before *time.Time) (int64, error)
}

// EventSink receives outcome events. *mq.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
