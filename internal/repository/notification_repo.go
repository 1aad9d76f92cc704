package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"todonotify/internal/model"
)

// NotificationRepository owns the append-only notification log.
type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Append inserts rec and fills in its ID. A zero CreatedAt is stamped by the database.
func (r *NotificationRepository) Append(ctx context.Context, rec *model.NotificationRecord) error {
	query := `
        INSERT INTO notifications (user_id, task_id, kind, channel, status, message_id, sent_at, error_message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
        RETURNING id, created_at
    `
	var createdAt *time.Time
	if !rec.CreatedAt.IsZero() {
		createdAt = &rec.CreatedAt
	}

	err := r.db.QueryRow(ctx, query,
		rec.UserID, rec.TaskID, string(rec.Kind), string(rec.Channel), string(rec.Status),
		rec.MessageID, rec.SentAt, rec.ErrorDetail, createdAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append notification record",
			zap.Int64("user_id", rec.UserID),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err),
		)
		return fmt.Errorf("appending notification: %w", err)
	}

	r.logger.Debug("Notification recorded",
		zap.Int64("notification_id", rec.ID),
		zap.Int64("user_id", rec.UserID),
		zap.String("kind", string(rec.Kind)),
		zap.String("status", string(rec.Status)),
	)
	return nil
}

// ExistsSince reports whether (user, task, kind) has a record created at or after since.
// A nil taskID matches user-level records such as the digest.
func (r *NotificationRepository) ExistsSince(ctx context.Context, userID int64, taskID *int64, kind model.Kind, since time.Time) (bool, error) {
	where, args := notificationFilter{}.forUser(userID).ofKind(kind).forTask(taskID).since(since).where("")
	query := `SELECT EXISTS (SELECT 1 FROM notifications` + where + `)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking notification log: %w", err)
	}
	return exists, nil
}

// ListByUser returns one page of the user's history, newest first, and the total row count.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.NotificationRecord, int64, error) {
	where, args := notificationFilter{}.forUser(userID).where("n.")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications n`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT n.id, n.user_id, n.task_id, n.kind, n.channel, n.status, n.message_id,
               n.sent_at, n.error_message, n.created_at, t.title
        FROM notifications n
        LEFT JOIN tasks t ON t.id = n.task_id
        %s
        ORDER BY n.created_at DESC, n.id DESC
        LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	records := make([]model.NotificationRecord, 0, limit)
	for rows.Next() {
		var rec model.NotificationRecord
		var kind, channel, status string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.TaskID, &kind, &channel, &status, &rec.MessageID,
			&rec.SentAt, &rec.ErrorDetail, &rec.CreatedAt, &rec.TaskTitle,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning notification: %w", err)
		}
		rec.Kind = model.Kind(kind)
		rec.Channel = model.Channel(channel)
		rec.Status = model.Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CountGrouped counts the user's records by (kind, channel, status), optionally
// only those created at or after since.
func (r *NotificationRepository) CountGrouped(ctx context.Context, userID int64, since *time.Time) ([]model.StatBucket, error) {
	f := notificationFilter{}.forUser(userID)
	if since != nil {
		f = f.since(*since)
	}
	where, args := f.where("")

	query := `
        SELECT kind, channel, status, COUNT(*)
        FROM notifications` + where + `
        GROUP BY kind, channel, status
        ORDER BY kind, channel, status`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("grouping notifications: %w", err)
	}
	defer rows.Close()

	buckets := []model.StatBucket{}
	for rows.Next() {
		var b model.StatBucket
		var kind, channel, status string
		if err := rows.Scan(&kind, &channel, &status, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning stat bucket: %w", err)
		}
		b.Kind = model.Kind(kind)
		b.Channel = model.Channel(channel)
		b.Status = model.Status(status)
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (r *NotificationRepository) Totals(ctx context.Context, userID int64) (model.LogTotals, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'sent'),
               COUNT(*) FILTER (WHERE status = 'failed')
        FROM notifications
        WHERE user_id = $1
    `
	var t model.LogTotals
	if err := r.db.QueryRow(ctx, query, userID).Scan(&t.Total, &t.Successful, &t.Failed); err != nil {
		return model.LogTotals{}, fmt.Errorf("totalling notifications: %w", err)
	}
	return t, nil
}

// Delete removes the user's records created before the cutoff, or all of them
// when before is nil, and returns how many rows went away.
func (r *NotificationRepository) Delete(ctx context.Context, userID int64, before *time.Time) (int64, error) {
	f := notificationFilter{}.forUser(userID)
	if before != nil {
		f = f.before(*before)
	}
	where, args := f.where("")

	tag, err := r.db.Exec(ctx, `DELETE FROM notifications`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}

	r.logger.Info("Notification history cleared",
		zap.Int64("user_id", userID),
		zap.Int64("deleted", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}
