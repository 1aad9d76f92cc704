package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"todonotify/internal/delivery"
	"todonotify/internal/model"
	"todonotify/pkg/logger"
)

var ErrInvalidKind = errors.New("Invalid notification type")

// SendTest delivers a sample notification of kind to the user right away,
// bypassing preferences and the log check. The attempt is logged as test_<kind>.
// ErrInvalidKind and model.ErrUserNotFound are returned before anything is sent
// or written; a delivery failure is reported in the Result, not as an error.
func (e *Engine) SendTest(ctx context.Context, userID int64, kind model.Kind) (delivery.Result, error) {
	tmpl, ok := delivery.TemplateFor(kind)
	if !ok {
		return delivery.Result{Error: ErrInvalidKind.Error()}, ErrInvalidKind
	}

	user, err := e.deps.Users.GetByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return delivery.Result{Error: model.ErrUserNotFound.Error()}, model.ErrUserNotFound
	}
	if err != nil {
		return delivery.Result{Error: err.Error()}, err
	}

	payload, err := e.samplePayload(ctx, user.ID, kind)
	if err != nil {
		return delivery.Result{Error: err.Error()}, err
	}

	rec, res := e.deliver(ctx, *user, kind.Test(), tmpl, nil, payload)
	if err := e.record(ctx, rec); err != nil {
		return res, err
	}

	logger.WithTrace(ctx, e.logger).Info("Test notification sent",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Bool("success", res.Success),
	)
	return res, nil
}

func (e *Engine) samplePayload(ctx context.Context, userID int64, kind model.Kind) (delivery.Payload, error) {
	now := e.now()
	switch kind {
	case model.KindDueSoon:
		due := now.Add(24 * time.Hour)
		return delivery.Payload{Task: &model.Task{
			UserID:      userID,
			Title:       "Test Task - Due Soon",
			Description: "This is a test notification for a task due soon.",
			DueDate:     &due,
			Priority:    model.PriorityMedium,
		}}, nil
	case model.KindOverdue:
		due := now.Add(-24 * time.Hour)
		return delivery.Payload{Task: &model.Task{
			UserID:      userID,
			Title:       "Test Task - Overdue",
			Description: "This is a test notification for an overdue task.",
			DueDate:     &due,
			Priority:    model.PriorityHigh,
		}}, nil
	case model.KindDailyDigest:
		stats, err := e.deps.Tasks.Stats(ctx, userID, now)
		if err != nil {
			return delivery.Payload{}, fmt.Errorf("computing task stats: %w", err)
		}
		return delivery.Payload{Stats: &stats, Date: now}, nil
	}
	return delivery.Payload{}, nil
}
