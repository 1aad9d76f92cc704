package notifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"todonotify/internal/model"
)

const (
	MaxHistoryLimit = 100
	statsWindow     = 30 * 24 * time.Hour
)

var (
	ErrInvalidPage      = errors.New("limit must be between 1 and 100 and offset must be non-negative")
	ErrInvalidRetention = errors.New("older_than_days must be non-negative")
)

type HistoryPage struct {
	Records []model.NotificationRecord `json:"notifications"`
	Total   int64                      `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
	HasMore bool                       `json:"has_more"`
}

type Stats struct {
	AllTime     []model.StatBucket `json:"all_time"`
	Last30Days  []model.StatBucket `json:"last_30_days"`
	Totals      model.LogTotals    `json:"totals"`
	SuccessRate float64            `json:"success_rate"`
}

// History is the read side of the notification log.
type History struct {
	log NotificationLog
	now func() time.Time
}

func NewHistory(log NotificationLog) *History {
	return &History{log: log, now: time.Now}
}

// Page returns the user's records newest first.
func (h *History) Page(ctx context.Context, userID int64, limit, offset int) (HistoryPage, error) {
	if limit < 1 || limit > MaxHistoryLimit || offset < 0 {
		return HistoryPage{}, ErrInvalidPage
	}

	records, total, err := h.log.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("loading history: %w", err)
	}
	if records == nil {
		records = []model.NotificationRecord{}
	}
	return HistoryPage{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+limit) < total,
	}, nil
}

func (h *History) Stats(ctx context.Context, userID int64) (Stats, error) {
	allTime, err := h.log.CountGrouped(ctx, userID, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("grouping all-time stats: %w", err)
	}

	since := h.now().Add(-statsWindow)
	recent, err := h.log.CountGrouped(ctx, userID, &since)
	if err != nil {
		return Stats{}, fmt.Errorf("grouping recent stats: %w", err)
	}

	totals, err := h.log.Totals(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("loading totals: %w", err)
	}

	return Stats{
		AllTime:     allTime,
		Last30Days:  recent,
		Totals:      totals,
		SuccessRate: successRate(totals),
	}, nil
}

// Clear deletes the user's records older than olderThanDays days, or all of
// them when olderThanDays is 0, and returns the number removed.
func (h *History) Clear(ctx context.Context, userID int64, olderThanDays int) (int64, error) {
	if olderThanDays < 0 {
		return 0, ErrInvalidRetention
	}

	var before *time.Time
	if olderThanDays > 0 {
		cutoff := h.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
		before = &cutoff
	}

	n, err := h.log.Delete(ctx, userID, before)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return n, nil
}

// successRate is the sent share in percent, rounded to two decimals.
func successRate(t model.LogTotals) float64 {
	if t.Total == 0 {
		return 0
	}
	return math.Round(float64(t.Successful)/float64(t.Total)*10000) / 100
}
