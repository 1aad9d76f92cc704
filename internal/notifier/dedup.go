package notifier

import (
	"strconv"
	"time"

	"todonotify/internal/model"
)

// startOfDay is midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dueSoonWindowStart is the earliest created_at that still suppresses a
// due-soon reminder for a user with the given lead time.
func dueSoonWindowStart(now time.Time, leadTimeHours int) time.Time {
	return now.Add(-time.Duration(leadTimeHours) * time.Hour)
}

// lockKey identifies one (kind, user, task) check-send-record sequence.
// User-level notifications use "-" for the task.
func lockKey(kind model.Kind, userID int64, taskID *int64) string {
	task := "-"
	if taskID != nil {
		task = strconv.FormatInt(*taskID, 10)
	}
	return "notify:" + string(kind) + ":" + strconv.FormatInt(userID, 10) + ":" + task
}
