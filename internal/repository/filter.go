package repository

import (
	"fmt"
	"strings"
	"time"

	"todonotify/internal/model"
)

// notificationFilter is the fixed set of optional predicates the notification
// log queries are built from. Zero values mean "no predicate".
type notificationFilter struct {
	userID        int64
	kind          model.Kind
	taskID        *int64
	matchTaskID   bool // when set, taskID == nil means task_id IS NULL
	createdAfter  *time.Time
	createdBefore *time.Time
}

func (f notificationFilter) forUser(userID int64) notificationFilter {
	f.userID = userID
	return f
}

func (f notificationFilter) ofKind(kind model.Kind) notificationFilter {
	f.kind = kind
	return f
}

func (f notificationFilter) forTask(taskID *int64) notificationFilter {
	f.taskID = taskID
	f.matchTaskID = true
	return f
}

func (f notificationFilter) since(t time.Time) notificationFilter {
	f.createdAfter = &t
	return f
}

func (f notificationFilter) before(t time.Time) notificationFilter {
	f.createdBefore = &t
	return f
}

// where renders the predicates as a WHERE clause with positional args. The
// column prefix lets the same filter serve joined queries.
func (f notificationFilter) where(prefix string) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, prefix, len(args)))
	}

	if f.userID != 0 {
		add("%suser_id = $%d", f.userID)
	}
	if f.kind != "" {
		add("%skind = $%d", string(f.kind))
	}
	if f.matchTaskID {
		if f.taskID == nil {
			conds = append(conds, prefix+"task_id IS NULL")
		} else {
			add("%stask_id = $%d", *f.taskID)
		}
	}
	if f.createdAfter != nil {
		add("%screated_at >= $%d", *f.createdAfter)
	}
	if f.createdBefore != nil {
		add("%screated_at < $%d", *f.createdBefore)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
