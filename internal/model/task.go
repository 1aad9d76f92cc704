package model

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("User not found")

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Task is a read-only snapshot of a row owned by the task service.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    int        `json:"priority"`
}

const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

func (t Task) PriorityText() string {
	switch t.Priority {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return "Medium"
	}
}

// TaskStats is the per-user summary embedded in the daily digest.
type TaskStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Overdue   int64 `json:"overdue"`
	DueSoon   int64 `json:"due_soon"`
}
