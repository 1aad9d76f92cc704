package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"todonotify/internal/model"
)

// TaskRepository is a read-only view over the task service's tasks table.
type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, title, COALESCE(description, ''), due_date, completed, priority`

// DueBetween returns open tasks due in [from, to], soonest first. limit <= 0 means no limit.
func (r *TaskRepository) DueBetween(ctx context.Context, userID int64, from, to time.Time, limit int) ([]model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE user_id = $1 AND completed = FALSE AND due_date IS NOT NULL
          AND due_date >= $2 AND due_date <= $3
        ORDER BY due_date ASC`
	args := []any{userID, from, to}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// Overdue returns open tasks due strictly before asOf, oldest due date first.
func (r *TaskRepository) Overdue(ctx context.Context, userID int64, asOf time.Time, limit int) ([]model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE user_id = $1 AND completed = FALSE AND due_date IS NOT NULL
          AND due_date < $2
        ORDER BY due_date ASC`
	args := []any{userID, asOf}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// Stats counts the user's tasks as seen at now; DueSoon covers the next 24 hours.
func (r *TaskRepository) Stats(ctx context.Context, userID int64, now time.Time) (model.TaskStats, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE completed),
            COUNT(*) FILTER (WHERE NOT completed AND due_date IS NOT NULL AND due_date < $2),
            COUNT(*) FILTER (WHERE NOT completed AND due_date IS NOT NULL AND due_date >= $2 AND due_date <= $3)
        FROM tasks
        WHERE user_id = $1
    `
	var s model.TaskStats
	err := r.db.QueryRow(ctx, query, userID, now, now.Add(24*time.Hour)).
		Scan(&s.Total, &s.Completed, &s.Overdue, &s.DueSoon)
	if err != nil {
		return model.TaskStats{}, fmt.Errorf("counting tasks for user %d: %w", userID, err)
	}
	return s, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.DueDate, &t.Completed, &t.Priority); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
