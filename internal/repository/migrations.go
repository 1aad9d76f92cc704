package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrations are applied in order; each statement is idempotent. The users and
// tasks tables belong to the task service and are only read here.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_preferences (
		id               BIGSERIAL PRIMARY KEY,
		user_id          BIGINT NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
		email_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		browser_enabled  BOOLEAN NOT NULL DEFAULT TRUE,
		due_date_hours   INTEGER NOT NULL DEFAULT 24 CHECK (due_date_hours BETWEEN 1 AND 168),
		digest_frequency TEXT NOT NULL DEFAULT 'daily' CHECK (digest_frequency IN ('daily', 'weekly', 'never')),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		task_id       BIGINT REFERENCES tasks (id) ON DELETE SET NULL,
		kind          TEXT NOT NULL,
		channel       TEXT NOT NULL,
		status        TEXT NOT NULL CHECK (status IN ('pending', 'sent', 'failed')),
		message_id    TEXT,
		sent_at       TIMESTAMPTZ,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_dedup
		ON notifications (user_id, kind, task_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created
		ON notifications (user_id, created_at DESC)`,
}

// Migrate creates the notification tables if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
	}
	logger.Info("Notification schema is up to date", zap.Int("statements", len(migrations)))
	return nil
}
