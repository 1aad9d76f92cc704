package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"todonotify/internal/model"
)

type PreferenceRepository struct {
	db *pgxpool.Pool
}

func NewPreferenceRepository(db *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

const preferenceColumns = `user_id, email_enabled, browser_enabled, due_date_hours, digest_frequency, created_at, updated_at`

// GetOrCreate returns the user's preferences, inserting the defaults on first access.
func (r *PreferenceRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Preference, error) {
	def := model.DefaultPreference(userID)
	insert := `
        INSERT INTO user_preferences (user_id, email_enabled, browser_enabled, due_date_hours, digest_frequency)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.db.Exec(ctx, insert,
		def.UserID, def.EmailEnabled, def.BrowserEnabled, def.LeadTimeHours, string(def.DigestFrequency),
	); err != nil {
		return nil, fmt.Errorf("creating default preferences for user %d: %w", userID, err)
	}

	query := `SELECT ` + preferenceColumns + ` FROM user_preferences WHERE user_id = $1`
	p, err := scanPreference(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("loading preferences for user %d: %w", userID, err)
	}
	return p, nil
}

// Update applies a partial change. The merged result is validated before it is written.
func (r *PreferenceRepository) Update(ctx context.Context, userID int64, patch model.PreferencePatch) (*model.Preference, error) {
	current, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(*current)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	query := `
        UPDATE user_preferences
        SET email_enabled = $2, browser_enabled = $3, due_date_hours = $4,
            digest_frequency = $5, updated_at = NOW()
        WHERE user_id = $1
        RETURNING ` + preferenceColumns
	p, err := scanPreference(r.db.QueryRow(ctx, query,
		userID, next.EmailEnabled, next.BrowserEnabled, next.LeadTimeHours, string(next.DigestFrequency),
	))
	if err != nil {
		return nil, fmt.Errorf("updating preferences for user %d: %w", userID, err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreference(row rowScanner) (*model.Preference, error) {
	var p model.Preference
	var digest string
	if err := row.Scan(
		&p.UserID, &p.EmailEnabled, &p.BrowserEnabled, &p.LeadTimeHours, &digest, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.DigestFrequency = model.DigestFrequency(digest)
	return &p, nil
}
