package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"todonotify/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// ListAll returns every user, oldest first.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	query := `
        SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, '')
        FROM users
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetByID returns model.ErrUserNotFound when no row matches.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
        SELECT id, email, COALESCE(first_name, ''), COALESCE(last_name, '')
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return &u, nil
}
