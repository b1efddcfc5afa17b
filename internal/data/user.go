package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// userRepo implements the user store on SQLite
type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a SQLite-backed user repository
func NewUserRepo(db *sql.DB) repo.UserRepo {
	return &userRepo{db: db}
}

// Get returns the user or repo.ErrNotFound
func (r *userRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, privacy_mode, notifications
		FROM users WHERE id = ?
	`, id)

	var u domain.User
	var privacy, notifications int
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &privacy, &notifications)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.PrivacyMode = privacy != 0
	u.Notifications = notifications != 0
	return &u, nil
}

// Save creates or updates a user
func (r *userRepo) Save(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (id, username, first_name, privacy_mode, notifications)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.FirstName, boolInt(u.PrivacyMode), boolInt(u.Notifications))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// ListAll lists all known users
func (r *userRepo) ListAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, first_name, privacy_mode, notifications
		FROM users ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		var u domain.User
		var privacy, notifications int
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &privacy, &notifications); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.PrivacyMode = privacy != 0
		u.Notifications = notifications != 0
		out = append(out, &u)
	}
	return out, rows.Err()
}

// Count returns the number of known users
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
