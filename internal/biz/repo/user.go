package repo

import (
	"context"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
)

// UserRepo is the user preference store
type UserRepo interface {
	// Get returns the user or ErrNotFound
	Get(ctx context.Context, id string) (*domain.User, error)

	// Save creates or updates a user
	Save(ctx context.Context, u *domain.User) error

	// ListAll lists all known users
	ListAll(ctx context.Context) ([]*domain.User, error)

	// Count returns the number of known users
	Count(ctx context.Context) (int64, error)
}
