package repo

import (
	"context"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
)

// SessionRepo holds in-progress creation sessions, keyed by user+chat.
// Sessions are transient: abandoning one must leave no trace in the
// whisper store.
type SessionRepo interface {
	// Get returns the session or nil when none is active
	Get(ctx context.Context, userID, chatID string) (*domain.CreationSession, error)

	// Save creates or updates a session
	Save(ctx context.Context, s *domain.CreationSession) error

	// Delete removes a session
	Delete(ctx context.Context, userID, chatID string) error

	// CleanupStale removes sessions idle since before the given time
	CleanupStale(ctx context.Context, before time.Time) (int64, error)
}
