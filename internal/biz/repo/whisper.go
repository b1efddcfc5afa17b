package repo

import (
	"context"
	"errors"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
)

// ErrNotFound is returned when a record does not exist in the store.
// Callers render it as "whisper does not exist", never as a generic error.
var ErrNotFound = errors.New("record not found")

// WhisperStats summarizes the store for the admin surface
type WhisperStats struct {
	Total    int64
	Revealed int64
	Pending  int64
	Users    int64
}

// WhisperRepo is the durable whisper store.
// Responsible for persistence (SQLite) and id allocation.
type WhisperRepo interface {
	// AllocateID returns the next whisper id. Ids are strictly increasing,
	// committed to the store before returning, and never reused.
	AllocateID(ctx context.Context) (int64, error)

	// Create persists a new whisper record
	Create(ctx context.Context, w *domain.Whisper) error

	// Get returns the whisper or ErrNotFound
	Get(ctx context.Context, id int64) (*domain.Whisper, error)

	// Update applies mutate inside a per-id atomic read-modify-write.
	// A mutate error aborts the write and is returned unchanged.
	Update(ctx context.Context, id int64, mutate func(*domain.Whisper) error) error

	// ListBySender lists a sender's whispers, newest first
	ListBySender(ctx context.Context, senderID string) ([]*domain.Whisper, error)

	// Stats returns store-wide totals
	Stats(ctx context.Context) (WhisperStats, error)

	// Close closes the store
	Close() error
}
