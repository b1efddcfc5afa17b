package data

import (
	"context"
	"sync"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// sessionRepo holds creation sessions in memory. Sessions are transient
// by contract: losing them on restart discards in-progress flows without
// leaving any whisper record behind.
type sessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CreationSession
}

// NewSessionRepo creates the in-memory creation session repository
func NewSessionRepo() repo.SessionRepo {
	return &sessionRepo{sessions: make(map[string]*domain.CreationSession)}
}

func sessionKey(userID, chatID string) string {
	return userID + "/" + chatID
}

// Get returns the session for user+chat, nil when none is active
func (r *sessionRepo) Get(ctx context.Context, userID, chatID string) (*domain.CreationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionKey(userID, chatID)], nil
}

// Save creates or updates a session
func (r *sessionRepo) Save(ctx context.Context, s *domain.CreationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey(s.UserID, s.ChatID)] = s
	return nil
}

// Delete removes a session
func (r *sessionRepo) Delete(ctx context.Context, userID, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(userID, chatID))
	return nil
}

// CleanupStale removes sessions idle since before the given time
func (r *sessionRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, s := range r.sessions {
		if s.UpdatedAt.Before(before) {
			delete(r.sessions, key)
			n++
		}
	}
	return n, nil
}
