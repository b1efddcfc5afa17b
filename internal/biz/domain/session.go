package domain

import (
	"errors"
	"time"
)

// FlowState is the step a creation session is in
type FlowState string

const (
	FlowAwaitingRecipient FlowState = "awaiting_recipient"
	FlowCollectingContent FlowState = "collecting_content"
)

// ErrFlowState is returned when a flow step is applied out of order
var ErrFlowState = errors.New("creation step not valid in current state")

// CreationSession is the per-user, per-chat state of an in-progress
// whisper creation. Nothing here is persisted: an abandoned session leaves
// no whisper record behind.
type CreationSession struct {
	UserID    string
	ChatID    string
	State     FlowState
	Recipient Recipient
	Items     []MediaItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionConfig holds creation-flow tuning
type SessionConfig struct {
	IdleTimeout time.Duration // abandon sessions idle longer than this
}

// NewCreationSession starts a flow waiting for a recipient
func NewCreationSession(userID, chatID string) *CreationSession {
	now := time.Now()
	return &CreationSession{
		UserID:    userID,
		ChatID:    chatID,
		State:     FlowAwaitingRecipient,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsFresh checks whether the session is still within its idle window
func (s *CreationSession) IsFresh(cfg SessionConfig) bool {
	if cfg.IdleTimeout <= 0 {
		return true
	}
	return time.Since(s.UpdatedAt) <= cfg.IdleTimeout
}

// Touch updates active time
func (s *CreationSession) Touch() {
	s.UpdatedAt = time.Now()
}

// SetRecipient moves the flow from recipient selection to content collection
func (s *CreationSession) SetRecipient(r Recipient) error {
	if s.State != FlowAwaitingRecipient {
		return ErrFlowState
	}
	s.Recipient = r
	s.State = FlowCollectingContent
	s.Touch()
	return nil
}

// AddItem appends a content item while collecting
func (s *CreationSession) AddItem(item MediaItem) error {
	if s.State != FlowCollectingContent {
		return ErrFlowState
	}
	if !item.Kind.Valid() || item.IsEmpty() {
		return ErrEmptyContent
	}
	s.Items = append(s.Items, item)
	s.Touch()
	return nil
}
