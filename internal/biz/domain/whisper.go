package domain

import (
	"errors"
	"fmt"
	"time"
)

// WhisperState is the lifecycle state of a whisper
type WhisperState string

const (
	WhisperPending  WhisperState = "pending"
	WhisperRevealed WhisperState = "revealed"
)

var (
	// ErrEmptyContent is returned when a whisper is created with no content
	ErrEmptyContent = errors.New("whisper has no content")

	// ErrAlreadyRevealed is returned when a reveal is attempted on a terminal record
	ErrAlreadyRevealed = errors.New("whisper already revealed")

	// ErrBadAttribution is returned when a reveal carries no attribution
	ErrBadAttribution = errors.New("reveal requires attribution and timestamp")
)

// Whisper represents a single-reveal secret message entity
type Whisper struct {
	ID         int64
	SenderID   string
	SenderName string
	Recipient  Recipient
	CreatedAt  time.Time
	Items      []MediaItem // immutable after creation

	State      WhisperState
	RevealedBy string    // set only when State == WhisperRevealed
	RevealedAt time.Time // set only when State == WhisperRevealed
}

// NewWhisper builds a pending whisper. Content and recipient must already
// be validated; empty content is rejected here as a last line of defense.
func NewWhisper(id int64, senderID, senderName string, recipient Recipient, items []MediaItem) (*Whisper, error) {
	if !HasContent(items) {
		return nil, ErrEmptyContent
	}
	return &Whisper{
		ID:         id,
		SenderID:   senderID,
		SenderName: senderName,
		Recipient:  recipient,
		CreatedAt:  time.Now(),
		Items:      items,
		State:      WhisperPending,
	}, nil
}

// IsRevealed checks if the whisper reached its terminal state
func (w *Whisper) IsRevealed() bool {
	return w.State == WhisperRevealed
}

// Reveal performs the PENDING -> REVEALED transition.
// Attribution and timestamp are set together with the state flip; a second
// call fails with ErrAlreadyRevealed. No other transition exists.
func (w *Whisper) Reveal(by string, at time.Time) error {
	if w.State == WhisperRevealed {
		return ErrAlreadyRevealed
	}
	if by == "" || at.IsZero() {
		return ErrBadAttribution
	}
	w.State = WhisperRevealed
	w.RevealedBy = by
	w.RevealedAt = at
	return nil
}

// RevealedAgo buckets the elapsed time since reveal into a human string
func (w *Whisper) RevealedAgo(now time.Time) string {
	elapsed := now.Sub(w.RevealedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	secs := int64(elapsed.Seconds())
	switch {
	case secs < 60:
		return agoString(secs, "second")
	case secs < 3600:
		return agoString(secs/60, "minute")
	default:
		return agoString(secs/3600, "hour")
	}
}

func agoString(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Text returns the inline text of a single-text whisper, empty otherwise
func (w *Whisper) Text() string {
	if len(w.Items) == 1 && w.Items[0].Kind == MediaText {
		return w.Items[0].Text
	}
	return ""
}
