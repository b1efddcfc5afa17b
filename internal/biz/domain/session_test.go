package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCreationSession_FlowOrder(t *testing.T) {
	s := NewCreationSession("7", "chat-1")

	if s.State != FlowAwaitingRecipient {
		t.Fatalf("Expected awaiting_recipient, got %s", s.State)
	}

	// Content before recipient is out of order
	err := s.AddItem(TextItem("hi"))
	if !errors.Is(err, ErrFlowState) {
		t.Errorf("Expected ErrFlowState, got %v", err)
	}

	r, _ := ParseRecipient("@foo")
	if err := s.SetRecipient(r); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.State != FlowCollectingContent {
		t.Errorf("Expected collecting_content, got %s", s.State)
	}

	// Second recipient is out of order
	if err := s.SetRecipient(r); !errors.Is(err, ErrFlowState) {
		t.Errorf("Expected ErrFlowState on second recipient, got %v", err)
	}

	if err := s.AddItem(TextItem("hi")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.AddItem(MediaItem{Kind: MediaPhoto, FileRef: "p1"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(s.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(s.Items))
	}
}

func TestCreationSession_RejectsEmptyItems(t *testing.T) {
	s := NewCreationSession("7", "chat-1")
	r, _ := ParseRecipient("42")
	_ = s.SetRecipient(r)

	if err := s.AddItem(MediaItem{Kind: MediaText}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent for empty text, got %v", err)
	}
	if err := s.AddItem(MediaItem{Kind: "sticker", FileRef: "x"}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent for unknown kind, got %v", err)
	}
}

func TestCreationSession_IsFresh(t *testing.T) {
	s := NewCreationSession("7", "chat-1")
	cfg := SessionConfig{IdleTimeout: 10 * time.Minute}

	if !s.IsFresh(cfg) {
		t.Error("Expected a new session to be fresh")
	}

	s.UpdatedAt = time.Now().Add(-time.Hour)
	if s.IsFresh(cfg) {
		t.Error("Expected an idle session to be stale")
	}

	// Zero timeout disables abandonment
	if !s.IsFresh(SessionConfig{}) {
		t.Error("Expected zero timeout to keep sessions fresh")
	}
}
