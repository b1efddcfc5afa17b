package data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

func openTestRepo(t *testing.T, dbPath string) repo.WhisperRepo {
	t.Helper()
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	return NewWhisperRepo(db)
}

func testWhisper(id int64) *domain.Whisper {
	w, _ := domain.NewWhisper(id, "7", "Alice",
		domain.Recipient{Descriptor: "42", Kind: domain.RecipientNumericID},
		[]domain.MediaItem{domain.TextItem("hi"), {Kind: domain.MediaPhoto, FileRef: "p1", Caption: "look"}})
	return w
}

func TestAllocateID_MonotonicAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	store := openTestRepo(t, dbPath)
	first, err := store.AllocateID(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first != 1 {
		t.Errorf("Expected first id 1, got %d", first)
	}

	second, _ := store.AllocateID(ctx)
	third, _ := store.AllocateID(ctx)
	if !(first < second && second < third) {
		t.Errorf("Expected strictly increasing ids, got %d %d %d", first, second, third)
	}

	// Simulated restart: the counter must reload, not reset
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}
	store = openTestRepo(t, dbPath)
	defer store.Close()

	fourth, err := store.AllocateID(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fourth <= third {
		t.Errorf("Expected id after reopen to exceed %d, got %d", third, fourth)
	}
}

func TestWhisperRepo_CreateGetRoundTrip(t *testing.T) {
	store := openTestRepo(t, filepath.Join(t.TempDir(), "relay.db"))
	defer store.Close()
	ctx := context.Background()

	id, _ := store.AllocateID(ctx)
	w := testWhisper(id)
	if err := store.Create(ctx, w); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.State != domain.WhisperPending {
		t.Errorf("Expected pending, got %s", got.State)
	}
	if got.SenderID != "7" || got.SenderName != "Alice" {
		t.Errorf("Unexpected sender: %s/%s", got.SenderID, got.SenderName)
	}
	if got.Recipient != w.Recipient {
		t.Errorf("Expected recipient %+v, got %+v", w.Recipient, got.Recipient)
	}
	if len(got.Items) != 2 || got.Items[0].Text != "hi" || got.Items[1].Caption != "look" {
		t.Errorf("Content did not round-trip: %+v", got.Items)
	}
	if !got.RevealedAt.IsZero() {
		t.Error("Expected zero RevealedAt for a pending whisper")
	}
}

func TestWhisperRepo_GetUnknownID(t *testing.T) {
	store := openTestRepo(t, filepath.Join(t.TempDir(), "relay.db"))
	defer store.Close()

	_, err := store.Get(context.Background(), 999)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	err = store.Update(context.Background(), 999, func(*domain.Whisper) error { return nil })
	if !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from update, got %v", err)
	}
}

func TestWhisperRepo_UpdateRevealPersists(t *testing.T) {
	store := openTestRepo(t, filepath.Join(t.TempDir(), "relay.db"))
	defer store.Close()
	ctx := context.Background()

	id, _ := store.AllocateID(ctx)
	_ = store.Create(ctx, testWhisper(id))

	at := time.Now()
	err := store.Update(ctx, id, func(w *domain.Whisper) error {
		return w.Reveal("@bob", at)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, _ := store.Get(ctx, id)
	if !got.IsRevealed() {
		t.Error("Expected revealed state to persist")
	}
	if got.RevealedBy != "@bob" {
		t.Errorf("Expected '@bob', got '%s'", got.RevealedBy)
	}
	if got.RevealedAt.Unix() != at.Unix() {
		t.Errorf("Expected RevealedAt %d, got %d", at.Unix(), got.RevealedAt.Unix())
	}

	// Mutator error aborts the write
	err = store.Update(ctx, id, func(w *domain.Whisper) error {
		return w.Reveal("@carol", time.Now())
	})
	if !errors.Is(err, domain.ErrAlreadyRevealed) {
		t.Fatalf("Expected ErrAlreadyRevealed, got %v", err)
	}
	got, _ = store.Get(ctx, id)
	if got.RevealedBy != "@bob" {
		t.Error("Expected rejected mutation not to be written")
	}
}

func TestWhisperRepo_ListBySender(t *testing.T) {
	store := openTestRepo(t, filepath.Join(t.TempDir(), "relay.db"))
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, _ := store.AllocateID(ctx)
		w := testWhisper(id)
		if i == 2 {
			w.SenderID = "other"
		}
		_ = store.Create(ctx, w)
	}

	mine, err := store.ListBySender(ctx, "7")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("Expected 2 whispers, got %d", len(mine))
	}
	if mine[0].ID < mine[1].ID {
		t.Error("Expected newest-first ordering")
	}
}

func TestWhisperRepo_Stats(t *testing.T) {
	store := openTestRepo(t, filepath.Join(t.TempDir(), "relay.db"))
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, _ := store.AllocateID(ctx)
		_ = store.Create(ctx, testWhisper(id))
	}
	_ = store.Update(ctx, 1, func(w *domain.Whisper) error {
		return w.Reveal("@bob", time.Now())
	})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Revealed != 1 || stats.Pending != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
