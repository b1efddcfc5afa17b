package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// Mock implementations

type mockWhisperRepo struct {
	mu       sync.Mutex
	nextID   int64
	whispers map[int64]*domain.Whisper
}

func newMockWhisperRepo() *mockWhisperRepo {
	return &mockWhisperRepo{nextID: 1, whispers: make(map[int64]*domain.Whisper)}
}

func (m *mockWhisperRepo) AllocateID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *mockWhisperRepo) Create(ctx context.Context, w *domain.Whisper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *w
	m.whispers[w.ID] = &clone
	return nil
}

func (m *mockWhisperRepo) Get(ctx context.Context, id int64) (*domain.Whisper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.whispers[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	clone := *w
	return &clone, nil
}

func (m *mockWhisperRepo) Update(ctx context.Context, id int64, mutate func(*domain.Whisper) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.whispers[id]
	if !ok {
		return repo.ErrNotFound
	}
	clone := *w
	if err := mutate(&clone); err != nil {
		return err
	}
	m.whispers[id] = &clone
	return nil
}

func (m *mockWhisperRepo) ListBySender(ctx context.Context, senderID string) ([]*domain.Whisper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Whisper
	for _, w := range m.whispers {
		if w.SenderID == senderID {
			clone := *w
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockWhisperRepo) Stats(ctx context.Context) (repo.WhisperStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := repo.WhisperStats{Total: int64(len(m.whispers))}
	for _, w := range m.whispers {
		if w.IsRevealed() {
			stats.Revealed++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}

func (m *mockWhisperRepo) Close() error { return nil }

type mockFilterRepo struct {
	allowed bool
	reason  string
}

func (m *mockFilterRepo) AllowContent(ctx context.Context, text string) (bool, string, error) {
	return m.allowed, m.reason, nil
}

// Tests

func TestCreate_RoundTrip(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)

	w, err := uc.Create(context.Background(), domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("hi")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := uc.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.State != domain.WhisperPending {
		t.Errorf("Expected pending, got %s", got.State)
	}
	if got.Recipient.Kind != domain.RecipientNumericID || got.Recipient.Descriptor != "42" {
		t.Errorf("Unexpected recipient: %+v", got.Recipient)
	}
	if len(got.Items) != 1 || got.Items[0].Text != "hi" {
		t.Errorf("Expected identical content, got %+v", got.Items)
	}
	if got.RevealedBy != "" || !got.RevealedAt.IsZero() {
		t.Error("Expected no attribution before reveal")
	}
}

func TestCreate_RejectsWithoutPersisting(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()
	sender := domain.Identity{UserID: "7"}

	_, err := uc.Create(ctx, sender, "Alice", "42", nil)
	if !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}

	_, err = uc.Create(ctx, sender, "Alice", "not-a-recipient",
		[]domain.MediaItem{domain.TextItem("hi")})
	if !errors.Is(err, domain.ErrBadRecipient) {
		t.Errorf("Expected ErrBadRecipient, got %v", err)
	}

	if len(store.whispers) != 0 {
		t.Errorf("Expected empty store after rejected creates, got %d records", len(store.whispers))
	}
}

func TestCreate_ContentFilterBlocks(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, &mockFilterRepo{allowed: false, reason: "spam"})

	_, err := uc.Create(context.Background(), domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("buy now")})
	if err == nil {
		t.Fatal("Expected filter rejection")
	}
	if len(store.whispers) != 0 {
		t.Error("Expected nothing persisted after filter rejection")
	}
}

func TestAttemptReveal_Scenario(t *testing.T) {
	// create for recipient "42", wrong user unauthorized, right user
	// delivered, second attempt already revealed with small age
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()

	w, err := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("hi")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "43"}, "@mallory", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealUnauthorized {
		t.Fatalf("Expected unauthorized, got %s", out.Status)
	}
	if out.Whisper != nil || len(out.Plan.Units) != 0 || out.ReadBy != "" || out.Age != "" {
		t.Error("Expected unauthorized outcome to carry no record data")
	}

	out, err = uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealDelivered {
		t.Fatalf("Expected delivered, got %s", out.Status)
	}
	if out.Whisper.Text() != "hi" {
		t.Errorf("Expected text 'hi', got '%s'", out.Whisper.Text())
	}

	got, _ := uc.Get(ctx, w.ID)
	if !got.IsRevealed() || got.RevealedBy != "@bob" || got.RevealedAt.IsZero() {
		t.Errorf("Expected revealed record with attribution, got %+v", got)
	}

	out, err = uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealAlreadyRevealed {
		t.Fatalf("Expected already revealed, got %s", out.Status)
	}
	if out.ReadBy != "@bob" {
		t.Errorf("Expected ReadBy '@bob', got '%s'", out.ReadBy)
	}
	if out.Age != "0 seconds ago" && out.Age != "1 second ago" {
		t.Errorf("Expected small age, got '%s'", out.Age)
	}
}

func TestAttemptReveal_NotFound(t *testing.T) {
	uc := NewWhisperUsecase(newMockWhisperRepo(), nil)

	out, err := uc.AttemptReveal(context.Background(), 999, domain.Identity{UserID: "42"}, "@bob", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealNotFound {
		t.Errorf("Expected not found, got %s", out.Status)
	}
}

func TestAttemptReveal_DeliveryFailureKeepsPending(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()

	w, _ := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("hi")})

	failing := func(w *domain.Whisper, plan domain.DeliveryPlan) error {
		return errors.New("recipient never opened a chat")
	}
	out, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", failing)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealDeliveryFailed {
		t.Fatalf("Expected delivery failed, got %s", out.Status)
	}

	got, _ := uc.Get(ctx, w.ID)
	if got.IsRevealed() {
		t.Error("Expected whisper to remain pending after failed delivery")
	}

	// A later attempt still succeeds
	out, _ = uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", nil)
	if out.Status != RevealDelivered {
		t.Errorf("Expected delivered on retry, got %s", out.Status)
	}
}

func TestAttemptReveal_ExactlyOnceUnderRace(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()

	w, _ := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("secret")})

	const attempts = 32
	var wg sync.WaitGroup
	var delivered, already int64
	var mu sync.Mutex
	var deliveries int64

	deliver := func(w *domain.Whisper, plan domain.DeliveryPlan) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return nil
	}

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", deliver)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch out.Status {
			case RevealDelivered:
				delivered++
			case RevealAlreadyRevealed:
				already++
			default:
				t.Errorf("Unexpected outcome %s", out.Status)
			}
		}()
	}
	wg.Wait()

	if delivered != 1 {
		t.Errorf("Expected exactly one delivered outcome, got %d", delivered)
	}
	if deliveries != 1 {
		t.Errorf("Expected content delivered exactly once, got %d", deliveries)
	}
	if already != attempts-1 {
		t.Errorf("Expected %d already-revealed outcomes, got %d", attempts-1, already)
	}
}

func lockCount(uc *WhisperUsecase) int {
	uc.locksMu.Lock()
	defer uc.locksMu.Unlock()
	return len(uc.locks)
}

func TestAttemptReveal_LockMapDoesNotGrow(t *testing.T) {
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()

	w, err := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("hi")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// A delivered reveal drops its lock entry.
	outcome, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "Bob", nil)
	if err != nil || outcome.Status != RevealDelivered {
		t.Fatalf("Expected delivered, got %+v (%v)", outcome, err)
	}
	if n := lockCount(uc); n != 0 {
		t.Fatalf("Expected empty lock map after delivery, got %d entries", n)
	}

	// So does a repeat attempt on the terminal record.
	if _, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "Bob", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := lockCount(uc); n != 0 {
		t.Fatalf("Expected empty lock map after repeat attempt, got %d entries", n)
	}

	// Unknown ids leave nothing behind.
	if _, err := uc.AttemptReveal(ctx, 999, domain.Identity{UserID: "42"}, "Bob", nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := lockCount(uc); n != 0 {
		t.Fatalf("Expected empty lock map after unknown id, got %d entries", n)
	}

	// A failed delivery keeps the record pending, so its lock entry stays.
	w2, err := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("again")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	failing := func(w *domain.Whisper, plan domain.DeliveryPlan) error {
		return errors.New("transport down")
	}
	outcome, err = uc.AttemptReveal(ctx, w2.ID, domain.Identity{UserID: "42"}, "Bob", failing)
	if err != nil || outcome.Status != RevealDeliveryFailed {
		t.Fatalf("Expected delivery failure, got %+v (%v)", outcome, err)
	}
	if n := lockCount(uc); n != 1 {
		t.Fatalf("Expected pending record to keep its lock entry, got %d entries", n)
	}
}

func TestAttemptReveal_CommitConflictReportsWinner(t *testing.T) {
	// Simulate losing the CAS at commit time even though the read saw
	// a pending record
	store := newMockWhisperRepo()
	uc := NewWhisperUsecase(store, nil)
	ctx := context.Background()

	w, _ := uc.Create(ctx, domain.Identity{UserID: "7"}, "Alice", "42",
		[]domain.MediaItem{domain.TextItem("secret")})

	// Flip the stored record behind the usecase's back during delivery
	deliver := func(_ *domain.Whisper, _ domain.DeliveryPlan) error {
		return store.Update(ctx, w.ID, func(rec *domain.Whisper) error {
			return rec.Reveal("@eve", time.Now())
		})
	}

	out, err := uc.AttemptReveal(ctx, w.ID, domain.Identity{UserID: "42"}, "@bob", deliver)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Status != RevealAlreadyRevealed {
		t.Fatalf("Expected already revealed after commit conflict, got %s", out.Status)
	}
	if out.ReadBy != "@eve" {
		t.Errorf("Expected winner's attribution '@eve', got '%s'", out.ReadBy)
	}
}
