package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// RevealStatus classifies the outcome of a reveal attempt
type RevealStatus string

const (
	RevealDelivered       RevealStatus = "delivered"
	RevealNotFound        RevealStatus = "not_found"
	RevealUnauthorized    RevealStatus = "unauthorized"
	RevealAlreadyRevealed RevealStatus = "already_revealed"
	RevealDeliveryFailed  RevealStatus = "delivery_failed"
)

// RevealOutcome is the result of one reveal attempt. Only a Delivered
// outcome carries the whisper; Unauthorized deliberately carries nothing,
// so non-recipients cannot learn whether the whisper exists.
type RevealOutcome struct {
	Status  RevealStatus
	Whisper *domain.Whisper     // Delivered only
	Plan    domain.DeliveryPlan // Delivered only
	ReadBy  string              // AlreadyRevealed only
	Age     string              // AlreadyRevealed only, e.g. "5 minutes ago"
	Reason  string              // DeliveryFailed only, retry guidance
}

// DeliverFunc performs the actual transport delivery for a reveal. It runs
// after authorization and before the state flip: a delivery error leaves
// the whisper pending.
type DeliverFunc func(w *domain.Whisper, plan domain.DeliveryPlan) error

// WhisperUsecase drives the whisper lifecycle: all-or-nothing creation and
// exactly-once reveal consumption.
type WhisperUsecase struct {
	whisperRepo repo.WhisperRepo
	filterRepo  repo.FilterRepo // optional content review, may be nil

	// Per-id locks serialize the deliver-then-commit window of racing
	// reveal attempts for the same whisper.
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewWhisperUsecase creates the lifecycle usecase
func NewWhisperUsecase(whisperRepo repo.WhisperRepo, filterRepo repo.FilterRepo) *WhisperUsecase {
	return &WhisperUsecase{
		whisperRepo: whisperRepo,
		filterRepo:  filterRepo,
		locks:       make(map[int64]*sync.Mutex),
	}
}

// Create validates, allocates an id and persists a pending whisper.
// Nothing is persisted when validation fails.
func (uc *WhisperUsecase) Create(ctx context.Context, sender domain.Identity, senderName, rawRecipient string, items []domain.MediaItem) (*domain.Whisper, error) {
	recipient, err := domain.ParseRecipient(rawRecipient)
	if err != nil {
		return nil, err
	}
	return uc.CreateFor(ctx, sender, senderName, recipient, items)
}

// CreateFor is Create with an already-parsed recipient (used by the
// multi-step creation flow, which validates the recipient up front)
func (uc *WhisperUsecase) CreateFor(ctx context.Context, sender domain.Identity, senderName string, recipient domain.Recipient, items []domain.MediaItem) (*domain.Whisper, error) {
	if !domain.HasContent(items) {
		return nil, domain.ErrEmptyContent
	}
	for _, item := range items {
		if !item.Kind.Valid() {
			return nil, fmt.Errorf("unsupported media kind %q", item.Kind)
		}
	}

	if uc.filterRepo != nil {
		allowed, reason, err := uc.filterRepo.AllowContent(ctx, textOf(items))
		if err != nil {
			fmt.Printf("[Whisper] Content filter error: %v, allowing\n", err)
		} else if !allowed {
			return nil, fmt.Errorf("content rejected: %s", reason)
		}
	}

	id, err := uc.whisperRepo.AllocateID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate whisper id: %w", err)
	}

	w, err := domain.NewWhisper(id, sender.UserID, senderName, recipient, items)
	if err != nil {
		return nil, err
	}
	if err := uc.whisperRepo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist whisper: %w", err)
	}
	return w, nil
}

// AttemptReveal evaluates a reveal request for the given requester.
// deliver (optional) runs between authorization and the state flip; when it
// fails the outcome is DeliveryFailed and the whisper stays pending. At most
// one attempt per whisper ever observes Delivered; racing attempts observe
// AlreadyRevealed with the winner's attribution.
func (uc *WhisperUsecase) AttemptReveal(ctx context.Context, id int64, requester domain.Identity, readerDisplay string, deliver DeliverFunc) (*RevealOutcome, error) {
	lock := uc.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	w, err := uc.whisperRepo.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		uc.forgetLock(id)
		return &RevealOutcome{Status: RevealNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper %d: %w", id, err)
	}

	if w.IsRevealed() {
		uc.forgetLock(id)
		return alreadyRevealed(w), nil
	}

	// Authorization before anything else: a non-recipient learns nothing,
	// not even that the whisper exists.
	if !w.Recipient.Matches(requester) {
		return &RevealOutcome{Status: RevealUnauthorized}, nil
	}

	plan := domain.Render(w.Items)

	if deliver != nil {
		if err := deliver(w, plan); err != nil {
			return &RevealOutcome{
				Status: RevealDeliveryFailed,
				Reason: "could not deliver the whisper, open a direct chat with the bot and try again",
			}, nil
		}
	}

	if readerDisplay == "" {
		readerDisplay = requester.UserID
	}
	now := time.Now()
	err = uc.whisperRepo.Update(ctx, id, func(rec *domain.Whisper) error {
		return rec.Reveal(readerDisplay, now)
	})
	if errors.Is(err, domain.ErrAlreadyRevealed) {
		// Lost the race at commit time: report the terminal state instead
		current, gerr := uc.whisperRepo.Get(ctx, id)
		if gerr != nil {
			return nil, fmt.Errorf("failed to reload whisper %d: %w", id, gerr)
		}
		uc.forgetLock(id)
		return alreadyRevealed(current), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit reveal of whisper %d: %w", id, err)
	}

	uc.forgetLock(id)
	w.State = domain.WhisperRevealed
	w.RevealedBy = readerDisplay
	w.RevealedAt = now
	return &RevealOutcome{Status: RevealDelivered, Whisper: w, Plan: plan}, nil
}

// Get returns a whisper by id, mapping unknown ids to repo.ErrNotFound
func (uc *WhisperUsecase) Get(ctx context.Context, id int64) (*domain.Whisper, error) {
	return uc.whisperRepo.Get(ctx, id)
}

// ListBySender lists a sender's whispers for the /list surface
func (uc *WhisperUsecase) ListBySender(ctx context.Context, senderID string) ([]*domain.Whisper, error) {
	return uc.whisperRepo.ListBySender(ctx, senderID)
}

// Stats returns store-wide totals for the admin surface
func (uc *WhisperUsecase) Stats(ctx context.Context) (repo.WhisperStats, error) {
	return uc.whisperRepo.Stats(ctx)
}

func (uc *WhisperUsecase) lockFor(id int64) *sync.Mutex {
	uc.locksMu.Lock()
	defer uc.locksMu.Unlock()
	lock, ok := uc.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		uc.locks[id] = lock
	}
	return lock
}

// forgetLock drops the per-id lock entry once the record is terminal or
// absent, so the map does not grow with every reveal ever made. Entries
// for pending records must stay: two attempts holding different mutexes
// for the same pending id could both reach delivery.
func (uc *WhisperUsecase) forgetLock(id int64) {
	uc.locksMu.Lock()
	delete(uc.locks, id)
	uc.locksMu.Unlock()
}

func alreadyRevealed(w *domain.Whisper) *RevealOutcome {
	readBy := w.RevealedBy
	if readBy == "" {
		readBy = "someone"
	}
	return &RevealOutcome{
		Status: RevealAlreadyRevealed,
		ReadBy: readBy,
		Age:    w.RevealedAgo(time.Now()),
	}
}

func textOf(items []domain.MediaItem) string {
	var sb strings.Builder
	for _, item := range items {
		if item.Text != "" {
			sb.WriteString(item.Text)
			sb.WriteString("\n")
		}
		if item.Caption != "" {
			sb.WriteString(item.Caption)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
