package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// CreationFlowUsecase drives the multi-step /create conversation: first a
// recipient, then any number of content items, closed by done or cancel.
// The whisper store is only touched at Finish; an abandoned flow persists
// nothing.
type CreationFlowUsecase struct {
	sessionRepo repo.SessionRepo
	whisperUC   *WhisperUsecase
	config      domain.SessionConfig
}

// NewCreationFlowUsecase creates the creation flow usecase
func NewCreationFlowUsecase(sessionRepo repo.SessionRepo, whisperUC *WhisperUsecase, config domain.SessionConfig) *CreationFlowUsecase {
	return &CreationFlowUsecase{
		sessionRepo: sessionRepo,
		whisperUC:   whisperUC,
		config:      config,
	}
}

// Begin starts (or restarts) a creation session for user+chat
func (uc *CreationFlowUsecase) Begin(ctx context.Context, userID, chatID string) (*domain.CreationSession, error) {
	s := domain.NewCreationSession(userID, chatID)
	if err := uc.sessionRepo.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save creation session: %w", err)
	}
	return s, nil
}

// Active returns the fresh session for user+chat, nil when none exists.
// A stale session is dropped on sight.
func (uc *CreationFlowUsecase) Active(ctx context.Context, userID, chatID string) (*domain.CreationSession, error) {
	s, err := uc.sessionRepo.Get(ctx, userID, chatID)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.IsFresh(uc.config) {
		_ = uc.sessionRepo.Delete(ctx, userID, chatID)
		return nil, nil
	}
	return s, nil
}

// SetRecipient parses and records the recipient, advancing the flow
func (uc *CreationFlowUsecase) SetRecipient(ctx context.Context, userID, chatID, raw string) (domain.Recipient, error) {
	s, err := uc.Active(ctx, userID, chatID)
	if err != nil {
		return domain.Recipient{}, err
	}
	if s == nil {
		return domain.Recipient{}, domain.ErrFlowState
	}
	recipient, err := domain.ParseRecipient(raw)
	if err != nil {
		return domain.Recipient{}, err
	}
	if err := s.SetRecipient(recipient); err != nil {
		return domain.Recipient{}, err
	}
	if err := uc.sessionRepo.Save(ctx, s); err != nil {
		return domain.Recipient{}, fmt.Errorf("failed to save creation session: %w", err)
	}
	return recipient, nil
}

// AddItem appends one content item to the flow
func (uc *CreationFlowUsecase) AddItem(ctx context.Context, userID, chatID string, item domain.MediaItem) error {
	s, err := uc.Active(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if s == nil {
		return domain.ErrFlowState
	}
	if err := s.AddItem(item); err != nil {
		return err
	}
	if err := uc.sessionRepo.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save creation session: %w", err)
	}
	return nil
}

// Finish closes the flow and persists the whisper. With no collected
// content the flow is simply discarded and ErrEmptyContent is returned.
func (uc *CreationFlowUsecase) Finish(ctx context.Context, userID, chatID, senderName string) (*domain.Whisper, error) {
	s, err := uc.Active(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrFlowState
	}

	defer func() { _ = uc.sessionRepo.Delete(ctx, userID, chatID) }()

	if s.State != domain.FlowCollectingContent || !domain.HasContent(s.Items) {
		return nil, domain.ErrEmptyContent
	}

	sender := domain.Identity{UserID: userID}
	return uc.whisperUC.CreateFor(ctx, sender, senderName, s.Recipient, s.Items)
}

// Cancel discards the flow without persisting anything
func (uc *CreationFlowUsecase) Cancel(ctx context.Context, userID, chatID string) error {
	return uc.sessionRepo.Delete(ctx, userID, chatID)
}

// CleanupStale drops sessions abandoned past the idle timeout
func (uc *CreationFlowUsecase) CleanupStale(ctx context.Context) (int64, error) {
	if uc.config.IdleTimeout <= 0 {
		return 0, nil
	}
	return uc.sessionRepo.CleanupStale(ctx, time.Now().Add(-uc.config.IdleTimeout))
}
