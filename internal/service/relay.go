package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
)

// RelayConfig tunes the relay surface
type RelayConfig struct {
	PurgeDelay     time.Duration // grace window before delivered content is removed
	PopupWordLimit int           // max words for ephemeral popup delivery
}

// MessageRequest is one incoming user interaction
type MessageRequest struct {
	ChatID       string
	MsgID        string
	SenderID     string
	SenderHandle string // without "@", empty when the transport has none
	SenderName   string
	Private      bool // direct chat with the bot
	Text         string
}

// RelayService handles the whisper command surface. Each request is
// self-contained: its errors never escape to other in-flight whispers.
type RelayService struct {
	whisperUC  *usecase.WhisperUsecase
	creationUC *usecase.CreationFlowUsecase
	userUC     *usecase.UserUsecase
	transport  repo.TransportRepo
	purge      *PurgeScheduler
	config     RelayConfig

	cleanupInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
	running         bool
}

// NewRelayService creates the relay service
func NewRelayService(
	whisperUC *usecase.WhisperUsecase,
	creationUC *usecase.CreationFlowUsecase,
	userUC *usecase.UserUsecase,
	transport repo.TransportRepo,
	purge *PurgeScheduler,
	config RelayConfig,
) *RelayService {
	if config.PurgeDelay <= 0 {
		config.PurgeDelay = 30 * time.Second
	}
	if config.PopupWordLimit <= 0 {
		config.PopupWordLimit = domain.DefaultPopupWordLimit
	}
	return &RelayService{
		whisperUC:       whisperUC,
		creationUC:      creationUC,
		userUC:          userUC,
		transport:       transport,
		purge:           purge,
		config:          config,
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
	}
}

// Start starts the stale-flow sweeper
func (s *RelayService) Start() {
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.cleanupLoop()
}

// Stop stops the sweeper
func (s *RelayService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
}

func (s *RelayService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := s.creationUC.CleanupStale(context.Background()); err != nil {
				fmt.Printf("[Relay] Flow cleanup error: %v\n", err)
			} else if n > 0 {
				fmt.Printf("[Relay] Abandoned %d stale creation flows\n", n)
			}
		case <-s.stopCh:
			return
		}
	}
}

// HandleMessage processes one incoming message
func (s *RelayService) HandleMessage(ctx context.Context, req *MessageRequest) {
	if _, err := s.userUC.Ensure(ctx, req.SenderID, req.SenderHandle, req.SenderName); err != nil {
		fmt.Printf("[Relay] Failed to ensure user %s: %v\n", req.SenderID, err)
	}

	text := strings.TrimSpace(req.Text)
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start", "/help":
		s.reply(ctx, req.ChatID, bannerText)
	case "/create":
		s.handleCreateStart(ctx, req)
	case "/done":
		s.handleCreateDone(ctx, req)
	case "/cancel":
		s.handleCreateCancel(ctx, req)
	case "/attach":
		s.handleAttach(ctx, req, args)
	case "/reveal":
		s.handleReveal(ctx, req, args)
	case "/list":
		s.handleList(ctx, req)
	case "/privacy":
		s.handlePrivacy(ctx, req)
	case "/notifications":
		s.handleNotifications(ctx, req)
	case "/w":
		s.handleCompose(ctx, req, args)
	default:
		s.handleFlowInput(ctx, req, text)
	}
}

// --- creation flow ---

func (s *RelayService) handleCreateStart(ctx context.Context, req *MessageRequest) {
	if _, err := s.creationUC.Begin(ctx, req.SenderID, req.ChatID); err != nil {
		fmt.Printf("[Relay] Failed to begin flow: %v\n", err)
		s.reply(ctx, req.ChatID, "Something went wrong, please try again.")
		return
	}
	s.reply(ctx, req.ChatID, "Let's create a whisper!\n\nSend the recipient: an @handle or a numeric user id.")
}

func (s *RelayService) handleFlowInput(ctx context.Context, req *MessageRequest, text string) {
	session, err := s.creationUC.Active(ctx, req.SenderID, req.ChatID)
	if err != nil || session == nil {
		return // not in a flow, nothing to do
	}

	switch session.State {
	case domain.FlowAwaitingRecipient:
		recipient, err := s.creationUC.SetRecipient(ctx, req.SenderID, req.ChatID, text)
		if errors.Is(err, domain.ErrBadRecipient) {
			s.reply(ctx, req.ChatID, "Invalid recipient. Send an @handle or a numeric user id.")
			return
		}
		if err != nil {
			fmt.Printf("[Relay] Failed to set recipient: %v\n", err)
			return
		}
		s.reply(ctx, req.ChatID, fmt.Sprintf(
			"Recipient set: %s\n\nNow send the whisper text, or /attach media.\nFinish with /done, abort with /cancel.",
			recipient.Display()))
	case domain.FlowCollectingContent:
		if err := s.creationUC.AddItem(ctx, req.SenderID, req.ChatID, domain.TextItem(text)); err != nil {
			fmt.Printf("[Relay] Failed to add item: %v\n", err)
			return
		}
		s.reply(ctx, req.ChatID, "Text added. Send more or /done to finish.")
	}
}

// handleAttach adds a media item by its transport file reference:
// /attach <photo|video|document|audio|voice> <file_ref> [caption]
func (s *RelayService) handleAttach(ctx context.Context, req *MessageRequest, args string) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		s.reply(ctx, req.ChatID, "Usage: /attach <photo|video|document|audio|voice> <file_ref> [caption]")
		return
	}
	item := domain.MediaItem{Kind: domain.MediaKind(parts[0]), FileRef: parts[1]}
	if len(parts) > 2 {
		item.Caption = strings.Join(parts[2:], " ")
	}
	if !item.Kind.Valid() || item.Kind == domain.MediaText {
		s.reply(ctx, req.ChatID, "Unsupported media kind.")
		return
	}

	err := s.creationUC.AddItem(ctx, req.SenderID, req.ChatID, item)
	if errors.Is(err, domain.ErrFlowState) {
		s.reply(ctx, req.ChatID, "Start a whisper with /create first.")
		return
	}
	if err != nil {
		fmt.Printf("[Relay] Failed to attach: %v\n", err)
		return
	}
	s.reply(ctx, req.ChatID, fmt.Sprintf("Added %s. Send more or /done to finish.", parts[0]))
}

func (s *RelayService) handleCreateDone(ctx context.Context, req *MessageRequest) {
	w, err := s.creationUC.Finish(ctx, req.SenderID, req.ChatID, req.SenderName)
	if errors.Is(err, domain.ErrEmptyContent) {
		s.reply(ctx, req.ChatID, "No content added. Whisper cancelled.")
		return
	}
	if errors.Is(err, domain.ErrFlowState) {
		s.reply(ctx, req.ChatID, "No whisper in progress. Start one with /create.")
		return
	}
	if err != nil {
		fmt.Printf("[Relay] Failed to finish flow: %v\n", err)
		s.reply(ctx, req.ChatID, "Something went wrong, please try again.")
		return
	}
	s.reply(ctx, req.ChatID, fmt.Sprintf(
		"A whisper was created for %s\n\nWhisper ID: %d\nThey can open it with /reveal %d in a direct chat.",
		w.Recipient.Display(), w.ID, w.ID))
}

func (s *RelayService) handleCreateCancel(ctx context.Context, req *MessageRequest) {
	_ = s.creationUC.Cancel(ctx, req.SenderID, req.ChatID)
	s.reply(ctx, req.ChatID, "Whisper creation cancelled.")
}

// --- inline compose ---

var (
	composeHandleRe = regexp.MustCompile(`@(\w+)\s*$`)
	composeIDRe     = regexp.MustCompile(`(\d+)\s*$`)
)

// ParseCompose splits a free-text compose query into message and trailing
// recipient. A trailing @handle wins over a trailing digit run; digits are
// only a recipient when no @token closes the query.
func ParseCompose(query string) (message, recipient string, ok bool) {
	query = strings.TrimSpace(query)

	if m := composeHandleRe.FindStringIndex(query); m != nil {
		message = strings.TrimSpace(query[:m[0]])
		recipient = strings.TrimSpace(query[m[0]:m[1]])
		return message, recipient, message != ""
	}
	if m := composeIDRe.FindStringIndex(query); m != nil {
		message = strings.TrimSpace(query[:m[0]])
		recipient = strings.TrimSpace(query[m[0]:m[1]])
		return message, recipient, message != ""
	}
	return "", "", false
}

func (s *RelayService) handleCompose(ctx context.Context, req *MessageRequest, args string) {
	message, recipientRaw, ok := ParseCompose(args)
	if !ok {
		s.reply(ctx, req.ChatID,
			"To send a whisper: /w your secret text @handle\nor: /w your secret text 123456789")
		return
	}

	sender := domain.Identity{UserID: req.SenderID, Handle: req.SenderHandle}
	w, err := s.whisperUC.Create(ctx, sender, req.SenderName, recipientRaw, []domain.MediaItem{domain.TextItem(message)})
	if errors.Is(err, domain.ErrBadRecipient) {
		s.reply(ctx, req.ChatID, "Invalid recipient. End the message with @handle or a numeric user id.")
		return
	}
	if err != nil {
		fmt.Printf("[Relay] Compose failed: %v\n", err)
		s.reply(ctx, req.ChatID, "Could not create the whisper, please try again.")
		return
	}

	s.reply(ctx, req.ChatID, fmt.Sprintf(
		"A whisper for %s\n\nOnly they can reveal it: /reveal %d (in a direct chat with me).",
		w.Recipient.Display(), w.ID))
}

// --- reveal ---

func (s *RelayService) handleReveal(ctx context.Context, req *MessageRequest, args string) {
	if !req.Private {
		s.reply(ctx, req.ChatID, "For privacy, whispers can only be revealed in a direct chat with me.")
		return
	}

	idStr := strings.TrimSpace(args)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if idStr == "" || err != nil {
		s.reply(ctx, req.ChatID, "Please provide a whisper ID, e.g. /reveal 42")
		return
	}

	requester := domain.Identity{UserID: req.SenderID, Handle: req.SenderHandle}
	attribution := s.userUC.Attribution(ctx, requester, req.SenderName)

	var artifacts []repo.ArtifactHandle
	var popupShown bool

	deliver := func(w *domain.Whisper, plan domain.DeliveryPlan) error {
		// Short single-text whispers fit an ephemeral popup; everything
		// else is delivered as standing messages per the plan.
		if text := w.Text(); text != "" && domain.PopupFits(text, s.config.PopupWordLimit) {
			header := "A whisper for you:"
			if w.SenderName != "" {
				header = fmt.Sprintf("Whisper from %s:", w.SenderName)
			}
			err := s.transport.AnswerEphemeral(ctx, req.ChatID, header+"\n\n"+text)
			if err == nil {
				popupShown = true
			}
			return err
		}

		handles, err := s.deliverPlan(ctx, req.ChatID, w, plan)
		artifacts = append(artifacts, handles...)
		return err
	}

	outcome, err := s.whisperUC.AttemptReveal(ctx, id, requester, attribution, deliver)
	if err != nil {
		fmt.Printf("[Relay] Reveal error for %d: %v\n", id, err)
		s.reply(ctx, req.ChatID, "Something went wrong, please try again.")
		return
	}

	switch outcome.Status {
	case usecase.RevealNotFound:
		s.reply(ctx, req.ChatID, "This whisper has expired or doesn't exist.")
	case usecase.RevealUnauthorized:
		s.reply(ctx, req.ChatID, "This whisper is not for you.")
	case usecase.RevealAlreadyRevealed:
		s.reply(ctx, req.ChatID, fmt.Sprintf(
			"This whisper was already revealed by %s (%s).", outcome.ReadBy, outcome.Age))
	case usecase.RevealDeliveryFailed:
		s.reply(ctx, req.ChatID, "Could not deliver the whisper. Please try again.")
	case usecase.RevealDelivered:
		s.finishDelivery(ctx, req, outcome, artifacts, popupShown)
	}
}

func (s *RelayService) deliverPlan(ctx context.Context, chatID string, w *domain.Whisper, plan domain.DeliveryPlan) ([]repo.ArtifactHandle, error) {
	var handles []repo.ArtifactHandle
	for _, unit := range plan.Units {
		if unit.Grouped {
			hs, err := s.transport.SendGrouped(ctx, chatID, unit.Items)
			handles = append(handles, hs...)
			if err != nil {
				return handles, err
			}
			continue
		}
		item := unit.Items[0]
		if item.Kind == domain.MediaText {
			h, err := s.transport.SendText(ctx, chatID, item.Text)
			if err != nil {
				return handles, err
			}
			handles = append(handles, h)
			continue
		}
		hs, err := s.transport.SendMedia(ctx, chatID, item)
		handles = append(handles, hs...)
		if err != nil {
			return handles, err
		}
	}
	return handles, nil
}

func (s *RelayService) finishDelivery(ctx context.Context, req *MessageRequest, outcome *usecase.RevealOutcome, artifacts []repo.ArtifactHandle, popupShown bool) {
	w := outcome.Whisper

	if !popupShown {
		confirm, err := s.transport.SendText(ctx, req.ChatID, fmt.Sprintf(
			"Whisper revealed. This content will be removed in %d seconds.",
			int(s.config.PurgeDelay.Seconds())))
		if err == nil {
			artifacts = append(artifacts, confirm)
		}
		s.purge.Schedule(artifacts, s.config.PurgeDelay)
	}

	s.notifySender(ctx, w)
}

// notifySender sends a read receipt to the whisper's sender, honoring
// their notification preference. Best-effort.
func (s *RelayService) notifySender(ctx context.Context, w *domain.Whisper) {
	sender, err := s.userUC.Get(ctx, w.SenderID)
	if err != nil || !sender.Notifications {
		return
	}
	if err := s.transport.NotifyUser(ctx, w.SenderID, fmt.Sprintf(
		"%s read your whisper #%d.", w.RevealedBy, w.ID)); err != nil {
		fmt.Printf("[Relay] Read receipt to %s failed: %v\n", w.SenderID, err)
	}
}

// --- listing and preferences ---

func (s *RelayService) handleList(ctx context.Context, req *MessageRequest) {
	whispers, err := s.whisperUC.ListBySender(ctx, req.SenderID)
	if err != nil {
		fmt.Printf("[Relay] List failed: %v\n", err)
		s.reply(ctx, req.ChatID, "Something went wrong, please try again.")
		return
	}
	if len(whispers) == 0 {
		s.reply(ctx, req.ChatID, "You don't have any whispers. Use /create to make one!")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your whispers:\n\n")
	for _, w := range whispers {
		status := "pending"
		if w.IsRevealed() {
			status = "read"
		}
		fmt.Fprintf(&sb, "#%d  to %s  items: %d  %s\n", w.ID, w.Recipient.Display(), len(w.Items), status)
	}
	s.reply(ctx, req.ChatID, sb.String())
}

func (s *RelayService) handlePrivacy(ctx context.Context, req *MessageRequest) {
	enabled, err := s.userUC.TogglePrivacy(ctx, req.SenderID)
	if err != nil {
		fmt.Printf("[Relay] Privacy toggle failed: %v\n", err)
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.reply(ctx, req.ChatID, fmt.Sprintf(
		"Privacy mode is now %s.\nWhen enabled, your name is hidden from read receipts.", state))
}

func (s *RelayService) handleNotifications(ctx context.Context, req *MessageRequest) {
	enabled, err := s.userUC.ToggleNotifications(ctx, req.SenderID)
	if err != nil {
		fmt.Printf("[Relay] Notifications toggle failed: %v\n", err)
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.reply(ctx, req.ChatID, fmt.Sprintf("Read receipts are now %s.", state))
}

// --- helpers ---

func (s *RelayService) reply(ctx context.Context, chatID, text string) {
	if _, err := s.transport.SendText(ctx, chatID, text); err != nil {
		fmt.Printf("[Relay] Reply to %s failed: %v\n", chatID, err)
	}
}

func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	if i := strings.IndexByte(text, ' '); i > 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

const bannerText = `I'm your whisper relay.
Send secret one-time messages that only the chosen recipient can open.

Quick send: /w your secret text @handle  (or a numeric user id)

Commands:
/create - create a whisper with media and albums
/reveal <id> - open a whisper addressed to you (direct chat only)
/list - your whispers and their status
/privacy - hide your name from read receipts
/notifications - toggle read receipts for your whispers`
