package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shadowbotshq/whisper-relay/feishu"
	"github.com/shadowbotshq/whisper-relay/internal/service"
)

// FeishuServer bridges incoming Feishu message events to the relay service
type FeishuServer struct {
	feishuClient *feishu.Client
	relaySvc     *service.RelayService
	purge        *service.PurgeScheduler

	// Message deduplication cache, the event channel may redeliver
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(
	feishuClient *feishu.Client,
	relaySvc *service.RelayService,
	purge *service.PurgeScheduler,
) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		relaySvc:     relaySvc,
		purge:        purge,
		seenMsgs:     make(map[string]time.Time),
	}
}

// Start starts the background runners and the event loop (blocking)
func (s *FeishuServer) Start() error {
	s.purge.Start()
	s.relaySvc.Start()

	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.relaySvc.Stop()
	s.purge.Stop()
	s.feishuClient.Stop()
}

func (s *FeishuServer) handleMessage(msg *feishu.IncomingMessage) {
	if s.isMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}
	s.markMessageSeen(msg.MsgID)

	ctx := context.Background()

	req := &service.MessageRequest{
		ChatID:     msg.ChatID,
		MsgID:      msg.MsgID,
		SenderID:   msg.SenderID,
		SenderName: s.resolveSenderName(ctx, msg.ChatID, msg.SenderID),
		Private:    msg.ChatType == "p2p",
		Text:       msg.Content,
	}

	s.relaySvc.HandleMessage(ctx, req)
}

// resolveSenderName looks the sender up in the chat member list. Best
// effort: an empty name degrades display, never handling.
func (s *FeishuServer) resolveSenderName(ctx context.Context, chatID, senderID string) string {
	members, err := s.feishuClient.GetChatMembers(ctx, chatID)
	if err != nil {
		fmt.Printf("[Server] Failed to get chat members for %s: %v\n", chatID, err)
		return ""
	}
	return findMemberName(members, senderID)
}

func findMemberName(members []feishu.ChatMember, senderID string) string {
	for _, m := range members {
		if m.MemberID == senderID {
			return m.Name
		}
	}
	return ""
}

// isMessageSeen checks if a message has been processed
func (s *FeishuServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed
func (s *FeishuServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = time.Now()

	// Expire old records so the cache cannot grow unbounded
	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
