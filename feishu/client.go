package feishu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// IncomingMessage is a message event received over the websocket
type IncomingMessage struct {
	ChatID     string
	MsgID      string
	ChatType   string // p2p (private), group
	SenderID   string
	Content    string
	CreateTime int64 // milliseconds
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *IncomingMessage)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects via WebSocket and listens for message events (blocking)
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Handler must return quickly so the SDK can ACK; processing happens
	// on a separate goroutine.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")
	return c.wsCli.Start(c.ctx)
}

// Stop stops the client
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	msg := event.Event.Message
	if msg == nil || msg.MessageType == nil || *msg.MessageType != "text" {
		return
	}

	var textContent struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(*msg.Content), &textContent); err != nil {
		fmt.Printf("[Feishu] Failed to parse content: %v\n", err)
		return
	}

	incoming := &IncomingMessage{
		ChatID:  deref(msg.ChatId),
		MsgID:   deref(msg.MessageId),
		Content: textContent.Text,
	}
	if msg.ChatType != nil {
		incoming.ChatType = *msg.ChatType
	}
	if sender := event.Event.Sender; sender != nil && sender.SenderId != nil {
		incoming.SenderID = deref(sender.SenderId.OpenId)
	}

	fmt.Printf("[Feishu] Received message from chat %s: %s\n", incoming.ChatID, truncate(incoming.Content, 50))

	if c.onMessage != nil {
		c.onMessage(incoming)
	}
}

// SendText sends a text message and returns its message id
func (c *Client) SendText(ctx context.Context, receiveID, text string) (string, error) {
	content, _ := json.Marshal(map[string]string{"text": text})
	return c.send(ctx, larkim.ReceiveIdTypeChatId, receiveID, larkim.MsgTypeText, string(content))
}

// SendTextToUser sends a text message to a user's direct chat by open id
func (c *Client) SendTextToUser(ctx context.Context, openID, text string) (string, error) {
	content, _ := json.Marshal(map[string]string{"text": text})
	return c.send(ctx, larkim.ReceiveIdTypeOpenId, openID, larkim.MsgTypeText, string(content))
}

// SendImage sends an uploaded image by key
func (c *Client) SendImage(ctx context.Context, receiveID, imageKey string) (string, error) {
	content, _ := json.Marshal(map[string]string{"image_key": imageKey})
	return c.send(ctx, larkim.ReceiveIdTypeChatId, receiveID, larkim.MsgTypeImage, string(content))
}

// SendFile sends an uploaded file by key
func (c *Client) SendFile(ctx context.Context, receiveID, fileKey string) (string, error) {
	content, _ := json.Marshal(map[string]string{"file_key": fileKey})
	return c.send(ctx, larkim.ReceiveIdTypeChatId, receiveID, larkim.MsgTypeFile, string(content))
}

// SendAudio sends an uploaded audio clip by key
func (c *Client) SendAudio(ctx context.Context, receiveID, fileKey string) (string, error) {
	content, _ := json.Marshal(map[string]string{"file_key": fileKey})
	return c.send(ctx, larkim.ReceiveIdTypeChatId, receiveID, larkim.MsgTypeAudio, string(content))
}

// SendMedia sends an uploaded video by key
func (c *Client) SendMedia(ctx context.Context, receiveID, fileKey string) (string, error) {
	content, _ := json.Marshal(map[string]string{"file_key": fileKey})
	return c.send(ctx, larkim.ReceiveIdTypeChatId, receiveID, larkim.MsgTypeMedia, string(content))
}

func (c *Client) send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Uuid(uuid.NewString()). // idempotency key, the API dedups resends
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %s", resp.Msg)
	}
	return deref(resp.Data.MessageId), nil
}

// ChatMember is one member of a chat
type ChatMember struct {
	MemberID string // open_id
	Name     string
}

// GetChatMembers retrieves all members of a chat, paginating as needed
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]ChatMember, error) {
	var members []ChatMember
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			members = append(members, ChatMember{
				MemberID: deref(item.MemberId),
				Name:     deref(item.Name),
			})
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return members, nil
}

// EditText replaces the text of a sent message
func (c *Client) EditText(ctx context.Context, messageID, text string) error {
	content, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewUpdateMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewUpdateMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Update(ctx, req)
	if err != nil {
		return fmt.Errorf("edit message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("edit message error: %s", resp.Msg)
	}
	return nil
}

// DeleteMessage withdraws a sent message
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
