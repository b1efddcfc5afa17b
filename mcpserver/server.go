package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
)

// WhisperMCPServer exposes whisper management as MCP tools so agents can
// compose whispers and inspect relay state without the chat surface
type WhisperMCPServer struct {
	server *mcp.Server
}

// Callbacks holds the usecases backing the MCP tools
type Callbacks struct {
	Whisper *usecase.WhisperUsecase
	User    *usecase.UserUsecase
}

var (
	globalCallbacks *Callbacks
	serverMu        sync.Mutex
)

// NewServer creates a new whisper MCP server
func NewServer(callbacks *Callbacks) *WhisperMCPServer {
	serverMu.Lock()
	defer serverMu.Unlock()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "whisper-tools",
		Version: "v1.0.0",
	}, nil)

	ws := &WhisperMCPServer{server: server}
	globalCallbacks = callbacks
	ws.registerTools()
	return ws
}

// Run serves MCP over stdio until the context is cancelled
func (s *WhisperMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *WhisperMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "whisper_create",
		Description: "Create a single-reveal whisper addressed to an @handle or a numeric user id. Returns the whisper id the recipient reveals it with.",
	}, handleCreate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "whisper_list",
		Description: "List the whispers a sender has created, newest first, with their reveal status.",
	}, handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "whisper_stats",
		Description: "Aggregate relay statistics: total, pending and revealed whisper counts plus known users.",
	}, handleStats)
}

// CreateInput is the input for whisper_create
type CreateInput struct {
	SenderID   string `json:"sender_id" jsonschema:"description=Transport user id of the sender"`
	SenderName string `json:"sender_name,omitempty" jsonschema:"description=Display name shown to the recipient"`
	Recipient  string `json:"recipient" jsonschema:"description=Addressee: @handle or numeric user id"`
	Text       string `json:"text" jsonschema:"description=The secret text payload"`
}

// CreateOutput is the output for whisper_create
type CreateOutput struct {
	WhisperID int64  `json:"whisper_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
}

func handleCreate(ctx context.Context, req *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, CreateOutput, error) {
	if globalCallbacks == nil || globalCallbacks.Whisper == nil {
		return nil, CreateOutput{Error: "callback not configured"}, nil
	}
	if input.SenderID == "" {
		return nil, CreateOutput{Error: "sender_id is required"}, nil
	}

	sender := domain.Identity{UserID: input.SenderID}
	w, err := globalCallbacks.Whisper.Create(ctx, sender, input.SenderName, input.Recipient,
		[]domain.MediaItem{domain.TextItem(input.Text)})
	if errors.Is(err, domain.ErrBadRecipient) {
		return nil, CreateOutput{Error: "recipient must be an @handle or a numeric user id"}, nil
	}
	if err != nil {
		return nil, CreateOutput{Error: err.Error()}, nil
	}

	return nil, CreateOutput{WhisperID: w.ID, Recipient: w.Recipient.Display()}, nil
}

// ListInput is the input for whisper_list
type ListInput struct {
	SenderID string `json:"sender_id" jsonschema:"description=Transport user id whose whispers to list"`
}

// WhisperSummary is one whisper in a listing
type WhisperSummary struct {
	ID        int64  `json:"id"`
	Recipient string `json:"recipient"`
	Items     int    `json:"items"`
	Status    string `json:"status"` // pending or read
	ReadBy    string `json:"read_by,omitempty"`
}

// ListOutput is the output for whisper_list
type ListOutput struct {
	Whispers []WhisperSummary `json:"whispers"`
	Error    string           `json:"error,omitempty"`
}

func handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	if globalCallbacks == nil || globalCallbacks.Whisper == nil {
		return nil, ListOutput{Error: "callback not configured"}, nil
	}

	whispers, err := globalCallbacks.Whisper.ListBySender(ctx, input.SenderID)
	if err != nil {
		return nil, ListOutput{Error: fmt.Sprintf("failed to list whispers: %v", err)}, nil
	}

	out := make([]WhisperSummary, 0, len(whispers))
	for _, w := range whispers {
		summary := WhisperSummary{
			ID:        w.ID,
			Recipient: w.Recipient.Display(),
			Items:     len(w.Items),
			Status:    "pending",
		}
		if w.IsRevealed() {
			summary.Status = "read"
			summary.ReadBy = w.RevealedBy
		}
		out = append(out, summary)
	}
	return nil, ListOutput{Whispers: out}, nil
}

// StatsInput is empty, no input needed
type StatsInput struct{}

// StatsOutput carries the relay aggregates
type StatsOutput struct {
	Total    int64  `json:"total"`
	Pending  int64  `json:"pending"`
	Revealed int64  `json:"revealed"`
	Users    int64  `json:"users"`
	Error    string `json:"error,omitempty"`
}

func handleStats(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	if globalCallbacks == nil || globalCallbacks.Whisper == nil {
		return nil, StatsOutput{Error: "callback not configured"}, nil
	}

	stats, err := globalCallbacks.Whisper.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{Error: fmt.Sprintf("failed to load stats: %v", err)}, nil
	}

	return nil, StatsOutput{
		Total:    stats.Total,
		Pending:  stats.Pending,
		Revealed: stats.Revealed,
		Users:    stats.Users,
	}, nil
}
