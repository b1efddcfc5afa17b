package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client reviews whisper content through an OpenAI-compatible chat API
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a moderation client. baseURL may be empty for the
// default OpenAI endpoint.
func NewClient(apiKey, baseURL, model string) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const reviewPrompt = `You are a content reviewer for a secret-message relay.
Decide whether the following message may be stored and delivered.

Reject only content that is clearly abusive: harassment, threats, doxxing,
scam/phishing text. Everything else is allowed, including flirtation, gossip
and profanity between consenting adults.

Reply with exactly "OK" to allow, or "NO: <short reason>" to reject.`

// Review decides whether text is acceptable. reason is only meaningful
// when allowed is false.
func (c *Client) Review(ctx context.Context, text string) (allowed bool, reason string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reviewPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.1, // deterministic verdicts
		MaxTokens:   60,
	})
	if err != nil {
		return false, "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, "", fmt.Errorf("no response choices")
	}

	verdict := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.EqualFold(verdict, "OK") || strings.HasPrefix(strings.ToUpper(verdict), "OK") {
		return true, "", nil
	}
	reason = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(verdict, "NO:"), "NO"))
	if reason == "" {
		reason = "content not allowed"
	}
	return false, reason, nil
}
