package data

import (
	"context"

	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
	"github.com/shadowbotshq/whisper-relay/moderation"
)

// moderationRepo implements content review via the moderation client
type moderationRepo struct {
	client *moderation.Client
}

// NewModerationRepo creates a moderation-backed filter repository.
// Returns nil when no client is configured; a nil filter means all
// content is allowed.
func NewModerationRepo(client *moderation.Client) repo.FilterRepo {
	if client == nil {
		return nil
	}
	return &moderationRepo{client: client}
}

// AllowContent reviews whisper text before it is persisted
func (r *moderationRepo) AllowContent(ctx context.Context, text string) (bool, string, error) {
	if text == "" {
		return true, "", nil
	}
	return r.client.Review(ctx, text)
}
