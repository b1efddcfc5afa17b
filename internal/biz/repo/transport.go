package repo

import (
	"context"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
)

// ArtifactHandle is an opaque reference to a delivered message, usable
// for later editing and deletion
type ArtifactHandle string

// TransportRepo is the messaging transport boundary consumed by the core.
// The wire protocol behind it is the transport's own concern.
type TransportRepo interface {
	// SendText sends a persistent text message
	SendText(ctx context.Context, target, text string) (ArtifactHandle, error)

	// SendMedia sends a single media item with its caption. A transport may
	// emit the caption as its own message; every handle produced is returned
	// so the purge later covers the whole payload.
	SendMedia(ctx context.Context, target string, item domain.MediaItem) ([]ArtifactHandle, error)

	// SendGrouped delivers groupable items as one visual batch
	SendGrouped(ctx context.Context, target string, items []domain.MediaItem) ([]ArtifactHandle, error)

	// Edit replaces the text of a delivered message
	Edit(ctx context.Context, handle ArtifactHandle, newText string) error

	// Delete removes a delivered message
	Delete(ctx context.Context, handle ArtifactHandle) error

	// AnswerEphemeral shows a transient, auto-dismissing notice to the target
	AnswerEphemeral(ctx context.Context, target, text string) error

	// NotifyUser sends a text message addressed to a user instead of a chat
	NotifyUser(ctx context.Context, userID, text string) error
}
