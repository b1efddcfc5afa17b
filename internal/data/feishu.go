package data

import (
	"context"
	"fmt"
	"time"

	"github.com/shadowbotshq/whisper-relay/feishu"
	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// ephemeralLifetime is how long a popup-style answer stays visible before
// the adapter withdraws it
const ephemeralLifetime = 8 * time.Second

// feishuRepo implements the transport boundary on the Feishu IM API
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a Feishu-backed transport repository
func NewFeishuRepo(client *feishu.Client) repo.TransportRepo {
	return &feishuRepo{client: client}
}

// SendText sends a persistent text message
func (r *feishuRepo) SendText(ctx context.Context, target, text string) (repo.ArtifactHandle, error) {
	msgID, err := r.client.SendText(ctx, target, text)
	if err != nil {
		return "", err
	}
	return repo.ArtifactHandle(msgID), nil
}

// SendMedia sends a single media item; the caption follows as its own
// message since Feishu media messages carry no caption field. The caption
// is secret content too, so its handle is reported alongside the media's
// and a caption send failure fails the delivery.
func (r *feishuRepo) SendMedia(ctx context.Context, target string, item domain.MediaItem) ([]repo.ArtifactHandle, error) {
	var msgID string
	var err error

	switch item.Kind {
	case domain.MediaText:
		msgID, err = r.client.SendText(ctx, target, item.Text)
	case domain.MediaPhoto:
		msgID, err = r.client.SendImage(ctx, target, item.FileRef)
	case domain.MediaVideo:
		msgID, err = r.client.SendMedia(ctx, target, item.FileRef)
	case domain.MediaAudio, domain.MediaVoice:
		msgID, err = r.client.SendAudio(ctx, target, item.FileRef)
	case domain.MediaDocument:
		msgID, err = r.client.SendFile(ctx, target, item.FileRef)
	default:
		return nil, fmt.Errorf("unsupported media kind %q", item.Kind)
	}
	if err != nil {
		return nil, err
	}

	handles := []repo.ArtifactHandle{repo.ArtifactHandle(msgID)}
	if item.Caption != "" && item.Kind != domain.MediaText {
		capID, err := r.client.SendText(ctx, target, item.Caption)
		if err != nil {
			return handles, err
		}
		handles = append(handles, repo.ArtifactHandle(capID))
	}
	return handles, nil
}

// SendGrouped delivers groupable items as one visual batch. Feishu has no
// album primitive for bot messages, so the batch is consecutive sends with
// every handle reported for later purging.
func (r *feishuRepo) SendGrouped(ctx context.Context, target string, items []domain.MediaItem) ([]repo.ArtifactHandle, error) {
	handles := make([]repo.ArtifactHandle, 0, len(items))
	for _, item := range items {
		hs, err := r.SendMedia(ctx, target, item)
		handles = append(handles, hs...)
		if err != nil {
			return handles, err
		}
	}
	return handles, nil
}

// Edit replaces the text of a delivered message
func (r *feishuRepo) Edit(ctx context.Context, handle repo.ArtifactHandle, newText string) error {
	return r.client.EditText(ctx, string(handle), newText)
}

// Delete removes a delivered message
func (r *feishuRepo) Delete(ctx context.Context, handle repo.ArtifactHandle) error {
	return r.client.DeleteMessage(ctx, string(handle))
}

// NotifyUser sends a text message to a user's direct chat by open id
func (r *feishuRepo) NotifyUser(ctx context.Context, userID, text string) error {
	_, err := r.client.SendTextToUser(ctx, userID, text)
	return err
}

// AnswerEphemeral shows a short-lived notice: sent, then withdrawn after a
// few seconds. Withdrawal failures are swallowed.
func (r *feishuRepo) AnswerEphemeral(ctx context.Context, target, text string) error {
	msgID, err := r.client.SendText(ctx, target, text)
	if err != nil {
		return err
	}
	time.AfterFunc(ephemeralLifetime, func() {
		_ = r.client.DeleteMessage(context.Background(), msgID)
	})
	return nil
}
