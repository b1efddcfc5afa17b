package data

import (
	"database/sql"

	"github.com/shadowbotshq/whisper-relay/feishu"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
	"github.com/shadowbotshq/whisper-relay/moderation"
)

// Repositories contains all repositories
type Repositories struct {
	Whisper   repo.WhisperRepo
	User      repo.UserRepo
	Session   repo.SessionRepo
	Transport repo.TransportRepo
	Filter    repo.FilterRepo // nil when moderation is not configured

	db *sql.DB
}

// NewRepositories creates all repositories over one database
func NewRepositories(feishuClient *feishu.Client, moderationClient *moderation.Client, dbPath string) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Whisper:   NewWhisperRepo(db),
		User:      NewUserRepo(db),
		Session:   NewSessionRepo(),
		Transport: NewFeishuRepo(feishuClient),
		Filter:    NewModerationRepo(moderationClient),
		db:        db,
	}, nil
}

// Close closes the underlying database
func (r *Repositories) Close() error {
	return r.db.Close()
}
