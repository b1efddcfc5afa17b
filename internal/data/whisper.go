package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// whisperRepo implements the whisper store on SQLite
type whisperRepo struct {
	db *sql.DB
}

// OpenDB opens (and initializes) the relay database
func OpenDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The store is a single shared resource; one connection serializes
	// writers without busy errors.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS whispers (
			id INTEGER PRIMARY KEY,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			recipient TEXT NOT NULL,
			recipient_kind TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			items TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			revealed_by TEXT NOT NULL DEFAULT '',
			revealed_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create whispers table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_whispers_sender ON whispers(sender_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_whispers_state ON whispers(state)`)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			privacy_mode INTEGER NOT NULL DEFAULT 0,
			notifications INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// Monotonic id counter, seeded at 1 on first open and never reset
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create counters table: %w", err)
	}
	_, err = db.Exec(`INSERT OR IGNORE INTO counters (name, value) VALUES ('next_whisper_id', 1)`)
	if err != nil {
		return fmt.Errorf("failed to seed id counter: %w", err)
	}
	return nil
}

// NewWhisperRepo creates a SQLite-backed whisper repository
func NewWhisperRepo(db *sql.DB) repo.WhisperRepo {
	return &whisperRepo{db: db}
}

// AllocateID hands out the next whisper id, committing the bump before
// returning so a restart can never reuse an id
func (r *whisperRepo) AllocateID(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE name = 'next_whisper_id'`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read id counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE counters SET value = ? WHERE name = 'next_whisper_id'`, id+1); err != nil {
		return 0, fmt.Errorf("failed to advance id counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit id allocation: %w", err)
	}
	return id, nil
}

// Create persists a new whisper
func (r *whisperRepo) Create(ctx context.Context, w *domain.Whisper) error {
	items, err := json.Marshal(w.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	var revealedAt int64
	if !w.RevealedAt.IsZero() {
		revealedAt = w.RevealedAt.Unix()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO whispers (id, sender_id, sender_name, recipient, recipient_kind, created_at, items, state, revealed_by, revealed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.ID,
		w.SenderID,
		w.SenderName,
		w.Recipient.Descriptor,
		string(w.Recipient.Kind),
		w.CreatedAt.Unix(),
		string(items),
		string(w.State),
		w.RevealedBy,
		revealedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert whisper: %w", err)
	}
	return nil
}

// Get returns the whisper or repo.ErrNotFound
func (r *whisperRepo) Get(ctx context.Context, id int64) (*domain.Whisper, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sender_id, sender_name, recipient, recipient_kind, created_at, items, state, revealed_by, revealed_at
		FROM whispers WHERE id = ?
	`, id)
	return scanWhisper(row)
}

// Update applies mutate inside one transaction: read, mutate, write. The
// single-writer connection makes the read-modify-write atomic per record.
func (r *whisperRepo) Update(ctx context.Context, id int64, mutate func(*domain.Whisper) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, sender_id, sender_name, recipient, recipient_kind, created_at, items, state, revealed_by, revealed_at
		FROM whispers WHERE id = ?
	`, id)
	w, err := scanWhisper(row)
	if err != nil {
		return err
	}

	if err := mutate(w); err != nil {
		return err
	}

	items, err := json.Marshal(w.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	var revealedAt int64
	if !w.RevealedAt.IsZero() {
		revealedAt = w.RevealedAt.Unix()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE whispers
		SET items = ?, state = ?, revealed_by = ?, revealed_at = ?
		WHERE id = ?
	`, string(items), string(w.State), w.RevealedBy, revealedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update whisper: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

// ListBySender lists a sender's whispers, newest first
func (r *whisperRepo) ListBySender(ctx context.Context, senderID string) ([]*domain.Whisper, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, recipient, recipient_kind, created_at, items, state, revealed_by, revealed_at
		FROM whispers WHERE sender_id = ?
		ORDER BY id DESC
	`, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list whispers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Whisper
	for rows.Next() {
		w, err := scanWhisper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Stats returns store-wide totals
func (r *whisperRepo) Stats(ctx context.Context) (repo.WhisperStats, error) {
	var stats repo.WhisperStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN state = 'revealed' THEN 1 ELSE 0 END), 0)
		FROM whispers
	`).Scan(&stats.Total, &stats.Revealed)
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.Pending = stats.Total - stats.Revealed

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.Users); err != nil {
		return stats, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (r *whisperRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWhisper(row rowScanner) (*domain.Whisper, error) {
	var w domain.Whisper
	var kind, state, items string
	var createdAt, revealedAt int64

	err := row.Scan(&w.ID, &w.SenderID, &w.SenderName, &w.Recipient.Descriptor, &kind,
		&createdAt, &items, &state, &w.RevealedBy, &revealedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan whisper: %w", err)
	}

	w.Recipient.Kind = domain.RecipientKind(kind)
	w.State = domain.WhisperState(state)
	w.CreatedAt = time.Unix(createdAt, 0)
	if revealedAt > 0 {
		w.RevealedAt = time.Unix(revealedAt, 0)
	}
	if err := json.Unmarshal([]byte(items), &w.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return &w, nil
}
