package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-channel/internal/store"
)

// Schema creates the tables used by SQLiteStore. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	id            TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	content       TEXT NOT NULL,
	timestamp     INTEGER NOT NULL,
	thread_id     TEXT,
	reply_to      TEXT,
	edited        BOOLEAN NOT NULL DEFAULT 0,
	edited_at     INTEGER,
	deleted       BOOLEAN NOT NULL DEFAULT 0,
	username      TEXT NOT NULL DEFAULT '',
	profile_image TEXT NOT NULL DEFAULT '',
	attachments   TEXT NOT NULL DEFAULT '[]',
	mentions      TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_messages_channel_ts ON messages(channel_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_user_ts ON messages(user_id, timestamp);

CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	avatar   TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies Schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema runs Schema against db.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// InsertMessage persists a message to storage.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	attachments, err := json.Marshal(nonNilAttachments(msg.Attachments))
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	mentions, err := json.Marshal(nonNilStrings(msg.Mentions))
	if err != nil {
		return fmt.Errorf("encode mentions: %w", err)
	}

	query := `
		INSERT INTO messages (id, channel_id, user_id, content, timestamp, thread_id, reply_to,
			edited, edited_at, deleted, username, profile_image, attachments, mentions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChannelID,
		msg.UserID,
		msg.Content,
		msg.Timestamp.UnixNano(),
		msg.ThreadID,
		msg.ReplyTo,
		msg.Edited,
		nullableUnixNano(msg.EditedAt),
		msg.Deleted,
		msg.Username,
		msg.ProfileImage,
		string(attachments),
		string(mentions),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// UpdateMessageContent sets new content and the edited flag.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	query := `UPDATE messages SET content = ?, edited = 1, edited_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, content, editedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return requireAffected(result, id)
}

// MarkMessageDeleted flags a message as deleted without removing the row.
func (s *SQLiteStore) MarkMessageDeleted(ctx context.Context, id string) error {
	query := `UPDATE messages SET deleted = 1 WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(result, id)
}

const messageColumns = `id, channel_id, user_id, content, timestamp, thread_id, reply_to,
	edited, edited_at, deleted, username, profile_image, attachments, mentions`

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages retrieves non-deleted messages of a channel with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*store.Message, error) {
	var query string
	var args []interface{}

	if before != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE channel_id = ? AND deleted = 0 AND timestamp < ?
			ORDER BY timestamp DESC, rowid DESC
			LIMIT ?
		`
		args = []interface{}{channelID, before.UnixNano(), limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE channel_id = ? AND deleted = 0
			ORDER BY timestamp DESC, rowid DESC
			LIMIT ?
		`
		args = []interface{}{channelID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ==== UserDirectory implementation ====

// GetUserInfo returns the display information of a user.
func (s *SQLiteStore) GetUserInfo(ctx context.Context, userID string) (*store.UserInfo, error) {
	query := `SELECT id, username, avatar FROM users WHERE id = ?`
	var info store.UserInfo
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&info.UserID, &info.Username, &info.Avatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &info, nil
}

// SaveUser inserts or replaces a directory entry.
func (s *SQLiteStore) SaveUser(ctx context.Context, info *store.UserInfo) error {
	query := `
		INSERT INTO users (id, username, avatar) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, avatar = excluded.avatar
	`
	if _, err := s.db.ExecContext(ctx, query, info.UserID, info.Username, info.Avatar); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg         store.Message
		ts          int64
		threadID    sql.NullString
		replyTo     sql.NullString
		editedAt    sql.NullInt64
		attachments string
		mentions    string
	)
	err := row.Scan(
		&msg.ID,
		&msg.ChannelID,
		&msg.UserID,
		&msg.Content,
		&ts,
		&threadID,
		&replyTo,
		&msg.Edited,
		&editedAt,
		&msg.Deleted,
		&msg.Username,
		&msg.ProfileImage,
		&attachments,
		&mentions,
	)
	if err != nil {
		return nil, err
	}

	msg.Timestamp = time.Unix(0, ts).UTC()
	if threadID.Valid {
		msg.ThreadID = &threadID.String
	}
	if replyTo.Valid {
		msg.ReplyTo = &replyTo.String
	}
	if editedAt.Valid {
		t := time.Unix(0, editedAt.Int64).UTC()
		msg.EditedAt = &t
	}
	if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal([]byte(mentions), &msg.Mentions); err != nil {
		return nil, fmt.Errorf("decode mentions: %w", err)
	}
	return &msg, nil
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func nullableUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nonNilAttachments(in []store.Attachment) []store.Attachment {
	if in == nil {
		return []store.Attachment{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
