package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row or key does not exist.
var ErrNotFound = errors.New("not found")

// Message represents a persisted chat message row.
type Message struct {
	ID           string
	ChannelID    string
	UserID       string
	Content      string
	Timestamp    time.Time
	ThreadID     *string
	ReplyTo      *string
	Edited       bool
	EditedAt     *time.Time
	Deleted      bool
	Username     string
	ProfileImage string
	Attachments  []Attachment
	Mentions     []string
}

// Attachment is an opaque reference to an uploaded object.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// UserInfo is the public profile of a user as known to the directory.
type UserInfo struct {
	UserID   string
	Username string
	Avatar   string
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a new message row.
	InsertMessage(ctx context.Context, msg *Message) error

	// UpdateMessageContent sets new content and marks the row as edited.
	UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error

	// MarkMessageDeleted soft-deletes a row. The row is never removed.
	MarkMessageDeleted(ctx context.Context, id string) error

	// GetMessage retrieves a row by ID, including deleted rows.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListMessages returns non-deleted rows of a channel in ascending timestamp order.
	// If before is provided, only rows strictly older than it are considered.
	// The newest limit rows matching the filter are returned.
	ListMessages(ctx context.Context, channelID string, limit int, before *time.Time) ([]*Message, error)
}

// UserDirectory resolves display information for user IDs.
type UserDirectory interface {
	// GetUserInfo returns the profile of a user or ErrNotFound.
	GetUserInfo(ctx context.Context, userID string) (*UserInfo, error)
}

// SnapshotStore is a durable key-value store scoped to one channel.
type SnapshotStore interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
}

// Store aggregates the relational storage interfaces.
type Store interface {
	MessageStore
	UserDirectory

	// Close closes the underlying database connection.
	Close() error
}
