package core

import (
	"slices"
	"time"

	"github.com/vovakirdan/wirechat-channel/internal/store"
)

// Attachment is an opaque reference to an uploaded object.
type Attachment = store.Attachment

// Message is the domain model for a chat message.
type Message struct {
	ID           string       `json:"id"`
	ChannelID    string       `json:"channelId"`
	AuthorID     string       `json:"authorId"`
	AuthorName   string       `json:"authorName"`
	AuthorAvatar string       `json:"authorAvatar,omitempty"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"createdAt"`
	Edited       bool         `json:"edited"`
	EditedAt     *time.Time   `json:"editedAt,omitempty"`
	Deleted      bool         `json:"deleted"`
	ThreadID     string       `json:"threadId,omitempty"`
	ReplyToID    string       `json:"replyToId,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Reactions    Reactions    `json:"reactions,omitempty"`
	Mentions     []string     `json:"mentions,omitempty"`
}

// Clone returns a deep copy so callers can mutate it without touching the window.
func (m Message) Clone() Message {
	out := m
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	out.Attachments = slices.Clone(m.Attachments)
	out.Mentions = slices.Clone(m.Mentions)
	out.Reactions = m.Reactions.Clone()
	return out
}

// Reactions maps a reaction key to the users who reacted with it.
// Each user list is kept without duplicates and in insertion order.
type Reactions map[string][]string

// Clone returns a deep copy of r.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for k, users := range r {
		out[k] = slices.Clone(users)
	}
	return out
}

// Add records userID under key. Returns false if it was already present.
func (r Reactions) Add(key, userID string) bool {
	if slices.Contains(r[key], userID) {
		return false
	}
	r[key] = append(r[key], userID)
	return true
}

// Remove drops userID from key and prunes the key once no users remain.
// Returns false if userID had not reacted with key.
func (r Reactions) Remove(key, userID string) bool {
	users := r[key]
	i := slices.Index(users, userID)
	if i < 0 {
		return false
	}
	users = slices.Delete(users, i, i+1)
	if len(users) == 0 {
		delete(r, key)
		return true
	}
	r[key] = users
	return true
}

// PresenceStatus describes whether a member is connected.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Member is the cached display and presence record of a user in a channel.
type Member struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	AvatarRef   string         `json:"avatarRef,omitempty"`
	Status      PresenceStatus `json:"status"`
}

const (
	placeholderName   = "Unknown User"
	placeholderAvatar = ""
)

func messageFromRow(row *store.Message) Message {
	msg := Message{
		ID:           row.ID,
		ChannelID:    row.ChannelID,
		AuthorID:     row.UserID,
		AuthorName:   row.Username,
		AuthorAvatar: row.ProfileImage,
		Content:      row.Content,
		CreatedAt:    row.Timestamp,
		Edited:       row.Edited,
		EditedAt:     row.EditedAt,
		Deleted:      row.Deleted,
		Attachments:  row.Attachments,
		Mentions:     row.Mentions,
	}
	if row.ThreadID != nil {
		msg.ThreadID = *row.ThreadID
	}
	if row.ReplyTo != nil {
		msg.ReplyToID = *row.ReplyTo
	}
	return msg
}

func rowFromMessage(msg Message) *store.Message {
	row := &store.Message{
		ID:           msg.ID,
		ChannelID:    msg.ChannelID,
		UserID:       msg.AuthorID,
		Content:      msg.Content,
		Timestamp:    msg.CreatedAt,
		Edited:       msg.Edited,
		EditedAt:     msg.EditedAt,
		Deleted:      msg.Deleted,
		Username:     msg.AuthorName,
		ProfileImage: msg.AuthorAvatar,
		Attachments:  msg.Attachments,
		Mentions:     msg.Mentions,
	}
	if msg.ThreadID != "" {
		threadID := msg.ThreadID
		row.ThreadID = &threadID
	}
	if msg.ReplyToID != "" {
		replyTo := msg.ReplyToID
		row.ReplyTo = &replyTo
	}
	return row
}
