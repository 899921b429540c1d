package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-channel/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedMessages(t *testing.T, s *SQLiteStore, channelID string, n int, base time.Time) []*store.Message {
	t.Helper()

	ctx := context.Background()
	out := make([]*store.Message, 0, n)
	for i := range n {
		msg := &store.Message{
			ID:        fmt.Sprintf("%s-m%03d", channelID, i),
			ChannelID: channelID,
			UserID:    "alice",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Username:  "Alice",
		}
		require.NoError(t, s.InsertMessage(ctx, msg))
		out = append(out, msg)
	}
	return out
}

func TestInsertAndGetMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread := "t1"
	msg := &store.Message{
		ID:        "m1",
		ChannelID: "general",
		UserID:    "alice",
		Content:   "hello",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		ThreadID:  &thread,
		Username:  "Alice",
		Attachments: []store.Attachment{
			{ID: "a1", Filename: "cat.png", Size: 42, ContentType: "image/png", URL: "/files/a1"},
		},
		Mentions: []string{"bob"},
	}
	require.NoError(t, s.InsertMessage(ctx, msg))

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, msg.Content, got.Content)
	require.True(t, msg.Timestamp.Equal(got.Timestamp))
	require.NotNil(t, got.ThreadID)
	require.Equal(t, "t1", *got.ThreadID)
	require.Nil(t, got.ReplyTo)
	require.Equal(t, msg.Attachments, got.Attachments)
	require.Equal(t, []string{"bob"}, got.Mentions)

	_, err = s.GetMessage(ctx, "missing")
	require.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestInsertDuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{ID: "dup", ChannelID: "c", UserID: "u", Content: "x", Timestamp: time.Now()}
	require.NoError(t, s.InsertMessage(ctx, msg))
	require.Error(t, s.InsertMessage(ctx, msg))
}

func TestUpdateAndSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMessages(t, s, "general", 3, time.Now().UTC())

	editedAt := time.Now().UTC()
	require.NoError(t, s.UpdateMessageContent(ctx, "general-m001", "changed", editedAt))

	got, err := s.GetMessage(ctx, "general-m001")
	require.NoError(t, err)
	require.Equal(t, "changed", got.Content)
	require.True(t, got.Edited)
	require.NotNil(t, got.EditedAt)

	require.NoError(t, s.MarkMessageDeleted(ctx, "general-m000"))

	deleted, err := s.GetMessage(ctx, "general-m000")
	require.NoError(t, err, "soft-deleted rows must remain readable")
	require.True(t, deleted.Deleted)

	listed, err := s.ListMessages(ctx, "general", 50, nil)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "general-m001", listed[0].ID)

	err = s.UpdateMessageContent(ctx, "nope", "x", editedAt)
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListMessagesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seeded := seedMessages(t, s, "general", 10, base)
	seedMessages(t, s, "other", 4, base)

	tests := []struct {
		name     string
		limit    int
		before   *time.Time
		expected []string
	}{
		{
			name:     "latest three ascending",
			limit:    3,
			expected: []string{"general-m007", "general-m008", "general-m009"},
		},
		{
			name:     "before is exclusive",
			limit:    2,
			before:   &seeded[5].Timestamp,
			expected: []string{"general-m003", "general-m004"},
		},
		{
			name:     "limit larger than history",
			limit:    100,
			before:   &seeded[2].Timestamp,
			expected: []string{"general-m000", "general-m001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMessages(ctx, "general", tt.limit, tt.before)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			require.Equal(t, tt.expected, ids)
		})
	}
}

func TestUserDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetUserInfo(ctx, "alice")
	require.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.SaveUser(ctx, &store.UserInfo{UserID: "alice", Username: "Alice", Avatar: "a.png"}))
	require.NoError(t, s.SaveUser(ctx, &store.UserInfo{UserID: "alice", Username: "Alice B", Avatar: "b.png"}))

	info, err := s.GetUserInfo(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice B", info.Username)
	require.Equal(t, "b.png", info.Avatar)
}
