package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vovakirdan/wirechat-channel/internal/store"
)

// Snapshot keys.
const (
	keyMessages  = "messages"
	keyChannelID = "channelId"
	keyMembers   = "members"
)

// hydrate loads the persisted snapshot and, when the window is still empty
// and the identity is known, the newest messages from the durable store.
func (c *Channel) hydrate(ctx context.Context) {
	if id, err := c.loadChannelID(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to load channel identity")
	} else {
		c.channelID = id
	}

	var members []Member
	if err := c.getJSON(ctx, keyMembers, &members); err != nil {
		c.logger.Error().Err(err).Msg("failed to load members snapshot")
	}
	for i := range members {
		m := members[i]
		// Nobody is connected right after a start.
		m.Status = StatusOffline
		c.members[m.UserID] = &m
	}

	var cached []Message
	if err := c.getJSON(ctx, keyMessages, &cached); err != nil {
		c.logger.Error().Err(err).Msg("failed to load messages snapshot")
	}
	c.window.Reset(cached)
	c.trackNewest()

	if c.window.Len() == 0 && c.channelID != "" {
		c.hydrateFromStore(ctx)
	}

	c.logger.Info().
		Str("channel_id", c.channelID).
		Int("messages", c.window.Len()).
		Int("members", len(c.members)).
		Msg("channel hydrated")
}

func (c *Channel) hydrateFromStore(ctx context.Context) {
	rows, err := c.deps.Messages.ListMessages(ctx, c.channelID, c.opts.HydrateLimit, nil)
	if err != nil {
		c.metrics.PersistenceError("hydrate")
		c.logger.Error().Err(err).Msg("failed to hydrate messages, starting with an empty window")
		return
	}
	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, c.enrich(ctx, messageFromRow(row)))
	}
	c.window.Reset(msgs)
	c.trackNewest()
	c.saveWindow(ctx, "hydrate")
}

func (c *Channel) trackNewest() {
	if n := c.window.Len(); n > 0 {
		if last := c.window.Get(n - 1).CreatedAt; last.After(c.lastStamp) {
			c.lastStamp = last
		}
	}
}

func (c *Channel) initIdentity(ctx context.Context, channelID string) error {
	if channelID == "" {
		return coreError(ErrCodeBadRequest, "channel id is required")
	}
	if c.channelID == channelID {
		return nil
	}
	if c.channelID != "" {
		return fmt.Errorf("%w: %s", ErrIdentityAlreadySet, c.channelID)
	}
	if err := c.putJSON(ctx, keyChannelID, channelID); err != nil {
		c.metrics.PersistenceError("init")
		return fmt.Errorf("persist channel id: %w", err)
	}
	c.channelID = channelID
	c.logger.Info().Str("channel_id", channelID).Msg("channel identity assigned")

	if c.window.Len() == 0 {
		c.hydrateFromStore(ctx)
	}
	return nil
}

func (c *Channel) loadChannelID(ctx context.Context) (string, error) {
	var id string
	if err := c.getJSON(ctx, keyChannelID, &id); err != nil {
		return "", err
	}
	return id, nil
}

// saveWindow persists the window. Failures are logged only: callers use it
// after the relational store already accepted the change.
func (c *Channel) saveWindow(ctx context.Context, reason string) {
	if err := c.putJSON(ctx, keyMessages, c.window.Snapshot()); err != nil {
		c.metrics.PersistenceError("snapshot")
		c.logger.Error().Err(err).Str("reason", reason).Msg("failed to persist messages snapshot")
	}
}

func (c *Channel) saveMembers(ctx context.Context) {
	members := make([]Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	if err := c.putJSON(ctx, keyMembers, members); err != nil {
		c.metrics.PersistenceError("snapshot")
		c.logger.Error().Err(err).Msg("failed to persist members snapshot")
	}
}

func (c *Channel) getJSON(ctx context.Context, key string, v any) error {
	if c.deps.Snapshots == nil {
		return nil
	}
	raw, err := c.deps.Snapshots.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Channel) putJSON(ctx context.Context, key string, v any) error {
	if c.deps.Snapshots == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.deps.Snapshots.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// history reads messages from the durable store. Only reactions come from the window.
func (c *Channel) history(ctx context.Context, limit int, before *time.Time) ([]Message, error) {
	if c.channelID == "" {
		return nil, coreError(ErrCodeChannelUninitialized, "channel is not initialized")
	}
	switch {
	case limit <= 0:
		limit = c.opts.HistoryDefaultLimit
	case limit > c.opts.HistoryMaxLimit:
		limit = c.opts.HistoryMaxLimit
	}

	rows, err := c.deps.Messages.ListMessages(ctx, c.channelID, limit, before)
	if err != nil {
		c.metrics.PersistenceError("history")
		c.logger.Error().Err(err).Msg("failed to load history")
		return nil, coreError(ErrCodePersistence, "failed to load history")
	}

	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		msg := c.enrich(ctx, messageFromRow(row))
		// Reactions are only tracked for cached messages.
		if i := c.window.Find(msg.ID); i >= 0 {
			msg.Reactions = c.window.Get(i).Reactions
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// enrich fills missing author display info from the member cache, then the
// directory, then the placeholder.
func (c *Channel) enrich(ctx context.Context, msg Message) Message {
	if msg.AuthorName != "" {
		return msg
	}
	m := c.lookupMember(ctx, msg.AuthorID)
	msg.AuthorName = m.DisplayName
	if msg.AuthorAvatar == "" {
		msg.AuthorAvatar = m.AvatarRef
	}
	return msg
}
