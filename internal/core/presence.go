package core

import (
	"context"
	"errors"
	"sort"

	"github.com/vovakirdan/wirechat-channel/internal/store"
)

func (c *Channel) connect(ctx context.Context, m Member, conn Conn) Conn {
	previous := c.sessions.Register(m.UserID, conn)
	if previous == nil {
		c.metrics.SessionOpened()
	} else {
		c.logger.Debug().Str("user_id", m.UserID).Msg("session replaced by a new connection")
	}

	member := c.upsertMember(ctx, m)
	c.saveMembers(ctx)

	if !c.sendToUser(ctx, m.UserID, Event{Kind: EventInit, Messages: c.window.Snapshot()}) {
		return previous
	}
	if !c.sendToUser(ctx, m.UserID, Event{Kind: EventUserList, Users: c.onlineMembers()}) {
		return previous
	}
	c.broadcast(ctx, Event{Kind: EventUserJoined, UserID: m.UserID, User: &member}, m.UserID)

	c.logger.Info().Str("user_id", m.UserID).Int("sessions", c.sessions.Len()).Msg("user connected")
	return previous
}

func (c *Channel) disconnect(ctx context.Context, userID string, conn Conn) {
	if !c.sessions.Owns(userID, conn) {
		c.logger.Debug().Str("user_id", userID).Msg("ignoring disconnect of a superseded connection")
		return
	}
	c.dropSession(ctx, userID, conn)
	c.logger.Info().Str("user_id", userID).Int("sessions", c.sessions.Len()).Msg("user disconnected")
}

// dropSession runs the disconnect cascade: unregister, clear typing without
// its own broadcast, mark offline and announce user_left to the others.
func (c *Channel) dropSession(ctx context.Context, userID string, conn Conn) {
	if !c.sessions.Owns(userID, conn) {
		return
	}
	c.sessions.Unregister(userID)
	_ = conn.Close()
	c.metrics.SessionClosed()

	c.typing.Stop(userID)
	if m, ok := c.members[userID]; ok {
		m.Status = StatusOffline
	}
	c.broadcast(ctx, Event{Kind: EventUserLeft, UserID: userID}, userID)
}

// upsertMember records m as online. Missing display info is taken from the
// cache, the directory or the placeholder, in that order.
func (c *Channel) upsertMember(ctx context.Context, m Member) Member {
	known := c.lookupMember(ctx, m.UserID)
	if m.DisplayName == "" {
		m.DisplayName = known.DisplayName
	}
	if m.AvatarRef == "" {
		m.AvatarRef = known.AvatarRef
	}
	m.Status = StatusOnline
	stored := m
	c.members[m.UserID] = &stored
	return m
}

// lookupMember never fails: an unknown user gets the placeholder.
func (c *Channel) lookupMember(ctx context.Context, userID string) Member {
	if m, ok := c.members[userID]; ok && m.DisplayName != "" {
		return *m
	}
	m := Member{
		UserID:      userID,
		DisplayName: placeholderName,
		AvatarRef:   placeholderAvatar,
		Status:      StatusOffline,
	}
	if c.deps.Users == nil {
		return m
	}
	info, err := c.deps.Users.GetUserInfo(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("user directory lookup failed")
	default:
		if info.Username != "" {
			m.DisplayName = info.Username
		}
		m.AvatarRef = info.Avatar
	}
	return m
}

func (c *Channel) onlineMembers() []Member {
	out := make([]Member, 0, c.sessions.Len())
	for _, s := range c.sessions.AllExcept("") {
		if m, ok := c.members[s.UserID]; ok {
			out = append(out, *m)
			continue
		}
		out = append(out, Member{UserID: s.UserID, DisplayName: placeholderName, Status: StatusOnline})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (c *Channel) startTyping(ctx context.Context, userID string) {
	if c.typing.Start(userID) {
		c.broadcast(ctx, Event{Kind: EventTypingStart, UserID: userID}, userID)
	}
}

func (c *Channel) stopTyping(ctx context.Context, userID string) {
	if c.typing.Stop(userID) {
		c.broadcast(ctx, Event{Kind: EventTypingStop, UserID: userID}, userID)
	}
}
