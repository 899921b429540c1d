package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-channel/internal/store"
)

func (c *Channel) dispatch(ctx context.Context, cmd Command) {
	var err *CoreError
	switch cmd.Kind {
	case CommandSendMessage:
		err = c.sendMessage(ctx, cmd)
	case CommandEditMessage:
		err = c.editMessage(ctx, cmd)
	case CommandDeleteMessage:
		err = c.deleteMessage(ctx, cmd)
	case CommandReactionAdd, CommandReactionRemove:
		err = c.react(ctx, cmd)
	case CommandTypingStart:
		c.startTyping(ctx, cmd.UserID)
	case CommandTypingStop:
		c.stopTyping(ctx, cmd.UserID)
	case CommandPing:
		c.sendToUser(ctx, cmd.UserID, Event{Kind: EventPong})
	default:
		err = coreError(ErrCodeUnknownType, fmt.Sprintf("unknown message type: %q", cmd.Type))
	}

	if err != nil {
		c.metrics.CommandProcessed(cmd.Kind.String(), err.Code)
		c.sendToUser(ctx, cmd.UserID, Event{Kind: EventError, Error: err})
		return
	}
	c.metrics.CommandProcessed(cmd.Kind.String(), "ok")
}

func (c *Channel) validateContent(content string) (string, *CoreError) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", coreError(ErrCodeBadRequest, "content is required")
	}
	if utf8.RuneCountInString(content) > c.opts.MaxContentLength {
		return "", coreError(ErrCodeBadRequest, fmt.Sprintf("content exceeds %d characters", c.opts.MaxContentLength))
	}
	return content, nil
}

// ownMessage returns the index of a cached message authored by userID.
// Missing and foreign messages yield the same error.
func (c *Channel) ownMessage(messageID, userID string) (int, *CoreError) {
	i := c.window.Find(messageID)
	if i < 0 || c.window.Get(i).AuthorID != userID {
		return -1, coreError(ErrCodeNotFoundOrUnauthorized, "message not found or not yours")
	}
	return i, nil
}

func (c *Channel) persistenceFailed(cmd Command, messageID string, err error) *CoreError {
	c.metrics.PersistenceError(cmd.Kind.String())
	c.logger.Error().
		Err(err).
		Str("command", cmd.Kind.String()).
		Str("user_id", cmd.UserID).
		Str("message_id", messageID).
		Msg("persistence failed, change discarded")
	return coreError(ErrCodePersistence, "failed to save change")
}

// dropStale removes a cached message the durable store no longer knows.
func (c *Channel) dropStale(ctx context.Context, cmd Command, i int) *CoreError {
	c.logger.Warn().Str("message_id", cmd.MessageID).Msg("cached message missing from store, dropping it")
	c.window.Remove(i)
	c.saveWindow(ctx, "stale")
	return coreError(ErrCodeNotFoundOrUnauthorized, "message not found or not yours")
}

func (c *Channel) sendMessage(ctx context.Context, cmd Command) *CoreError {
	content, verr := c.validateContent(cmd.Content)
	if verr != nil {
		return verr
	}
	if c.channelID == "" {
		return coreError(ErrCodeChannelUninitialized, "channel is not initialized")
	}

	author := c.lookupMember(ctx, cmd.UserID)
	msg := Message{
		ID:           c.deps.NewID(),
		ChannelID:    c.channelID,
		AuthorID:     cmd.UserID,
		AuthorName:   author.DisplayName,
		AuthorAvatar: author.AvatarRef,
		Content:      content,
		CreatedAt:    c.nextTimestamp(),
		ThreadID:     cmd.ThreadID,
		ReplyToID:    cmd.ReplyTo,
		Attachments:  slices.Clone(cmd.Attachments),
		Mentions:     uniqueStrings(cmd.Mentions),
	}

	if err := c.deps.Messages.InsertMessage(ctx, rowFromMessage(msg)); err != nil {
		return c.persistenceFailed(cmd, msg.ID, err)
	}

	if evicted := c.window.Append(msg); evicted > 0 {
		c.logger.Debug().Int("evicted", evicted).Int("kept", c.window.Len()).Msg("window trimmed")
	}
	c.saveWindow(ctx, cmd.Kind.String())
	c.broadcast(ctx, Event{Kind: EventNewMessage, Message: &msg}, "")
	return nil
}

func (c *Channel) editMessage(ctx context.Context, cmd Command) *CoreError {
	if cmd.MessageID == "" {
		return coreError(ErrCodeBadRequest, "messageId is required")
	}
	content, verr := c.validateContent(cmd.Content)
	if verr != nil {
		return verr
	}
	i, oerr := c.ownMessage(cmd.MessageID, cmd.UserID)
	if oerr != nil {
		return oerr
	}

	editedAt := c.deps.Now().UTC()
	if err := c.deps.Messages.UpdateMessageContent(ctx, cmd.MessageID, content, editedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.dropStale(ctx, cmd, i)
		}
		return c.persistenceFailed(cmd, cmd.MessageID, err)
	}

	msg := c.window.Get(i)
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &editedAt
	c.window.Replace(i, msg)

	c.saveWindow(ctx, cmd.Kind.String())
	c.broadcast(ctx, Event{Kind: EventMessageEdited, Message: &msg, MessageID: msg.ID}, "")
	return nil
}

func (c *Channel) deleteMessage(ctx context.Context, cmd Command) *CoreError {
	if cmd.MessageID == "" {
		return coreError(ErrCodeBadRequest, "messageId is required")
	}
	i, oerr := c.ownMessage(cmd.MessageID, cmd.UserID)
	if oerr != nil {
		return oerr
	}

	if err := c.deps.Messages.MarkMessageDeleted(ctx, cmd.MessageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.dropStale(ctx, cmd, i)
		}
		return c.persistenceFailed(cmd, cmd.MessageID, err)
	}

	c.window.Remove(i)
	c.saveWindow(ctx, cmd.Kind.String())
	c.broadcast(ctx, Event{Kind: EventMessageDeleted, MessageID: cmd.MessageID}, "")
	return nil
}

// react applies a reaction change to a cached message. The snapshot is the
// only durable copy of reactions, so the window changes only after it is saved.
func (c *Channel) react(ctx context.Context, cmd Command) *CoreError {
	if cmd.MessageID == "" || cmd.Reaction == "" {
		return coreError(ErrCodeBadRequest, "messageId and reaction are required")
	}
	i := c.window.Find(cmd.MessageID)
	if i < 0 {
		return coreError(ErrCodeNotFound, "message not found")
	}

	msg := c.window.Get(i)
	if msg.Reactions == nil {
		msg.Reactions = Reactions{}
	}
	kind := EventReactionAdded
	if cmd.Kind == CommandReactionAdd {
		msg.Reactions.Add(cmd.Reaction, cmd.UserID)
	} else {
		kind = EventReactionRemoved
		msg.Reactions.Remove(cmd.Reaction, cmd.UserID)
	}
	if len(msg.Reactions) == 0 {
		msg.Reactions = nil
	}

	next := c.window.Snapshot()
	next[i] = msg
	if err := c.putJSON(ctx, keyMessages, next); err != nil {
		return c.persistenceFailed(cmd, cmd.MessageID, err)
	}
	c.window.Replace(i, msg)

	c.broadcast(ctx, Event{
		Kind:      kind,
		Message:   &msg,
		MessageID: msg.ID,
		UserID:    cmd.UserID,
		Reaction:  cmd.Reaction,
	}, "")
	return nil
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
