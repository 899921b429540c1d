package core

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/wirechat-channel/internal/proto"
)

// EncodeEvent renders ev as a JSON frame. init and user_list always carry
// their array, even when it is empty.
func EncodeEvent(ev Event) ([]byte, error) {
	out := proto.Outbound{
		Type:      ev.Kind.String(),
		MessageID: ev.MessageID,
		UserID:    ev.UserID,
		Reaction:  ev.Reaction,
	}
	if ev.Message != nil {
		wire := WireMessage(*ev.Message)
		out.Message = &wire
	}
	if ev.Messages != nil || ev.Kind == EventInit {
		out.Messages = WireMessages(ev.Messages)
	}
	if ev.User != nil {
		user := wireUser(*ev.User)
		out.User = &user
	}
	if ev.Users != nil || ev.Kind == EventUserList {
		out.Users = make([]proto.User, 0, len(ev.Users))
		for _, m := range ev.Users {
			out.Users = append(out.Users, wireUser(m))
		}
	}
	if ev.Error != nil {
		out.Error = &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message}
	}
	return json.Marshal(out)
}

// WireMessage converts a domain message to its wire form.
func WireMessage(m Message) proto.Message {
	out := proto.Message{
		ID:           m.ID,
		ChannelID:    m.ChannelID,
		UserID:       m.AuthorID,
		Username:     m.AuthorName,
		ProfileImage: m.AuthorAvatar,
		Content:      m.Content,
		Timestamp:    m.CreatedAt.UTC().Format(time.RFC3339Nano),
		Edited:       m.Edited,
		Deleted:      m.Deleted,
		ThreadID:     m.ThreadID,
		ReplyTo:      m.ReplyToID,
		Attachments:  make([]proto.Attachment, 0, len(m.Attachments)),
		Reactions:    make(map[string][]string, len(m.Reactions)),
		Mentions:     make([]string, 0, len(m.Mentions)),
	}
	if m.EditedAt != nil {
		out.EditedAt = m.EditedAt.UTC().Format(time.RFC3339Nano)
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, proto.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			Size:        a.Size,
			ContentType: a.ContentType,
			URL:         a.URL,
		})
	}
	for k, users := range m.Reactions {
		out.Reactions[k] = append([]string(nil), users...)
	}
	out.Mentions = append(out.Mentions, m.Mentions...)
	return out
}

// WireMessages converts a slice of domain messages; the result is never nil.
func WireMessages(msgs []Message) []proto.Message {
	out := make([]proto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, WireMessage(m))
	}
	return out
}

func wireUser(m Member) proto.User {
	return proto.User{
		UserID:       m.UserID,
		Username:     m.DisplayName,
		ProfileImage: m.AvatarRef,
		Status:       string(m.Status),
	}
}

// AttachmentFromWire converts an inbound attachment reference.
func AttachmentFromWire(a proto.Attachment) Attachment {
	return Attachment{
		ID:          a.ID,
		Filename:    a.Filename,
		Size:        a.Size,
		ContentType: a.ContentType,
		URL:         a.URL,
	}
}
