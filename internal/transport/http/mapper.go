package http

import (
	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/proto"
)

func inboundToCommand(userID string, inbound proto.Inbound) core.Command {
	cmd := core.Command{
		Kind:      core.CommandKindFromType(inbound.Type),
		Type:      inbound.Type,
		UserID:    userID,
		Content:   inbound.Content,
		MessageID: inbound.MessageID,
		ThreadID:  inbound.ThreadID,
		ReplyTo:   inbound.ReplyTo,
		Reaction:  inbound.Reaction,
		Mentions:  inbound.Mentions,
	}
	if len(inbound.Attachments) > 0 {
		cmd.Attachments = make([]core.Attachment, 0, len(inbound.Attachments))
		for _, a := range inbound.Attachments {
			cmd.Attachments = append(cmd.Attachments, core.AttachmentFromWire(a))
		}
	}
	return cmd
}

func errorFrame(err *core.CoreError) []byte {
	payload, encErr := core.EncodeEvent(core.Event{Kind: core.EventError, Error: err})
	if encErr != nil {
		return nil
	}
	return payload
}
