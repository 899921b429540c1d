package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUnknown is an inbound frame whose type is not recognized.
	CommandUnknown CommandKind = iota
	// CommandSendMessage posts a new message to the channel.
	CommandSendMessage
	// CommandEditMessage replaces the content of an own message.
	CommandEditMessage
	// CommandDeleteMessage soft-deletes an own message.
	CommandDeleteMessage
	// CommandTypingStart marks the sender as typing.
	CommandTypingStart
	// CommandTypingStop marks the sender as idle.
	CommandTypingStop
	// CommandReactionAdd adds the sender to a reaction of a cached message.
	CommandReactionAdd
	// CommandReactionRemove removes the sender from a reaction of a cached message.
	CommandReactionRemove
	// CommandPing asks for a pong.
	CommandPing
)

var commandNames = map[CommandKind]string{
	CommandUnknown:        "unknown",
	CommandSendMessage:    "send_message",
	CommandEditMessage:    "edit_message",
	CommandDeleteMessage:  "delete_message",
	CommandTypingStart:    "typing_start",
	CommandTypingStop:     "typing_stop",
	CommandReactionAdd:    "reaction_add",
	CommandReactionRemove: "reaction_remove",
	CommandPing:           "ping",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// CommandKindFromType maps a wire type to a CommandKind.
func CommandKindFromType(t string) CommandKind {
	for kind, name := range commandNames {
		if kind != CommandUnknown && name == t {
			return kind
		}
	}
	return CommandUnknown
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	// Type is the raw wire type, kept for error reporting on unknown commands.
	Type   string
	UserID string

	Content     string
	MessageID   string
	ThreadID    string
	ReplyTo     string
	Attachments []Attachment
	Reaction    string
	Mentions    []string
}
