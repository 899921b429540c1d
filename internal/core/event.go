package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInit delivers the cached window to a newly connected session.
	EventInit EventKind = iota
	// EventNewMessage announces a sent message.
	EventNewMessage
	// EventMessageEdited carries the full updated message.
	EventMessageEdited
	// EventMessageDeleted carries only the deleted message ID.
	EventMessageDeleted
	// EventTypingStart notifies that a user started typing.
	EventTypingStart
	// EventTypingStop notifies that a user stopped typing.
	EventTypingStop
	// EventUserJoined notifies that a user connected.
	EventUserJoined
	// EventUserLeft notifies that a user disconnected.
	EventUserLeft
	// EventUserList delivers the online members to a newly connected session.
	EventUserList
	// EventReactionAdded notifies that a user reacted to a message.
	EventReactionAdded
	// EventReactionRemoved notifies that a user withdrew a reaction.
	EventReactionRemoved
	// EventError notifies the sender about a failed command.
	EventError
	// EventPing is the heartbeat probe.
	EventPing
	// EventPong answers a client ping.
	EventPong
)

var eventNames = [...]string{
	EventInit:            "init",
	EventNewMessage:      "new_message",
	EventMessageEdited:   "message_edited",
	EventMessageDeleted:  "message_deleted",
	EventTypingStart:     "typing_start",
	EventTypingStop:      "typing_stop",
	EventUserJoined:      "user_joined",
	EventUserLeft:        "user_left",
	EventUserList:        "user_list",
	EventReactionAdded:   "reaction_added",
	EventReactionRemoved: "reaction_removed",
	EventError:           "error",
	EventPing:            "ping",
	EventPong:            "pong",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the channel.
type Event struct {
	Kind      EventKind
	Message   *Message
	Messages  []Message
	MessageID string
	UserID    string
	User      *Member
	Users     []Member
	Reaction  string
	Error     *CoreError
}
