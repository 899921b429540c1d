package proto

// Inbound is the envelope for commands coming from the client.
type Inbound struct {
	Type        string       `json:"type"`
	Content     string       `json:"content,omitempty"`
	MessageID   string       `json:"messageId,omitempty"`
	ThreadID    string       `json:"threadId,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reaction    string       `json:"reaction,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
}

const (
	InboundTypeSendMessage    = "send_message"
	InboundTypeEditMessage    = "edit_message"
	InboundTypeDeleteMessage  = "delete_message"
	InboundTypeTypingStart    = "typing_start"
	InboundTypeTypingStop     = "typing_stop"
	InboundTypeReactionAdd    = "reaction_add"
	InboundTypeReactionRemove = "reaction_remove"
	InboundTypePing           = "ping"

	OutboundTypeInit            = "init"
	OutboundTypeNewMessage      = "new_message"
	OutboundTypeMessageEdited   = "message_edited"
	OutboundTypeMessageDeleted  = "message_deleted"
	OutboundTypeTypingStart     = "typing_start"
	OutboundTypeTypingStop      = "typing_stop"
	OutboundTypeUserJoined      = "user_joined"
	OutboundTypeUserLeft        = "user_left"
	OutboundTypeUserList        = "user_list"
	OutboundTypeReactionAdded   = "reaction_added"
	OutboundTypeReactionRemoved = "reaction_removed"
	OutboundTypeError           = "error"
	OutboundTypePing            = "ping"
	OutboundTypePong            = "pong"
)

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type      string    `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Messages  []Message `json:"messages,omitzero"`
	MessageID string    `json:"messageId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	User      *User     `json:"user,omitempty"`
	Users     []User    `json:"users,omitzero"`
	Reaction  string    `json:"reaction,omitempty"`
	Error     *Error    `json:"error,omitempty"`
}

// Message is the wire form of a chat message. Timestamps are RFC3339 strings.
type Message struct {
	ID           string              `json:"id"`
	ChannelID    string              `json:"channelId"`
	UserID       string              `json:"userId"`
	Username     string              `json:"username"`
	ProfileImage string              `json:"profileImage,omitempty"`
	Content      string              `json:"content"`
	Timestamp    string              `json:"timestamp"`
	Edited       bool                `json:"edited"`
	EditedAt     string              `json:"editedAt,omitempty"`
	Deleted      bool                `json:"deleted"`
	ThreadID     string              `json:"threadId,omitempty"`
	ReplyTo      string              `json:"replyTo,omitempty"`
	Attachments  []Attachment        `json:"attachments"`
	Reactions    map[string][]string `json:"reactions"`
	Mentions     []string            `json:"mentions"`
}

// Attachment describes an uploaded object referenced by a message.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// User is the public presence record of a channel member.
type User struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage,omitempty"`
	Status       string `json:"status"`
}

// HistoryResponse is returned by the history endpoint.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
