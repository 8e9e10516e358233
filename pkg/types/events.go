package types

// Outbound event types sent over the WebSocket.
const (
	EventHistory = "history"
	EventMessage = "message"
	EventTyping  = "typing"
	EventDeleted = "deleted"
	EventError   = "error_msg"
)

// Inbound event types accepted from clients. Unknown types are ignored.
const (
	EventJoin = "join"
	EventChat = "message"
	// typing is both an inbound and outbound type
)

// Rejection reasons carried by error_msg events.
const (
	ReasonBanned    = "banned"
	ReasonRateLimit = "rate_limit"
	ReasonRepeat    = "repeat"
)

// Event is the outbound wire envelope. Exactly one payload group is set
// depending on Type.
type Event struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	User     string    `json:"user,omitempty"`
	Typing   *bool     `json:"typing,omitempty"`
	ID       string    `json:"id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Inbound is the decoded form of a client event. Payloads arrive from an
// untrusted transport; fields beyond the ones matching Type are ignored.
type Inbound struct {
	Type   string `json:"type"`
	User   string `json:"user"`
	Text   string `json:"text"`
	Typing bool   `json:"typing"`
}

// HistoryEvent carries the full message snapshot sent once on connect.
func HistoryEvent(messages []Message) Event {
	return Event{Type: EventHistory, Messages: messages}
}

// MessageEvent wraps a single broadcast message.
func MessageEvent(m Message) Event {
	return Event{Type: EventMessage, Message: &m}
}

// TypingEvent signals a typing-indicator change for a user.
func TypingEvent(user string, typing bool) Event {
	return Event{Type: EventTyping, User: user, Typing: &typing}
}

// DeletedEvent tells clients to retract a message from their view.
func DeletedEvent(id string) Event {
	return Event{Type: EventDeleted, ID: id}
}

// ErrorEvent reports a policy rejection to the sender only.
func ErrorEvent(reason string) Event {
	return Event{Type: EventError, Reason: reason}
}
