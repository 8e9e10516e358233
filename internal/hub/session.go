package hub

import "chatrelay/pkg/types"

// Conn is the transport side of a chat session. The WebSocket layer
// implements it; tests substitute fakes.
type Conn interface {
	// Send queues an event for delivery. It must not block the caller;
	// an error means the connection is unusable and will be dropped.
	Send(event types.Event) error
	Close() error
}

// Session binds one transport connection to a chosen display identifier.
// It lives only as long as the connection and is mutated exclusively on
// the hub goroutine.
type Session struct {
	conn     Conn
	name     string
	joined   bool
	lastText string // last accepted message text, for repeat suppression
}

// Name returns the display identifier, or "" before the first join.
func (s *Session) Name() string {
	return s.name
}

// Joined reports whether the session has supplied a display identifier.
func (s *Session) Joined() bool {
	return s.joined
}
