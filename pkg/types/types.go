package types

import (
	"time"

	"github.com/google/uuid"
)

// SystemUser is the synthetic author of hub-generated announcements
// (joins, leaves, bans, deletions).
const SystemUser = "System"

// Message is a single chat entry. Messages are immutable once stored;
// the only mutation the system performs is removal by ID.
type Message struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	System    bool      `json:"system,omitempty"`
}

// NewMessage builds a message with a server-generated ID and timestamp.
// The server controls message IDs to prevent client manipulation.
func NewMessage(user, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		User:      user,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemMessage builds an announcement authored by the System identity.
func NewSystemMessage(text string) Message {
	m := NewMessage(SystemUser, text)
	m.System = true
	return m
}
