// Package store provides the bounded in-memory message log. Nothing here
// is persisted; the log exists only for history replay to joining clients.
package store

import (
	"sync"

	"chatrelay/pkg/types"
)

// DefaultCapacity matches the default deployment history size.
const DefaultCapacity = 200

// MessageStore is an append-only log with FIFO eviction at capacity.
// All methods are safe for concurrent use.
type MessageStore struct {
	mu       sync.RWMutex
	messages []types.Message
	capacity int
}

// NewMessageStore creates an empty store. Non-positive capacities fall
// back to DefaultCapacity.
func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageStore{
		messages: make([]types.Message, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a message to the tail, evicting the oldest entry when the
// log is full. Append always succeeds.
func (s *MessageStore) Append(m types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) < s.capacity {
		s.messages = append(s.messages, m)
		return
	}
	// At capacity: shift left in place and overwrite the tail, so the
	// backing array never grows beyond capacity.
	copy(s.messages, s.messages[1:])
	s.messages[len(s.messages)-1] = m
}

// Snapshot returns a point-in-time copy of the log in append order.
// Concurrent appends after the call do not affect the returned slice.
func (s *MessageStore) Snapshot() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// RemoveByID removes the message with the given ID. The removed message
// and true are returned on success; the zero message and false when no
// entry matches.
func (s *MessageStore) RemoveByID(id string) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return m, true
		}
	}
	return types.Message{}, false
}

// Len reports the current number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
