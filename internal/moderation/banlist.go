// Package moderation holds the shared moderation state: the ban list and
// the per-user rate limiter. Both are owned by the hub and also read by
// the HTTP moderation gateway.
package moderation

import (
	"strings"
	"sync"
)

// BanList is a set of banned user identifiers. Membership is
// case-insensitive and sigil-insensitive: "User1", "@user1" and "user1"
// all refer to the same entry.
type BanList struct {
	mu     sync.RWMutex
	banned map[string]bool
}

// NewBanList creates an empty ban list.
func NewBanList() *BanList {
	return &BanList{banned: make(map[string]bool)}
}

// Normalize canonicalizes a user identifier: trimmed, lowercased, with a
// single leading "@" sigil.
func Normalize(user string) string {
	user = strings.ToLower(strings.TrimSpace(user))
	user = strings.TrimPrefix(user, "@")
	return "@" + user
}

// Ban adds a user to the list. Idempotent.
func (b *BanList) Ban(user string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banned[Normalize(user)] = true
}

// Unban removes a user from the list. Removing a non-member is not an
// error.
func (b *BanList) Unban(user string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.banned, Normalize(user))
}

// IsBanned reports whether a user is on the list, under normalization.
func (b *BanList) IsBanned(user string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.banned[Normalize(user)]
}

// Snapshot returns the normalized banned identifiers, for diagnostics.
func (b *BanList) Snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.banned))
	for user := range b.banned {
		out = append(out, user)
	}
	return out
}
