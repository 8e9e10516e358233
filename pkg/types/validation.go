package types

import "strings"

const (
	// FallbackName is assigned when a join supplies no usable name.
	FallbackName = "anon"

	// MaxNameLen bounds display names to keep them reasonable in UI
	// components and log lines.
	MaxNameLen = 32
)

// SanitizeName trims a requested display name, substitutes the fallback
// when nothing usable remains, and truncates to MaxNameLen runes.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return FallbackName
	}
	return Truncate(name, MaxNameLen)
}

// Truncate caps s at max runes. Rune-based so multi-byte text is never
// split mid-character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
