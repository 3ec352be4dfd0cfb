// Package validation holds input validation rules shared by services and handlers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinChannelNameLen is the minimum normalized channel name length.
	MinChannelNameLen = 2
	// MaxChannelNameLen is the maximum normalized channel name length.
	MaxChannelNameLen = 50
)

var channelNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var reservedChannelNames = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"channels": {},
	"metrics":  {},
	"system":   {},
	"ws":       {},
}

// NormalizeChannelName returns the canonical form of a channel name:
// surrounding whitespace removed and lowercased. Lookups and uniqueness
// both operate on this form.
func NormalizeChannelName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateChannelName validates an already-normalized channel name.
func ValidateChannelName(name string) error {
	if len(name) < MinChannelNameLen || len(name) > MaxChannelNameLen {
		return fmt.Errorf("channel name must be %d-%d characters", MinChannelNameLen, MaxChannelNameLen)
	}

	if !channelNameRegex.MatchString(name) {
		return fmt.Errorf("channel name may contain only lowercase letters, numbers, hyphens, and underscores, and must start with a letter or number")
	}

	if _, exists := reservedChannelNames[name]; exists {
		return fmt.Errorf("channel name is reserved")
	}

	return nil
}
