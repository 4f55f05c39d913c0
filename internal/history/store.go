// Package history persists conversation state between process runs. The
// state machine does not depend on the storage format; stores receive the
// whole conversation and hydrate it back tolerantly.
package history

import "convo/internal/session"

// Store saves and restores per-user conversation records.
type Store interface {
	// Save persists the conversation under both its character-specific key
	// and the chat-id default key.
	Save(conv *session.Conversation) error

	// Load hydrates conv from its character-specific record (falling back
	// to the legacy bot-name key where the store supports it). Returns
	// false when nothing was found; conv is left usable either way.
	Load(conv *session.Conversation) bool

	// LoadDefault hydrates conv from the chat-id default record.
	LoadDefault(conv *session.Conversation) bool

	Close() error
}
