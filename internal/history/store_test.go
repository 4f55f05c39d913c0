package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/session"
)

func sampleConversation() *session.Conversation {
	conv := session.New(7)
	conv.CharFile = "eve.yaml"
	conv.BotName = "Eve"
	conv.AppendTurn("You: hi", "Eve: hello")
	return conv
}

// Both stores write the same payload; run the contract against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		fileStore.Close()
		sqliteStore.Close()
	})
	return map[string]Store{"file": fileStore, "sqlite": sqliteStore}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(sampleConversation()))

			restored := session.New(7)
			restored.CharFile = "eve.yaml"
			require.True(t, store.Load(restored))
			assert.Equal(t, "Eve", restored.BotName)
			require.Equal(t, 1, restored.Len())
			assert.Equal(t, "Eve: hello", restored.LastResponse())
		})
	}
}

func TestStoreBotNameFallback(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Saved before the character file was known.
			conv := sampleConversation()
			conv.CharFile = ""
			require.NoError(t, store.Save(conv))

			restored := session.New(7)
			restored.BotName = "Eve"
			require.True(t, store.Load(restored))
			assert.Equal(t, "Eve: hello", restored.LastResponse())
			// The key used on load becomes the character file.
			assert.Equal(t, "Eve", restored.CharFile)
		})
	}
}

func TestStoreLoadDefault(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(sampleConversation()))

			restored := session.New(7)
			require.True(t, store.LoadDefault(restored))
			assert.Equal(t, "Eve", restored.BotName)
		})
	}
}

func TestStoreLoadMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			conv := session.New(404)
			conv.CharFile = "nobody.yaml"
			assert.False(t, store.Load(conv))
			assert.False(t, store.LoadDefault(conv))
		})
	}
}
