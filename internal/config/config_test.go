package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, "echo", cfg.Backend)
		assert.Equal(t, ModeChat, cfg.Mode)
		assert.Equal(t, 4096, cfg.Generation.TruncationLength)
	})

	t.Run("file values override defaults, absent fields keep them", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"backend": "llama-server",
			"backend_url": "http://localhost:9999",
			"lock_timeout_seconds": 2.5
		}`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "llama-server", cfg.Backend)
		assert.Equal(t, 2500*time.Millisecond, cfg.LockTimeout())
		assert.Equal(t, ModeChat, cfg.Mode)
		assert.Equal(t, []string{"++"}, cfg.RenameBotPrefixes)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment overrides the api key", func(t *testing.T) {
		t.Setenv("CONVO_API_KEY", "env-key")
		cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.APIKey)
	})
}

func TestChatLike(t *testing.T) {
	assert.True(t, ChatLike(ModeChat))
	assert.True(t, ChatLike(ModeChatRestricted))
	assert.True(t, ChatLike(ModeAdmin))
	assert.False(t, ChatLike(ModeNotebook))
	assert.False(t, ChatLike(ModeQuery))
}
