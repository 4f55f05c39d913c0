package dialog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/config"
	"convo/internal/history"
)

func serviceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CharactersDir = t.TempDir()
	cfg.FloodIntervalSeconds = 0
	return cfg
}

func TestService_ProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("full turn through the pipeline", func(t *testing.T) {
		cfg := serviceConfig(t)
		stub := &stubBackend{answer: "hello there"}
		svc := NewService(cfg, NewDispatcher(cfg, stub), nil)

		res := svc.ProcessMessage(ctx, 1, "hi")
		assert.Equal(t, ActionSend, res.Action)
		assert.Equal(t, "Bot: hello there", res.Answer)
		assert.Equal(t, 1, svc.Session(1).Len())
	})

	t.Run("flood control throttles rapid turns", func(t *testing.T) {
		cfg := serviceConfig(t)
		cfg.FloodIntervalSeconds = 5
		stub := &stubBackend{answer: "ok"}
		svc := NewService(cfg, NewDispatcher(cfg, stub), nil)

		first := svc.ProcessMessage(ctx, 1, "hi")
		assert.Equal(t, ActionSend, first.Action)

		second := svc.ProcessMessage(ctx, 1, "again")
		assert.Equal(t, ActionNothing, second.Action)
		assert.Empty(t, second.Answer)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("async delivers the same result", func(t *testing.T) {
		cfg := serviceConfig(t)
		stub := &stubBackend{answer: "async answer"}
		svc := NewService(cfg, NewDispatcher(cfg, stub), nil)

		res := <-svc.ProcessMessageAsync(ctx, 1, "hi")
		assert.Equal(t, ActionSend, res.Action)
		assert.Equal(t, "Bot: async answer", res.Answer)
	})
}

func TestService_Hydration(t *testing.T) {
	ctx := context.Background()

	t.Run("history survives a restart", func(t *testing.T) {
		cfg := serviceConfig(t)
		cfg.HistoryDir = t.TempDir()
		store, err := history.NewFileStore(cfg.HistoryDir)
		require.NoError(t, err)

		stub := &stubBackend{answer: "remembered"}
		svc := NewService(cfg, NewDispatcher(cfg, stub), store)
		svc.ProcessMessage(ctx, 7, "hi")

		reborn := NewService(cfg, NewDispatcher(cfg, stub), store)
		conv := reborn.Session(7)
		require.Equal(t, 1, conv.Len())
		assert.Equal(t, "Bot: remembered", conv.LastResponse())
	})

	t.Run("character card seeds new sessions", func(t *testing.T) {
		cfg := serviceConfig(t)
		cfg.CharacterFile = "eve.yaml"
		card := "name: Eve\ngreeting: \"Hi!\"\nalternate_greetings: [\"Hey!\"]\n"
		require.NoError(t, os.WriteFile(filepath.Join(cfg.CharactersDir, "eve.yaml"), []byte(card), 0o644))

		stub := &stubBackend{answer: "ok"}
		svc := NewService(cfg, NewDispatcher(cfg, stub), nil)

		conv := svc.Session(1)
		assert.Equal(t, "Eve", conv.BotName)
		assert.Equal(t, "Hi!", conv.Greeting)

		require.True(t, svc.SwitchGreeting(1))
		assert.Equal(t, "Hey!", conv.Greeting)
		assert.Equal(t, []string{"Hi!"}, conv.AlternateGreetings)
	})
}
