package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateLast(t *testing.T) {
	t.Run("removes exactly one turn", func(t *testing.T) {
		c := New(1)
		c.AppendTurn("You: hi", "Bot: hello")
		c.AppendTurn("You: more", "Bot: sure")
		c.Last().MessageID = 42

		input, messageID, ok := c.TruncateLast()
		require.True(t, ok)
		assert.Equal(t, "You: more", input)
		assert.Equal(t, int64(42), messageID)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("empty history is a no-op, not a crash", func(t *testing.T) {
		c := New(1)
		_, _, ok := c.TruncateLast()
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}

func TestRollbackLastResponse(t *testing.T) {
	t.Run("double rollback conserves all three responses", func(t *testing.T) {
		c := New(1)
		c.AppendTurn("You: hi", "third")
		last := c.Last()
		last.MessageID = 7
		last.PreviousResponses = []string{"first", "second"}

		resp, ok := c.RollbackLastResponse(7)
		require.True(t, ok)
		assert.Equal(t, "second", resp)

		resp, ok = c.RollbackLastResponse(7)
		require.True(t, ok)
		assert.Equal(t, "first", resp)

		// The rotation lost nothing: all three strings still present.
		all := append([]string{c.LastResponse()}, c.Last().PreviousResponses...)
		assert.ElementsMatch(t, []string{"first", "second", "third"}, all)
	})

	t.Run("unknown message id is not found", func(t *testing.T) {
		c := New(1)
		c.AppendTurn("You: hi", "hello")
		_, ok := c.RollbackLastResponse(99)
		assert.False(t, ok)
	})

	t.Run("turn without previous responses is skipped", func(t *testing.T) {
		c := New(1)
		c.AppendTurn("You: hi", "hello")
		c.Last().MessageID = 7
		_, ok := c.RollbackLastResponse(7)
		assert.False(t, ok)
	})
}

func TestSwitchGreeting(t *testing.T) {
	t.Run("rotates and clears history", func(t *testing.T) {
		c := New(1)
		c.Greeting = "Hi!"
		c.AlternateGreetings = []string{"Hey!"}
		c.AppendTurn("You: hi", "Bot: hello")

		require.True(t, c.SwitchGreeting())
		assert.Equal(t, "Hey!", c.Greeting)
		assert.Equal(t, []string{"Hi!"}, c.AlternateGreetings)
		assert.Empty(t, c.Turns)
	})

	t.Run("greeting count is conserved across repeated swaps", func(t *testing.T) {
		c := New(1)
		c.Greeting = "a"
		c.AlternateGreetings = []string{"b", "c"}
		for i := 0; i < 5; i++ {
			require.True(t, c.SwitchGreeting())
			assert.Len(t, c.AlternateGreetings, 2)
		}
	})

	t.Run("no alternates means no-op", func(t *testing.T) {
		c := New(1)
		c.AppendTurn("You: hi", "Bot: hello")
		assert.False(t, c.SwitchGreeting())
		assert.Equal(t, 1, c.Len())
	})
}

func TestCheckFlooding(t *testing.T) {
	c := New(1)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	require.True(t, c.CheckFlooding(5*time.Second))

	// Second call 3s later is throttled and does not refresh the stamp.
	clock = clock.Add(3 * time.Second)
	assert.False(t, c.CheckFlooding(5*time.Second))

	// 3s after that is 6s past the original stamp, so it passes.
	clock = clock.Add(3 * time.Second)
	assert.True(t, c.CheckFlooding(5*time.Second))
}

func TestExtendLastTurn(t *testing.T) {
	c := New(1)
	c.ExtendLastTurn("x", "y") // empty history no-op

	c.AppendTurn("You: hi", "Bot: hello")
	c.ExtendLastTurn("You: more", "")
	c.ExtendLastTurn("", "Bot: again")

	last := c.Last()
	assert.Equal(t, "You: hi\nYou: more", last.Request)
	assert.Equal(t, "Bot: hello\nBot: again", last.Response)
}

func TestReset(t *testing.T) {
	c := New(9)
	c.Language = "de"
	c.SpeechSpeaker = "anna"
	c.UserName = "Alice"
	c.BotName = "Eve"
	c.Context = "persona"
	c.AppendTurn("Alice: hi", "Eve: hello")

	c.Reset()

	assert.Equal(t, int64(9), c.ChatID)
	assert.Equal(t, "de", c.Language)
	assert.Equal(t, "anna", c.SpeechSpeaker)
	assert.Equal(t, DefaultUserName, c.UserName)
	assert.Equal(t, DefaultBotName, c.BotName)
	assert.Empty(t, c.Context)
	assert.Empty(t, c.Turns)
}
