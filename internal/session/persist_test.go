package session

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	t.Run("round trip keeps turns and names", func(t *testing.T) {
		c := New(5)
		c.UserName = "Alice"
		c.BotName = "Eve"
		c.AppendTurn("Alice: hi", "Eve: hello")
		c.Last().PreviousResponses = []string{"Eve: hi there"}
		c.Last().MessageID = 12

		data, err := json.Marshal(c)
		require.NoError(t, err)

		restored := New(5)
		require.True(t, restored.LoadJSON(data))
		assert.Equal(t, "Alice", restored.UserName)
		assert.Equal(t, "Eve", restored.BotName)
		assert.Empty(t, cmp.Diff(c.Turns, restored.Turns))
	})

	t.Run("missing fields default independently", func(t *testing.T) {
		c := New(1)
		require.True(t, c.LoadJSON([]byte(`{"bot_name":"Eve"}`)))
		assert.Equal(t, "Eve", c.BotName)
		assert.Equal(t, DefaultUserName, c.UserName)
		assert.Equal(t, DefaultGreeting, c.Greeting)
	})

	t.Run("malformed data leaves state untouched", func(t *testing.T) {
		c := New(1)
		c.BotName = "Eve"
		assert.False(t, c.LoadJSON([]byte(`{not json`)))
		assert.Equal(t, "Eve", c.BotName)
	})

	t.Run("legacy name aliases are honored", func(t *testing.T) {
		c := New(1)
		require.True(t, c.LoadJSON([]byte(`{"name1":"Alice","name2":"Eve"}`)))
		assert.Equal(t, "Alice", c.UserName)
		assert.Equal(t, "Eve", c.BotName)
	})

	t.Run("legacy parallel arrays upcast to turns", func(t *testing.T) {
		data := []byte(`{
			"name1": "Alice",
			"name2": "Eve",
			"history": ["Alice: hi", "Eve: hello", "Alice: bye", "Eve: later"],
			"user_in": ["hi", "bye"],
			"msg_id": [10, 11]
		}`)
		c := New(1)
		require.True(t, c.LoadJSON(data))
		require.Equal(t, 2, c.Len())
		assert.Equal(t, "Alice: hi", c.Turns[0].Request)
		assert.Equal(t, "Eve: hello", c.Turns[0].Response)
		assert.Equal(t, "hi", c.Turns[0].Input)
		assert.Equal(t, int64(10), c.Turns[0].MessageID)
		assert.Equal(t, "Eve: later", c.LastResponse())
		assert.Equal(t, int64(11), c.Last().MessageID)
	})

	t.Run("odd legacy history keeps the dangling request", func(t *testing.T) {
		c := New(1)
		require.True(t, c.LoadJSON([]byte(`{"history": ["Alice: hi"]}`)))
		require.Equal(t, 1, c.Len())
		assert.Equal(t, "Alice: hi", c.Turns[0].Request)
		assert.Empty(t, c.Turns[0].Response)
	})
}
