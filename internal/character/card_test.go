package character

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/session"
)

func writeCard(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	t.Run("yaml card populates state", func(t *testing.T) {
		dir := t.TempDir()
		writeCard(t, dir, "eve.yaml", `
name: Eve
char_persona: "A curious engineer who talks to {{user}}."
scenario: "Late night in the lab."
greeting: "Hi!"
alternate_greetings:
  - "Hey!"
example_dialogue: |-
  {{user}}: how are you?
  {{char}}: Wired and wide awake.
`)
		conv := session.New(1)
		Load(conv, dir, "eve.yaml")

		assert.Equal(t, "eve.yaml", conv.CharFile)
		assert.Equal(t, "Eve", conv.BotName)
		assert.Contains(t, conv.Context, "Eve's persona: A curious engineer who talks to You.")
		assert.Contains(t, conv.Context, "Scenario: Late night in the lab.")
		assert.Equal(t, "Hi!", conv.Greeting)
		assert.Equal(t, []string{"Hey!"}, conv.AlternateGreetings)
		assert.Contains(t, conv.Example, "Eve: Wired and wide awake.")
		assert.Empty(t, conv.Turns)
	})

	t.Run("json card with data envelope", func(t *testing.T) {
		dir := t.TempDir()
		writeCard(t, dir, "eve.json", `{
			"data": {
				"name": "Eve",
				"first_mes": "Hello there, {{user}}.",
				"description": "An engineer."
			}
		}`)
		conv := session.New(1)
		Load(conv, dir, "eve.json")

		assert.Equal(t, "Eve", conv.BotName)
		assert.Equal(t, "Hello there, You.", conv.Greeting)
		assert.Contains(t, conv.Context, "Description: An engineer.")
	})

	t.Run("missing file leaves usable defaults", func(t *testing.T) {
		conv := session.New(1)
		conv.BotName = "Old"
		Load(conv, t.TempDir(), "nope.yaml")

		assert.Equal(t, session.DefaultBotName, conv.BotName)
		assert.Equal(t, session.DefaultGreeting, conv.Greeting)
	})

	t.Run("malformed card leaves usable defaults", func(t *testing.T) {
		dir := t.TempDir()
		writeCard(t, dir, "bad.json", `{broken`)
		conv := session.New(1)
		Load(conv, dir, "bad.json")

		assert.Equal(t, session.DefaultBotName, conv.BotName)
	})

	t.Run("greeting switch after load", func(t *testing.T) {
		dir := t.TempDir()
		writeCard(t, dir, "eve.yaml", "name: Eve\ngreeting: \"Hi!\"\nalternate_greetings: [\"Hey!\"]\n")
		conv := session.New(1)
		Load(conv, dir, "eve.yaml")

		require.True(t, conv.SwitchGreeting())
		assert.Equal(t, "Hey!", conv.Greeting)
		assert.Equal(t, []string{"Hi!"}, conv.AlternateGreetings)
		assert.Empty(t, conv.Turns)
	})
}

func TestSubstitute(t *testing.T) {
	got := Substitute("{{char}} meets {{user}}, <BOT> greets <USER>, {{Char}}/{{User}}", "Alice", "Eve")
	assert.Equal(t, "Eve meets Alice, Eve greets Alice, Eve/Alice", got)
}

func TestListCards(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "a.yaml", "name: A")
	writeCard(t, dir, "b.json", "{}")
	writeCard(t, dir, "notes.txt", "ignore me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	cards, err := ListCards(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.yaml", "b.json"}, cards)
}
