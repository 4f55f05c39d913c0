package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"convo/internal/config"
)

func TestParseCommand(t *testing.T) {
	cfg := config.Default()

	cases := []struct {
		name string
		in   string
		kind Kind
		text string
	}{
		{"rename bot", "++Eve", KindRenameBot, "Eve"},
		{"rename user", "--Alice", KindRenameUser, "Alice"},
		{"append context", "==likes tea", KindAppendContext, "likes tea"},
		{"replace last", "!!Actually, no.", KindReplaceLast, "Actually, no."},
		{"delete word", "/delete_word", KindDeleteWord, ""},
		{"regenerate", "/regenerate", KindRegenerate, ""},
		{"impersonate", "/impersonate", KindImpersonate, ""},
		{"next", "/next", KindNext, ""},
		{"continue", "/continue", KindContinue, ""},
		{"image emoji", "📷 a red fox", KindImage, "a red fox"},
		{"image command", "/image a red fox", KindImage, "a red fox"},
		{"image bare", "📷", KindImage, ""},
		{"impersonate as", "##Sam", KindImpersonateAs, "Sam"},
		{"plain message", "hello there", KindMessage, "hello there"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := ParseCommand(tc.in, cfg)
			assert.Equal(t, tc.kind, cmd.Kind)
			assert.Equal(t, tc.text, cmd.Text)
		})
	}

	t.Run("rename wins over sentinel lookalike", func(t *testing.T) {
		cmd := ParseCommand("++/regenerate", cfg)
		assert.Equal(t, KindRenameBot, cmd.Kind)
		assert.Equal(t, "/regenerate", cmd.Text)
	})
}

func TestDeleteLastBlock(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"last clause after sentence boundary", "Hello world. Goodbye", "Hello world."},
		{"last paragraph", "First part.\n\nSecond part.", "First part."},
		{"last line", "first line\nsecond line", "first line"},
		{"question boundary", "Really? Yes", "Really?"},
		{"single word degrades to empty", "Goodbye", ""},
		{"single char", "a", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeleteLastBlock(tc.in))
		})
	}
}

func TestStripReasoning(t *testing.T) {
	tag := config.ReasoningTag{Open: "<think>", Close: "</think>"}

	t.Run("removes multiline block", func(t *testing.T) {
		got := StripReasoning("<think>step one\nstep two</think>Answer.", tag)
		assert.Equal(t, "Answer.", got)
	})

	t.Run("non greedy across multiple blocks", func(t *testing.T) {
		got := StripReasoning("<think>a</think>keep<think>b</think>this", tag)
		assert.Equal(t, "keepthis", got)
	})

	t.Run("no tags is a no-op", func(t *testing.T) {
		assert.Equal(t, "plain", StripReasoning("plain", tag))
	})
}
