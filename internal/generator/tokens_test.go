package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproxTokenCount(t *testing.T) {
	t.Run("deterministic for identical input", func(t *testing.T) {
		text := "The quick brown fox, unbelievably, jumped.\nTwice."
		first := ApproxTokenCount(text)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ApproxTokenCount(text))
		}
	})

	t.Run("18 character word counts as three chunks", func(t *testing.T) {
		assert.Equal(t, 3, ApproxTokenCount("abcdefghijklmnopqr"))
	})

	t.Run("short words count as one", func(t *testing.T) {
		assert.Equal(t, 3, ApproxTokenCount("one two three"))
	})

	t.Run("punctuation and newlines are separate tokens", func(t *testing.T) {
		// "hi" + "," + "bye" + "\n" + "ok"
		assert.Equal(t, 5, ApproxTokenCount("hi, bye\nok"))
	})

	t.Run("empty text counts zero", func(t *testing.T) {
		assert.Equal(t, 0, ApproxTokenCount(""))
	})
}

type fixedCounter struct {
	Echo
	count int
}

func (f *fixedCounter) CountTokens(context.Context, string) int { return f.count }

func TestTokenCount(t *testing.T) {
	ctx := context.Background()

	t.Run("backend count wins when available", func(t *testing.T) {
		assert.Equal(t, 17, TokenCount(ctx, &fixedCounter{count: 17}, "whatever"))
	})

	t.Run("unavailable count falls back to approximation", func(t *testing.T) {
		assert.Equal(t, ApproxTokenCount("one two three"), TokenCount(ctx, &fixedCounter{count: 0}, "one two three"))
		assert.Equal(t, ApproxTokenCount("one two three"), TokenCount(ctx, &fixedCounter{count: 1}, "one two three"))
	})
}
