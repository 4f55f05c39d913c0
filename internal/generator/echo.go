package generator

import (
	"context"
	"strings"
)

// Echo is the reference null adapter: it answers with a canned transform
// of the prompt tail and counts tokens only approximately. Useful for
// offline development and as the default backend.
type Echo struct{}

// NewEcho returns the echo backend.
func NewEcho() *Echo { return &Echo{} }

// Generate returns the last prompt line, reversed word order.
func (e *Echo) Generate(_ context.Context, req Request) (string, error) {
	lines := strings.Split(strings.TrimRight(req.Prompt, "\n"), "\n")
	last := ""
	if len(lines) > 0 {
		last = lines[len(lines)-1]
	}
	words := strings.Fields(last)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " "), nil
}

// CountTokens reports exact counting unavailable.
func (e *Echo) CountTokens(context.Context, string) int { return 0 }

// ModelSwitchSupported is false for the echo backend.
func (e *Echo) ModelSwitchSupported() bool { return false }

// ListModels returns nothing.
func (e *Echo) ListModels(context.Context) []string { return nil }

// LoadModel always fails.
func (e *Echo) LoadModel(context.Context, string) bool { return false }
