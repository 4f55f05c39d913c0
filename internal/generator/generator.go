// Package generator defines the narrow contract a text-generation backend
// must satisfy, plus reference adapters for llama.cpp server, OpenAI-style
// chat endpoints, Google Gemini, and an offline echo backend.
//
// Adapters absorb their own transport failures: Generate returns the
// caller-supplied default answer on anything recoverable and reserves the
// error return for hard failures. Callers must treat both paths as
// recoverable. CountTokens reporting 0 or 1 means exact counting is
// unavailable and the local fallback applies.
package generator

import (
	"context"
)

// Params are the sampling parameters for one generation.
type Params struct {
	Temperature       float64
	TopP              float64
	TopK              int
	MaxNewTokens      int
	RepetitionPenalty float64
	TruncationLength  int
	EOSTokens         []string
	StoppingStrings   []string
}

// TurnSnapshot is one request/response pair of the conversation, already
// formatted for the prompt.
type TurnSnapshot struct {
	Request  string
	Response string
}

// Snapshot carries the conversation pieces for backends that shape their
// own message structure (chat endpoints) instead of consuming the flat
// prompt.
type Snapshot struct {
	Context      string
	Greeting     string
	Example      string
	TurnTemplate string
	History      []TurnSnapshot
}

// Request is a single generation call.
type Request struct {
	Prompt        string
	Params        Params
	DefaultAnswer string
	Snapshot      Snapshot
}

// Generator is the capability set a backend adapter implements.
type Generator interface {
	// Generate produces text for the request within a bounded time.
	Generate(ctx context.Context, req Request) (string, error)

	// CountTokens returns the backend's token count for text, or <= 1 when
	// exact counting is unavailable.
	CountTokens(ctx context.Context, text string) int

	// ModelSwitchSupported gates ListModels/LoadModel.
	ModelSwitchSupported() bool
	ListModels(ctx context.Context) []string
	LoadModel(ctx context.Context, name string) bool
}

// TokenCount returns the backend's count for text, falling back to the
// local approximation when the backend reports counting unavailable.
func TokenCount(ctx context.Context, g Generator, text string) int {
	if count := g.CountTokens(ctx, text); count > 1 {
		return count
	}
	return ApproxTokenCount(text)
}
