package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"convo/internal/logging"
)

// Gemini generates through the Google Gemini API. Unlike the local
// adapters it can count tokens exactly.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed adapter.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the flat prompt. API failures are absorbed into the
// default answer.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	stop := append([]string{}, req.Params.StoppingStrings...)
	stop = append(stop, req.Params.EOSTokens...)

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Params.Temperature)),
		TopP:            genai.Ptr(float32(req.Params.TopP)),
		TopK:            genai.Ptr(float32(req.Params.TopK)),
		MaxOutputTokens: int32(req.Params.MaxNewTokens),
		StopSequences:   stop,
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("gemini generate failed: %v", err)
		return req.DefaultAnswer, nil
	}
	text := result.Text()
	if text == "" {
		return req.DefaultAnswer, nil
	}
	return text, nil
}

// CountTokens asks the API for an exact count.
func (g *Gemini) CountTokens(ctx context.Context, text string) int {
	result, err := g.client.Models.CountTokens(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("gemini count tokens failed: %v", err)
		return 0
	}
	return int(result.TotalTokens)
}

// ModelSwitchSupported is false; the model is fixed at construction.
func (g *Gemini) ModelSwitchSupported() bool { return false }

// ListModels returns the configured model.
func (g *Gemini) ListModels(context.Context) []string { return []string{g.model} }

// LoadModel is unsupported.
func (g *Gemini) LoadModel(context.Context, string) bool { return false }
