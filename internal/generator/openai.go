package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"convo/internal/logging"
)

// OpenAIChat talks to an OpenAI-style chat-completions endpoint. The
// conversation snapshot is mapped onto the messages array (system context
// and example, assistant greeting, alternating user/assistant history)
// with the assembled prompt as the final user message.
type OpenAIChat struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIChat returns an adapter for the endpoint at baseURL.
func NewOpenAIChat(baseURL, apiKey, model string) *OpenAIChat {
	if baseURL == "" {
		baseURL = defaultLlamaURL
	}
	return &OpenAIChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Stop        []string      `json:"stop,omitempty"`
	Seed        int           `json:"seed"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate posts the shaped conversation to /v1/chat/completions.
// Failures are absorbed into the default answer.
func (o *OpenAIChat) Generate(ctx context.Context, req Request) (string, error) {
	messages := []chatMessage{}
	if req.Snapshot.Context != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Snapshot.Context})
	}
	if req.Snapshot.Example != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Snapshot.Example})
	}
	if req.Snapshot.Greeting != "" {
		messages = append(messages, chatMessage{Role: "assistant", Content: req.Snapshot.Greeting})
	}
	for _, turn := range req.Snapshot.History {
		if turn.Request != "" {
			messages = append(messages, chatMessage{Role: "user", Content: turn.Request})
		}
		if turn.Response != "" {
			messages = append(messages, chatMessage{Role: "assistant", Content: turn.Response})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	stop := append([]string{}, req.Params.StoppingStrings...)
	stop = append(stop, req.Params.EOSTokens...)
	payload := chatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		TopK:        req.Params.TopK,
		MaxTokens:   req.Params.MaxNewTokens,
		Stop:        stop,
		Seed:        rand.Intn(1000),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return req.DefaultAnswer, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return req.DefaultAnswer, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("chat completion failed: %v", err)
		return req.DefaultAnswer, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.Get(logging.CategoryAPI).Error("chat completion status: %s", resp.Status)
		return req.DefaultAnswer, nil
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || len(decoded.Choices) == 0 {
		logging.Get(logging.CategoryAPI).Error("chat completion decode failed: %v", err)
		return req.DefaultAnswer, nil
	}
	return decoded.Choices[0].Message.Content, nil
}

// CountTokens reports exact counting unavailable; counting through chat
// endpoints is known slow.
func (o *OpenAIChat) CountTokens(context.Context, string) int { return 0 }

// ModelSwitchSupported is false for hosted chat endpoints.
func (o *OpenAIChat) ModelSwitchSupported() bool { return false }

// ListModels queries /v1/models.
func (o *OpenAIChat) ListModels(ctx context.Context) []string {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/models", nil)
	if err != nil {
		return nil
	}
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		return nil
	}
	defer resp.Body.Close()
	var decoded struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil
	}
	models := make([]string, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		models = append(models, m.ID)
	}
	return models
}

// LoadModel is unsupported.
func (o *OpenAIChat) LoadModel(context.Context, string) bool { return false }
