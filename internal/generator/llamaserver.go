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

const defaultLlamaURL = "http://localhost:8080"

// LlamaServer talks to a llama.cpp server's raw completion endpoint.
type LlamaServer struct {
	baseURL string
	client  *http.Client
	nCtx    int

	// countViaAPI enables the /tokenize endpoint for exact counts; some
	// deployments are too slow for per-segment counting, in which case
	// the local fallback applies.
	countViaAPI bool
}

// LlamaOption configures the adapter.
type LlamaOption func(*LlamaServer)

// WithLlamaTokenizer enables exact token counting via /tokenize.
func WithLlamaTokenizer() LlamaOption {
	return func(l *LlamaServer) { l.countViaAPI = true }
}

// NewLlamaServer returns an adapter for the llama.cpp server at baseURL.
func NewLlamaServer(baseURL string, nCtx int, opts ...LlamaOption) *LlamaServer {
	if baseURL == "" {
		baseURL = defaultLlamaURL
	}
	l := &LlamaServer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		nCtx:    nCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type llamaCompletionRequest struct {
	Prompt        string   `json:"prompt"`
	Raw           bool     `json:"raw"`
	Stream        bool     `json:"stream"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	NumCtx        int      `json:"num_ctx"`
	NPredict      int      `json:"n_predict"`
	Seed          int      `json:"seed"`
	Stop          []string `json:"stop"`
}

type llamaCompletionResponse struct {
	Content string `json:"content"`
}

// Generate posts the flat prompt to /completion. Transport and decode
// failures are absorbed into the default answer.
func (l *LlamaServer) Generate(ctx context.Context, req Request) (string, error) {
	stop := append([]string{}, req.Params.StoppingStrings...)
	stop = append(stop, req.Params.EOSTokens...)
	payload := llamaCompletionRequest{
		Prompt:        req.Prompt,
		Raw:           true,
		Temperature:   req.Params.Temperature,
		TopP:          req.Params.TopP,
		TopK:          req.Params.TopK,
		RepeatPenalty: req.Params.RepetitionPenalty,
		NumCtx:        l.nCtx,
		NPredict:      req.Params.MaxNewTokens,
		Seed:          rand.Intn(1000),
		Stop:          stop,
	}

	var resp llamaCompletionResponse
	if err := l.post(ctx, "/completion", payload, &resp); err != nil {
		logging.Get(logging.CategoryAPI).Error("llama completion failed: %v", err)
		return req.DefaultAnswer, nil
	}
	return resp.Content, nil
}

// CountTokens asks /tokenize when enabled, else reports unavailable.
func (l *LlamaServer) CountTokens(ctx context.Context, text string) int {
	if !l.countViaAPI {
		return 0
	}
	var resp struct {
		Tokens []int `json:"tokens"`
	}
	if err := l.post(ctx, "/tokenize", map[string]string{"content": text}, &resp); err != nil {
		logging.Get(logging.CategoryAPI).Error("llama tokenize failed: %v", err)
		return 0
	}
	return len(resp.Tokens)
}

// ModelSwitchSupported is false; llama.cpp server serves one model.
func (l *LlamaServer) ModelSwitchSupported() bool { return false }

// ListModels queries the OpenAI-compatible models endpoint.
func (l *LlamaServer) ListModels(ctx context.Context) []string {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := l.get(ctx, "/v1/models", &resp); err != nil {
		return nil
	}
	models := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, m.ID)
	}
	return models
}

// LoadModel is unsupported.
func (l *LlamaServer) LoadModel(context.Context, string) bool { return false }

func (l *LlamaServer) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return l.do(httpReq, out)
}

func (l *LlamaServer) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return err
	}
	return l.do(httpReq, out)
}

func (l *LlamaServer) do(req *http.Request, out any) error {
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
