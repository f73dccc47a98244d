package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "llama3.1"
)

// ollamaAdapter talks to a local Ollama instance. Local inference is free,
// so EstimateCost always returns zero.
type ollamaAdapter struct {
	cfg    ModelConfig
	client *http.Client
}

func newOllamaAdapter(cfg ModelConfig) *ollamaAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	return &ollamaAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout(cfg.Timeout)},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (a *ollamaAdapter) ChatCompletion(ctx context.Context, messages []Message) (*Response, error) {
	req := ollamaRequest{
		Model:  a.cfg.Model,
		Stream: false,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: status %d: %s", httpResp.StatusCode, truncate(respBody, 512))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	return &Response{
		Content:      parsed.Message.Content,
		Model:        a.cfg.Model,
		InputTokens:  parsed.PromptEvalCount,
		OutputTokens: parsed.EvalCount,
		CostUSD:      0,
	}, nil
}

func (a *ollamaAdapter) CountTokens(text string) int {
	return approxTokens(text)
}

func (a *ollamaAdapter) EstimateCost(int, int) float64 {
	return 0
}
