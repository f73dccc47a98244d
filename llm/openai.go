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
	openaiDefaultBaseURL = "https://api.openai.com"
	openaiDefaultModel   = "gpt-4o-mini"
)

type openaiAdapter struct {
	cfg    ModelConfig
	client *http.Client
}

func newOpenAIAdapter(cfg ModelConfig) *openaiAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openaiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openaiDefaultModel
	}
	return &openaiAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout(cfg.Timeout)},
	}
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a *openaiAdapter) ChatCompletion(ctx context.Context, messages []Message) (*Response, error) {
	req := openaiRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: status %d: %s", httpResp.StatusCode, truncate(respBody, 512))
	}

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	return &Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        a.cfg.Model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		CostUSD:      a.EstimateCost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
	}, nil
}

func (a *openaiAdapter) CountTokens(text string) int {
	return approxTokens(text)
}

func (a *openaiAdapter) EstimateCost(inputTokens, outputTokens int) float64 {
	return costFor("openai", a.cfg.Model, inputTokens, outputTokens)
}
