// Package llm provides chat adapters for the language-model providers
// behind agent personas. The rest of the system depends only on the
// Adapter interface; concrete providers are selected by NewAdapter from
// configuration.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a completed chat turn with its token accounting
type Response struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// ModelConfig selects and parameterizes a provider
type ModelConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	APIKey      string        `yaml:"api_key" json:"-"`
	BaseURL     string        `yaml:"base_url" json:"baseUrl,omitempty"`
	MaxTokens   int           `yaml:"max_tokens" json:"maxTokens,omitempty"`
	Temperature float64       `yaml:"temperature" json:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// Adapter is the capability contract every provider implements
type Adapter interface {
	// ChatCompletion sends the conversation and returns the model's reply
	// with actual token usage and cost.
	ChatCompletion(ctx context.Context, messages []Message) (*Response, error)

	// CountTokens estimates the token count of a text without a model call
	CountTokens(text string) int

	// EstimateCost prices a hypothetical call in USD
	EstimateCost(inputTokens, outputTokens int) float64
}

// NewAdapter builds an adapter for the configured provider
func NewAdapter(cfg ModelConfig) (Adapter, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicAdapter(cfg), nil
	case "openai":
		return newOpenAIAdapter(cfg), nil
	case "ollama":
		return newOllamaAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// approxTokens estimates tokens from text length, roughly 4 chars per token
func approxTokens(text string) int {
	return len(text) / 4
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 120 * time.Second
	}
	return d
}
