// Package llm provides provider-agnostic LLM invocation: a Block wrapping
// one chat provider with retry and structured-output parsing, and an
// EmbeddingBlock for embedding endpoints. Providers perform exactly one
// HTTP attempt per call; the block owns the retry policy.
package llm

import (
	"context"
	"fmt"

	"github.com/quantmind/quantmind/pkg/config"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic chat completion request.
type Request struct {
	Model          string
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	TopP           *float64
	ResponseFormat *ResponseFormat
	ExtraParams    map[string]any
}

// Response is a provider-agnostic chat completion response.
type Response struct {
	Text  string
	Usage Usage
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseFormat constrains the model output shape. Type is "json_object"
// or "json_schema"; the schema payload is only set for the latter.
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat is the json_schema response format payload.
type JSONSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict,omitempty"`
	Schema map[string]any `json:"schema"`
}

// Provider is one chat completion backend. Implementations make exactly
// one HTTP attempt per Generate call and honor the configured timeout.
type Provider interface {
	// Name returns the provider type string ("openai", "anthropic", ...).
	Name() string

	Generate(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

// NewProvider builds the provider for a validated LLM config. An unknown
// provider type is accepted only with an explicit base_url, which routes
// it through the OpenAI-compatible client.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.ProviderType() {
	case config.ProviderOpenAI:
		return newOpenAIProvider(config.ProviderOpenAI, cfg, "https://api.openai.com/v1"), nil
	case config.ProviderDeepSeek:
		return newOpenAIProvider(config.ProviderDeepSeek, cfg, "https://api.deepseek.com/v1"), nil
	case config.ProviderOllama:
		return newOpenAIProvider(config.ProviderOllama, cfg, "http://localhost:11434/v1"), nil
	case config.ProviderAzure:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires base_url")
		}
		return newOpenAIProvider(config.ProviderAzure, cfg, ""), nil
	case config.ProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case config.ProviderGoogle:
		return newGeminiProvider(cfg)
	default:
		if cfg.BaseURL != "" {
			return newOpenAIProvider(config.ProviderUnknown, cfg, ""), nil
		}
		return nil, fmt.Errorf("unsupported provider for model %q: set base_url to use an OpenAI-compatible endpoint", cfg.Model)
	}
}
