package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider types derived from the model name.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderAzure     = "azure"
	ProviderOllama    = "ollama"
	ProviderDeepSeek  = "deepseek"
	ProviderUnknown   = "unknown"
)

// LLMConfig configures a single LLM block.
type LLMConfig struct {
	// Model name, e.g. "gpt-4o", "claude-sonnet-4-20250514", "gemini-2.0-flash".
	// The provider is derived from it.
	Model string `yaml:"model"`

	// Temperature for generation (0-2).
	Temperature float64 `yaml:"temperature"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// TopP is the nucleus sampling parameter (0-1).
	TopP *float64 `yaml:"top_p,omitempty"`

	// APIKey falls back to the provider's environment variable when unset.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIVersion is used by Azure deployments.
	APIVersion string `yaml:"api_version,omitempty"`

	// Timeout per attempt, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts *int `yaml:"retry_attempts,omitempty"`

	// RetryDelay between attempts, in seconds.
	RetryDelay *float64 `yaml:"retry_delay,omitempty"`

	// ExtraParams are forwarded to the provider request as-is.
	ExtraParams map[string]any `yaml:"extra_params,omitempty"`

	// SystemPrompt is prepended as the system message when set.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// CustomInstructions are appended to every user prompt.
	CustomInstructions string `yaml:"custom_instructions,omitempty"`
}

// NewLLMConfig returns a config with defaults applied.
func NewLLMConfig(model string) *LLMConfig {
	cfg := &LLMConfig{Model: model}
	cfg.SetDefaults()
	return cfg
}

// ProviderType derives the provider from the model name.
func (c *LLMConfig) ProviderType() string {
	lower := strings.ToLower(c.Model)
	switch {
	case strings.HasPrefix(c.Model, "gpt-") || strings.HasPrefix(c.Model, "openai/"):
		return ProviderOpenAI
	case strings.HasPrefix(c.Model, "claude-") || strings.HasPrefix(c.Model, "anthropic/"):
		return ProviderAnthropic
	case strings.HasPrefix(c.Model, "gemini-") || strings.HasPrefix(c.Model, "google/"):
		return ProviderGoogle
	case strings.Contains(lower, "azure"):
		return ProviderAzure
	case strings.Contains(lower, "ollama"):
		return ProviderOllama
	case strings.Contains(lower, "deepseek"):
		return ProviderDeepSeek
	default:
		return ProviderUnknown
	}
}

// ProviderEnvVar returns the environment variable holding the API key for
// the given provider type, or "" when the provider has none.
func ProviderEnvVar(providerType string) string {
	switch providerType {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderAzure:
		return "AZURE_OPENAI_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return ""
	}
}

// SetDefaults applies default values and resolves a missing API key from
// the provider's environment variable.
func (c *LLMConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.TopP == nil {
		topP := 1.0
		c.TopP = &topP
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.RetryAttempts == nil {
		attempts := 3
		c.RetryAttempts = &attempts
	}
	if c.RetryDelay == nil {
		delay := 1.0
		c.RetryDelay = &delay
	}

	if c.APIKey == "" {
		provider := c.ProviderType()
		if envVar := ProviderEnvVar(provider); envVar != "" {
			c.APIKey = os.Getenv(envVar)
		}
		// Azure deployments historically used AZURE_API_KEY as well.
		if c.APIKey == "" && provider == ProviderAzure {
			c.APIKey = os.Getenv("AZURE_API_KEY")
		}
	}
}

// Validate checks field bounds.
func (c *LLMConfig) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm: model must be a non-empty string")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm: temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("llm: max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1) {
		return fmt.Errorf("llm: top_p must be between 0 and 1, got %v", *c.TopP)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm: timeout must be positive, got %d", c.Timeout)
	}
	if c.RetryAttempts != nil && *c.RetryAttempts < 0 {
		return fmt.Errorf("llm: retry_attempts must not be negative, got %d", *c.RetryAttempts)
	}
	if c.RetryDelay != nil && *c.RetryDelay < 0 {
		return fmt.Errorf("llm: retry_delay must not be negative, got %v", *c.RetryDelay)
	}
	return nil
}

// TopPValue returns top_p with its default applied.
func (c *LLMConfig) TopPValue() float64 {
	if c.TopP == nil {
		return 1.0
	}
	return *c.TopP
}

// RetryAttemptsValue returns retry_attempts with its default applied.
func (c *LLMConfig) RetryAttemptsValue() int {
	if c.RetryAttempts == nil {
		return 3
	}
	return *c.RetryAttempts
}

// RetryDelayDuration returns the delay between retries.
func (c *LLMConfig) RetryDelayDuration() time.Duration {
	delay := 1.0
	if c.RetryDelay != nil {
		delay = *c.RetryDelay
	}
	return time.Duration(delay * float64(time.Second))
}

// TimeoutDuration returns the per-attempt timeout.
func (c *LLMConfig) TimeoutDuration() time.Duration {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60
	}
	return time.Duration(timeout) * time.Second
}

// RequestParams is the provider-parameters projection of the config:
// the request knobs plus credentials, with extra_params merged on top.
func (c *LLMConfig) RequestParams() map[string]any {
	params := map[string]any{
		"model":       c.Model,
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
		"top_p":       c.TopPValue(),
		"timeout":     c.Timeout,
	}
	if c.APIKey != "" {
		params["api_key"] = c.APIKey
	}
	if c.BaseURL != "" {
		params["base_url"] = c.BaseURL
	}
	if c.APIVersion != "" {
		params["api_version"] = c.APIVersion
	}
	for k, v := range c.ExtraParams {
		params[k] = v
	}
	return params
}

// Clone returns a deep copy of the config.
func (c *LLMConfig) Clone() *LLMConfig {
	clone := *c
	if c.TopP != nil {
		topP := *c.TopP
		clone.TopP = &topP
	}
	if c.RetryAttempts != nil {
		attempts := *c.RetryAttempts
		clone.RetryAttempts = &attempts
	}
	if c.RetryDelay != nil {
		delay := *c.RetryDelay
		clone.RetryDelay = &delay
	}
	if c.ExtraParams != nil {
		clone.ExtraParams = make(map[string]any, len(c.ExtraParams))
		for k, v := range c.ExtraParams {
			clone.ExtraParams[k] = v
		}
	}
	return &clone
}

// CreateVariant returns a new config with the overrides applied. The
// receiver is never mutated. Override keys follow the yaml field names.
func (c *LLMConfig) CreateVariant(overrides map[string]any) (*LLMConfig, error) {
	variant := c.Clone()
	if err := decodeInto(overrides, variant); err != nil {
		return nil, fmt.Errorf("invalid llm override: %w", err)
	}
	variant.SetDefaults()
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	return variant, nil
}
