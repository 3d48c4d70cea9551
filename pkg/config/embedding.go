package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EmbeddingConfig configures an embedding block. It mirrors LLMConfig for
// embedding endpoints.
type EmbeddingConfig struct {
	// Model name, e.g. "text-embedding-3-small".
	Model string `yaml:"model"`

	// Dimensions of the output vectors; only text-embedding-3 and later
	// models support overriding it.
	Dimensions *int `yaml:"dimensions,omitempty"`

	// EncodingFormat is "float" or "base64".
	EncodingFormat string `yaml:"encoding_format,omitempty"`

	// User is an end-user identifier forwarded to the provider.
	User string `yaml:"user,omitempty"`

	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIVersion string `yaml:"api_version,omitempty"`

	// Timeout per attempt, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	RetryAttempts *int     `yaml:"retry_attempts,omitempty"`
	RetryDelay    *float64 `yaml:"retry_delay,omitempty"`
}

// NewEmbeddingConfig returns a config with defaults applied.
func NewEmbeddingConfig(model string) *EmbeddingConfig {
	cfg := &EmbeddingConfig{Model: model}
	cfg.SetDefaults()
	return cfg
}

// ProviderType derives the provider from the model name.
func (c *EmbeddingConfig) ProviderType() string {
	lower := strings.ToLower(c.Model)
	switch {
	case strings.HasPrefix(lower, "text-embedding-") || strings.HasPrefix(lower, "openai/") || strings.Contains(lower, "ada"):
		return ProviderOpenAI
	case strings.Contains(lower, "azure"):
		return ProviderAzure
	case strings.HasPrefix(lower, "embed-") || strings.HasPrefix(lower, "cohere/"):
		return "cohere"
	default:
		return ProviderUnknown
	}
}

// SetDefaults applies default values and resolves a missing API key from
// the provider's environment variable.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-ada-002"
	}
	if c.EncodingFormat == "" {
		c.EncodingFormat = "float"
	}
	if c.Timeout == 0 {
		c.Timeout = 600
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
		if envVar := ProviderEnvVar(c.ProviderType()); envVar != "" {
			c.APIKey = os.Getenv(envVar)
		}
	}
}

// Validate checks field bounds.
func (c *EmbeddingConfig) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("embedding: model must be a non-empty string")
	}
	if c.EncodingFormat != "float" && c.EncodingFormat != "base64" {
		return fmt.Errorf("embedding: encoding_format must be 'float' or 'base64', got %q", c.EncodingFormat)
	}
	if c.Dimensions != nil && *c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive, got %d", *c.Dimensions)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("embedding: timeout must be positive, got %d", c.Timeout)
	}
	if c.RetryAttempts != nil && *c.RetryAttempts < 0 {
		return fmt.Errorf("embedding: retry_attempts must not be negative, got %d", *c.RetryAttempts)
	}
	if c.RetryDelay != nil && *c.RetryDelay < 0 {
		return fmt.Errorf("embedding: retry_delay must not be negative, got %v", *c.RetryDelay)
	}
	return nil
}

// RetryAttemptsValue returns retry_attempts with its default applied.
func (c *EmbeddingConfig) RetryAttemptsValue() int {
	if c.RetryAttempts == nil {
		return 3
	}
	return *c.RetryAttempts
}

// RetryDelayDuration returns the delay between retries and batches.
func (c *EmbeddingConfig) RetryDelayDuration() time.Duration {
	delay := 1.0
	if c.RetryDelay != nil {
		delay = *c.RetryDelay
	}
	return time.Duration(delay * float64(time.Second))
}

// TimeoutDuration returns the per-attempt timeout.
func (c *EmbeddingConfig) TimeoutDuration() time.Duration {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 600
	}
	return time.Duration(timeout) * time.Second
}

// Clone returns a deep copy of the config.
func (c *EmbeddingConfig) Clone() *EmbeddingConfig {
	clone := *c
	if c.Dimensions != nil {
		dims := *c.Dimensions
		clone.Dimensions = &dims
	}
	if c.RetryAttempts != nil {
		attempts := *c.RetryAttempts
		clone.RetryAttempts = &attempts
	}
	if c.RetryDelay != nil {
		delay := *c.RetryDelay
		clone.RetryDelay = &delay
	}
	return &clone
}

// CreateVariant returns a new config with the overrides applied without
// mutating the receiver.
func (c *EmbeddingConfig) CreateVariant(overrides map[string]any) (*EmbeddingConfig, error) {
	variant := c.Clone()
	if err := decodeInto(overrides, variant); err != nil {
		return nil, fmt.Errorf("invalid embedding override: %w", err)
	}
	variant.SetDefaults()
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	return variant, nil
}
