package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderType(t *testing.T) {
	tests := []struct {
		model    string
		provider string
	}{
		{"gpt-4o", ProviderOpenAI},
		{"openai/gpt-4o-mini", ProviderOpenAI},
		{"claude-sonnet-4-20250514", ProviderAnthropic},
		{"anthropic/claude-3-haiku", ProviderAnthropic},
		{"gemini-2.0-flash", ProviderGoogle},
		{"google/gemini-1.5-pro", ProviderGoogle},
		{"azure/my-deployment", ProviderAzure},
		{"ollama/llama3.2", ProviderOllama},
		{"deepseek-chat", ProviderDeepSeek},
		{"some-local-model", ProviderUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			cfg := &LLMConfig{Model: tt.model}
			assert.Equal(t, tt.provider, cfg.ProviderType())
		})
	}
}

func TestLLMConfigDefaults(t *testing.T) {
	cfg := NewLLMConfig("gpt-4o")

	assert.Equal(t, 4000, cfg.MaxTokens)
	assert.Equal(t, 0.0, cfg.Temperature)
	assert.Equal(t, 1.0, cfg.TopPValue())
	assert.Equal(t, 60, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryAttemptsValue())
	require.NoError(t, cfg.Validate())
}

func TestLLMConfigAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	cfg := NewLLMConfig("gpt-4o")
	assert.Equal(t, "sk-from-env", cfg.APIKey)
}

func TestLLMConfigValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LLMConfig)
	}{
		{"empty model", func(c *LLMConfig) { c.Model = " " }},
		{"temperature too high", func(c *LLMConfig) { c.Temperature = 2.5 }},
		{"temperature negative", func(c *LLMConfig) { c.Temperature = -0.1 }},
		{"zero max_tokens", func(c *LLMConfig) { c.MaxTokens = 0 }},
		{"top_p out of range", func(c *LLMConfig) { topP := 1.5; c.TopP = &topP }},
		{"zero timeout", func(c *LLMConfig) { c.Timeout = 0 }},
		{"negative retries", func(c *LLMConfig) { attempts := -1; c.RetryAttempts = &attempts }},
		{"negative retry delay", func(c *LLMConfig) { delay := -1.0; c.RetryDelay = &delay }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewLLMConfig("gpt-4o")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCreateVariantDoesNotMutateOriginal(t *testing.T) {
	original := NewLLMConfig("gpt-4o")
	original.Temperature = 0.5
	original.ExtraParams = map[string]any{"seed": 7}

	variant, err := original.CreateVariant(map[string]any{
		"temperature": 1.2,
		"max_tokens":  256,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.2, variant.Temperature)
	assert.Equal(t, 256, variant.MaxTokens)
	assert.Equal(t, 0.5, original.Temperature)
	assert.Equal(t, 4000, original.MaxTokens)

	variant.ExtraParams["seed"] = 8
	assert.Equal(t, 7, original.ExtraParams["seed"], "extra params are deep-copied")
}

func TestCreateVariantValidates(t *testing.T) {
	cfg := NewLLMConfig("gpt-4o")
	_, err := cfg.CreateVariant(map[string]any{"temperature": 9.0})
	assert.Error(t, err)
}

func TestRequestParams(t *testing.T) {
	cfg := NewLLMConfig("gpt-4o")
	cfg.APIKey = "sk-test"
	cfg.BaseURL = "https://example.com/v1"
	cfg.ExtraParams = map[string]any{"seed": 42}

	params := cfg.RequestParams()
	assert.Equal(t, "gpt-4o", params["model"])
	assert.Equal(t, "sk-test", params["api_key"])
	assert.Equal(t, "https://example.com/v1", params["base_url"])
	assert.Equal(t, 42, params["seed"])
	assert.NotContains(t, params, "api_version")
}

func TestEmbeddingConfigDefaults(t *testing.T) {
	cfg := NewEmbeddingConfig("")
	assert.Equal(t, "text-embedding-ada-002", cfg.Model)
	assert.Equal(t, "float", cfg.EncodingFormat)
	assert.Equal(t, 600, cfg.Timeout)
	assert.Equal(t, ProviderOpenAI, cfg.ProviderType())
	require.NoError(t, cfg.Validate())
}

func TestEmbeddingConfigValidate(t *testing.T) {
	cfg := NewEmbeddingConfig("text-embedding-3-small")
	cfg.EncodingFormat = "hex"
	assert.Error(t, cfg.Validate())

	cfg = NewEmbeddingConfig("text-embedding-3-small")
	dims := -1
	cfg.Dimensions = &dims
	assert.Error(t, cfg.Validate())
}

func TestEmbeddingCreateVariant(t *testing.T) {
	original := NewEmbeddingConfig("text-embedding-3-small")
	variant, err := original.CreateVariant(map[string]any{"dimensions": 256})
	require.NoError(t, err)
	require.NotNil(t, variant.Dimensions)
	assert.Equal(t, 256, *variant.Dimensions)
	assert.Nil(t, original.Dimensions)
}
