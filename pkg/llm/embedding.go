package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkoukk/tiktoken-go"

	"github.com/quantmind/quantmind/pkg/config"
)

// maxEmbeddingTokens is the input window of the OpenAI embedding models.
const maxEmbeddingTokens = 8191

// EmbeddingProvider is one embedding backend. Implementations make
// exactly one HTTP attempt per Embed call.
type EmbeddingProvider interface {
	Name() string
	Embed(ctx context.Context, cfg *config.EmbeddingConfig, inputs []string) ([][]float64, error)
}

// EmbeddingBlock wraps one embedding provider with the retry policy and
// token-window truncation.
type EmbeddingBlock struct {
	config   *config.EmbeddingConfig
	provider EmbeddingProvider
	encoder  *tiktoken.Tiktoken
}

// NewEmbeddingBlock builds an embedding block for the given config. Only
// OpenAI-compatible endpoints are supported; other providers need an
// explicit base_url.
func NewEmbeddingBlock(cfg *config.EmbeddingConfig) (*EmbeddingBlock, error) {
	cfg = cfg.Clone()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.APIKey != "" {
		if envVar := config.ProviderEnvVar(cfg.ProviderType()); envVar != "" {
			os.Setenv(envVar, cfg.APIKey)
		}
	}

	var provider *OpenAIProvider
	switch cfg.ProviderType() {
	case config.ProviderOpenAI:
		provider = newEmbeddingHTTPProvider(config.ProviderOpenAI, cfg, "https://api.openai.com/v1")
	default:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unsupported embedding provider for model %q: set base_url to use an OpenAI-compatible endpoint", cfg.Model)
		}
		provider = newEmbeddingHTTPProvider(cfg.ProviderType(), cfg, "")
	}

	return newEmbeddingBlock(cfg, provider), nil
}

// NewEmbeddingBlockWithProvider builds a block around an existing
// provider. Used for testing.
func NewEmbeddingBlockWithProvider(cfg *config.EmbeddingConfig, provider EmbeddingProvider) (*EmbeddingBlock, error) {
	cfg = cfg.Clone()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newEmbeddingBlock(cfg, provider), nil
}

func newEmbeddingBlock(cfg *config.EmbeddingConfig, provider EmbeddingProvider) *EmbeddingBlock {
	encoder, err := tiktoken.EncodingForModel(cfg.Model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encoder = nil
		}
	}
	return &EmbeddingBlock{config: cfg, provider: provider, encoder: encoder}
}

func newEmbeddingHTTPProvider(name string, cfg *config.EmbeddingConfig, defaultBaseURL string) *OpenAIProvider {
	llmCfg := &config.LLMConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	return newOpenAIProvider(name, llmCfg, defaultBaseURL)
}

// Config returns a copy of the block's config.
func (b *EmbeddingBlock) Config() *config.EmbeddingConfig {
	return b.config.Clone()
}

// truncate clips text to the model's token window.
func (b *EmbeddingBlock) truncate(text string) string {
	if b.encoder == nil {
		return text
	}
	tokens := b.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxEmbeddingTokens {
		return text
	}
	slog.Warn("Embedding input truncated to token window",
		"model", b.config.Model,
		"tokens", len(tokens),
		"limit", maxEmbeddingTokens)
	return b.encoder.Decode(tokens[:maxEmbeddingTokens])
}

// GenerateEmbedding embeds a single text.
func (b *EmbeddingBlock) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	vectors, err := b.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings embeds a batch of texts in one call, with the block's
// retry policy.
func (b *EmbeddingBlock) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = b.truncate(text)
	}

	attempts := b.config.RetryAttemptsValue() + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		vectors, err := b.provider.Embed(ctx, b.config, inputs)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt < attempts {
			slog.Warn("Embedding request failed, retrying",
				"model", b.config.Model,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			if err := sleepContext(ctx, b.config.RetryDelayDuration()); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", attempts, lastErr)
}

// BatchEmbed embeds texts in batches of batchSize, sleeping retry_delay
// between batches. Any failed batch fails the whole call.
func (b *EmbeddingBlock) BatchEmbed(ctx context.Context, texts []string, batchSize int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if start > 0 {
			if err := sleepContext(ctx, b.config.RetryDelayDuration()); err != nil {
				return nil, err
			}
		}

		batch, err := b.GenerateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
