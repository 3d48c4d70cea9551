package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantmind/quantmind/pkg/config"
)

// customInstructionsMarker separates the prompt from the appended
// custom_instructions in the user message.
const customInstructionsMarker = "\n\nAdditional Instructions:\n"

// Block wraps one LLM provider with the retry policy, prompt assembly and
// structured-output parsing. Blocks are safe for concurrent use.
type Block struct {
	mu       sync.Mutex
	config   *config.LLMConfig
	provider Provider
}

// NewBlock builds a block for the given config. The config is cloned,
// defaulted and validated; the provider's API key environment variable is
// set process-wide when the config carries an explicit key, so downstream
// tooling sharing the process sees the same credential.
func NewBlock(cfg *config.LLMConfig) (*Block, error) {
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

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Block{config: cfg, provider: provider}, nil
}

// NewBlockWithProvider builds a block around an existing provider,
// bypassing provider construction. Used for testing and for callers that
// manage providers themselves.
func NewBlockWithProvider(cfg *config.LLMConfig, provider Provider) (*Block, error) {
	cfg = cfg.Clone()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Block{config: cfg, provider: provider}, nil
}

// Config returns a copy of the current config.
func (b *Block) Config() *config.LLMConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.Clone()
}

// Provider returns the underlying provider.
func (b *Block) Provider() Provider {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.provider
}

// Close releases the provider.
func (b *Block) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.provider.Close()
}

// GenerateOption overrides config values for a single call.
type GenerateOption func(*Request)

func WithModel(model string) GenerateOption {
	return func(r *Request) { r.Model = model }
}

func WithTemperature(temperature float64) GenerateOption {
	return func(r *Request) { r.Temperature = temperature }
}

func WithMaxTokens(maxTokens int) GenerateOption {
	return func(r *Request) { r.MaxTokens = maxTokens }
}

func WithTopP(topP float64) GenerateOption {
	return func(r *Request) { r.TopP = &topP }
}

// WithSystemPrompt replaces the configured system prompt for this call.
func WithSystemPrompt(system string) GenerateOption {
	return func(r *Request) {
		rest := r.Messages
		if len(rest) > 0 && rest[0].Role == "system" {
			rest = rest[1:]
		}
		if system == "" {
			r.Messages = rest
			return
		}
		r.Messages = append([]Message{{Role: "system", Content: system}}, rest...)
	}
}

func WithResponseFormat(format *ResponseFormat) GenerateOption {
	return func(r *Request) { r.ResponseFormat = format }
}

func WithExtraParams(params map[string]any) GenerateOption {
	return func(r *Request) {
		if r.ExtraParams == nil {
			r.ExtraParams = map[string]any{}
		}
		for k, v := range params {
			r.ExtraParams[k] = v
		}
	}
}

// buildRequest assembles the request from the config, then applies the
// call-time options on top.
func (b *Block) buildRequest(cfg *config.LLMConfig, prompt string, opts []GenerateOption) *Request {
	content := prompt
	if cfg.CustomInstructions != "" {
		content += customInstructionsMarker + cfg.CustomInstructions
	}

	var messages []Message
	if cfg.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: cfg.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: content})

	req := &Request{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	}
	if len(cfg.ExtraParams) > 0 {
		req.ExtraParams = make(map[string]any, len(cfg.ExtraParams))
		for k, v := range cfg.ExtraParams {
			req.ExtraParams[k] = v
		}
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// GenerateText sends the prompt and returns the completion text. The call
// is attempted retry_attempts+1 times with a context-aware retry_delay
// sleep between attempts.
func (b *Block) GenerateText(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	b.mu.Lock()
	cfg := b.config
	provider := b.provider
	b.mu.Unlock()

	req := b.buildRequest(cfg, prompt, opts)
	resp, err := b.generateWithRetry(ctx, provider, cfg, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateStructured sends the prompt expecting JSON output and parses it
// into a map. OpenAI-family providers get a json_object response format
// unless the caller supplied one; Anthropic relies on prompting alone. A
// JSON array result is wrapped under the "items" key.
func (b *Block) GenerateStructured(ctx context.Context, prompt string, opts ...GenerateOption) (map[string]any, error) {
	b.mu.Lock()
	cfg := b.config
	provider := b.provider
	b.mu.Unlock()

	req := b.buildRequest(cfg, prompt, opts)
	if req.ResponseFormat == nil && supportsResponseFormat(provider.Name()) {
		req.ResponseFormat = JSONObjectFormat()
	}

	resp, err := b.generateWithRetry(ctx, provider, cfg, req)
	if err != nil {
		return nil, err
	}
	return parseStructured(resp.Text)
}

func supportsResponseFormat(providerName string) bool {
	switch providerName {
	case config.ProviderOpenAI, config.ProviderAzure, config.ProviderDeepSeek,
		config.ProviderOllama, config.ProviderGoogle, config.ProviderUnknown:
		return true
	default:
		return false
	}
}

func (b *Block) generateWithRetry(ctx context.Context, provider Provider, cfg *config.LLMConfig, req *Request) (*Response, error) {
	requestID := uuid.NewString()
	attempts := cfg.RetryAttemptsValue() + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt < attempts {
			slog.Warn("LLM request failed, retrying",
				"request_id", requestID,
				"provider", provider.Name(),
				"model", req.Model,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			if err := sleepContext(ctx, cfg.RetryDelayDuration()); err != nil {
				return nil, err
			}
		}
	}

	slog.Error("LLM request failed after all attempts",
		"request_id", requestID,
		"provider", provider.Name(),
		"model", req.Model,
		"attempts", attempts,
		"error", lastErr)
	return nil, fmt.Errorf("generation failed after %d attempts: %w", attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	jsonArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

// parseStructured extracts a JSON value from model output: strict parse
// first, then the largest {...} and [...] candidates.
func parseStructured(text string) (map[string]any, error) {
	if result, ok := tryParseJSON(text); ok {
		return result, nil
	}
	if candidate := jsonObjectPattern.FindString(text); candidate != "" {
		if result, ok := tryParseJSON(candidate); ok {
			return result, nil
		}
	}
	if candidate := jsonArrayPattern.FindString(text); candidate != "" {
		if result, ok := tryParseJSON(candidate); ok {
			return result, nil
		}
	}
	return nil, fmt.Errorf("no valid JSON found in response")
}

func tryParseJSON(text string) (map[string]any, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		return map[string]any{"items": v}, true
	default:
		return nil, false
	}
}

// WithTemporaryConfig applies the overrides for the duration of fn. The
// original config is restored on every exit path, including a panic in fn.
func (b *Block) WithTemporaryConfig(overrides map[string]any, fn func() error) error {
	b.mu.Lock()
	original := b.config
	variant, err := original.CreateVariant(overrides)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.config = variant
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.config = original
		b.mu.Unlock()
	}()
	return fn()
}

// UpdateConfig permanently applies the overrides. The provider is rebuilt
// when the overrides change the provider family or endpoint.
func (b *Block) UpdateConfig(overrides map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	variant, err := b.config.CreateVariant(overrides)
	if err != nil {
		return err
	}

	if variant.ProviderType() != b.config.ProviderType() || variant.BaseURL != b.config.BaseURL {
		provider, err := NewProvider(variant)
		if err != nil {
			return err
		}
		b.provider.Close()
		b.provider = provider
	}
	b.config = variant
	return nil
}

// TestConnection sends a minimal prompt to verify the provider works.
func (b *Block) TestConnection(ctx context.Context) bool {
	_, err := b.GenerateText(ctx, "Hello", WithMaxTokens(5))
	if err != nil {
		slog.Debug("LLM connection test failed", "error", err)
		return false
	}
	return true
}
