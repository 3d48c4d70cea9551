package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/quantmind/quantmind/pkg/config"
)

// GeminiProvider talks to the Gemini API through the official SDK.
// Structured output is forwarded as a response schema when the request
// carries one, otherwise as a JSON MIME type constraint.
type GeminiProvider struct {
	client  *genai.Client
	timeout time.Duration
}

func newGeminiProvider(cfg *config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider requires an API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, timeout: cfg.TimeoutDuration()}, nil
}

func (p *GeminiProvider) Name() string { return config.ProviderGoogle }

func (p *GeminiProvider) Close() error { return nil }

// Generate performs a single generateContent attempt.
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var contents []*genai.Content
	var systemInstruction *genai.Content
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			systemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Content}},
			}
			continue
		}
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.TopP != nil {
		genConfig.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.ResponseFormat != nil {
		genConfig.ResponseMIMEType = "application/json"
		if req.ResponseFormat.JSONSchema != nil {
			genConfig.ResponseSchema = toGenaiSchema(req.ResponseFormat.JSONSchema.Schema)
		}
	}

	model := strings.TrimPrefix(req.Model, "google/")
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("Gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response: no text content returned")
	}

	result := &Response{Text: text.String()}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

// toGenaiSchema converts a JSON schema map to the SDK's schema type.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
