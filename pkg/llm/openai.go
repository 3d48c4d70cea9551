package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantmind/quantmind/pkg/config"
)

// OpenAIProvider talks to the OpenAI chat completions API and every
// endpoint that speaks its dialect: Azure deployments, Ollama, DeepSeek
// and any base_url-configured compatible server.
type OpenAIProvider struct {
	name       string
	baseURL    string
	apiKey     string
	apiVersion string
	client     *http.Client
}

func newOpenAIProvider(name string, cfg *config.LLMConfig, defaultBaseURL string) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: cfg.TimeoutDuration()},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Close() error { return nil }

type openAIChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func parseErrorResponse(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

// Generate performs a single chat completion attempt.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.TopP != nil {
		payload["top_p"] = *req.TopP
	}
	if req.ResponseFormat != nil {
		payload["response_format"] = req.ResponseFormat
	}
	for k, v := range req.ExtraParams {
		payload[k] = v
	}

	body, err := p.makeRequest(ctx, p.endpoint("/chat/completions"), payload)
	if err != nil {
		return nil, err
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("empty response: no choices returned")
	}
	return &Response{
		Text:  response.Choices[0].Message.Content,
		Usage: response.Usage,
	}, nil
}

type embeddingData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage Usage           `json:"usage"`
}

// Embed performs a single embeddings attempt for a batch of inputs.
// Vectors are returned in input order.
func (p *OpenAIProvider) Embed(ctx context.Context, cfg *config.EmbeddingConfig, inputs []string) ([][]float64, error) {
	payload := map[string]any{
		"model":           cfg.Model,
		"input":           inputs,
		"encoding_format": cfg.EncodingFormat,
	}
	if cfg.Dimensions != nil {
		payload["dimensions"] = *cfg.Dimensions
	}
	if cfg.User != "" {
		payload["user"] = cfg.User
	}

	body, err := p.makeRequest(ctx, p.endpoint("/embeddings"), payload)
	if err != nil {
		return nil, err
	}

	var response embeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d inputs, got %d vectors", len(inputs), len(response.Data))
	}

	vectors := make([][]float64, len(inputs))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (p *OpenAIProvider) endpoint(path string) string {
	full := p.baseURL + path
	if p.apiVersion != "" {
		full += "?api-version=" + url.QueryEscape(p.apiVersion)
	}
	return full
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		// Azure deployments authenticate with api-key instead.
		if p.name == config.ProviderAzure {
			req.Header.Set("api-key", p.apiKey)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr := parseErrorResponse(body); apiErr != nil {
			return nil, fmt.Errorf("API request failed with status %d: %s (type: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
