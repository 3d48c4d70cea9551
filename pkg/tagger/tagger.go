// Package tagger enriches knowledge items with tags. The LLM tagger asks
// a language model for tags and merges them into the item's tag set.
package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/llm"
	"github.com/quantmind/quantmind/pkg/models"
)

// Tagger annotates knowledge items in place.
type Tagger interface {
	// Tag mutates the item, adding tags and enrichment metadata. Failures
	// are soft: the item is returned unchanged.
	Tag(ctx context.Context, item models.Knowledge)

	Name() string
}

const defaultPromptTemplate = `Analyze this quantitative finance research paper and generate %d relevant tags.

Paper Content:
%s

Generate tags that capture the key aspects like:
- Market types (equity, forex, crypto, bonds)
- Methods (machine learning, deep learning, statistical)
- Applications (trading, risk management, portfolio optimization)
- Data types (price data, news, sentiment)
- Techniques (LSTM, transformers, regression)

Return only a JSON list of tags, no other text:
["tag1", "tag2", "tag3", "tag4", "tag5"]`

var quotedItemPattern = regexp.MustCompile(`"([^"]*)"`)

// LLMTagger generates tags with an LLM block. A block that fails to
// initialize leaves the tagger constructed but inert.
type LLMTagger struct {
	cfg   *config.LLMTaggerConfig
	block *llm.Block
}

// NewLLMTagger builds the tagger from its config, applying defaults. A
// provider construction failure is logged and the tagger degrades to a
// no-op instead of failing.
func NewLLMTagger(cfg *config.LLMTaggerConfig) (*LLMTagger, error) {
	if cfg == nil {
		cfg = &config.LLMTaggerConfig{}
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	block, err := llm.NewBlock(cfg.LLMConfig())
	if err != nil {
		slog.Error("Failed to initialize tagger LLM block", "model", cfg.LLMName, "error", err)
		block = nil
	}
	return &LLMTagger{cfg: cfg, block: block}, nil
}

// NewLLMTaggerWithBlock builds the tagger around an existing LLM block.
func NewLLMTaggerWithBlock(cfg *config.LLMTaggerConfig, block *llm.Block) (*LLMTagger, error) {
	if cfg == nil {
		cfg = &config.LLMTaggerConfig{}
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LLMTagger{cfg: cfg, block: block}, nil
}

func (t *LLMTagger) Name() string {
	return "llm_tagger"
}

// Tag generates tags for the item and merges them into its tag set,
// recording tagger metadata. Every failure leaves the item unchanged.
func (t *LLMTagger) Tag(ctx context.Context, item models.Knowledge) {
	if t.block == nil {
		slog.Warn("No LLM block available, skipping tagging")
		return
	}

	base := item.Base()
	content := t.prepareContent(base)
	tags := t.generateTags(ctx, content)
	if len(tags) == 0 {
		return
	}

	for _, tag := range tags {
		base.AddTag(tag)
	}
	base.SetMeta("tagger", t.Name())
	base.SetMeta("model_used", t.cfg.LLMName)
	base.SetMeta("tags_generated", len(tags))

	slog.Info("Generated tags", "count", len(tags), "title", base.Title)
}

// ExtractTags generates tags for arbitrary text, optionally with a title
// for context.
func (t *LLMTagger) ExtractTags(ctx context.Context, text, title string) []string {
	if t.block == nil {
		return nil
	}
	content := text
	if title != "" {
		content = fmt.Sprintf("Title: %s\n\nContent: %s", title, text)
	}
	return t.generateTags(ctx, content)
}

// TestConnection reports whether the underlying LLM block can be reached.
func (t *LLMTagger) TestConnection(ctx context.Context) bool {
	if t.block == nil {
		return false
	}
	return t.block.TestConnection(ctx)
}

// prepareContent assembles the analysis text. The content body is clipped
// to max_tokens characters to bound the prompt.
func (t *LLMTagger) prepareContent(base *models.KnowledgeItem) string {
	var parts []string
	if base.Title != "" {
		parts = append(parts, "Title: "+base.Title)
	}
	if base.Abstract != "" {
		parts = append(parts, "Abstract: "+base.Abstract)
	}
	if base.Content != "" {
		body := base.Content
		if len(body) > t.cfg.MaxTokens {
			body = body[:t.cfg.MaxTokens]
		}
		parts = append(parts, "Content: "+body+"...")
	}
	return strings.Join(parts, "\n\n")
}

func (t *LLMTagger) generateTags(ctx context.Context, content string) []string {
	prompt := t.buildPrompt(content)

	response, err := t.block.GenerateText(ctx, prompt)
	if err != nil {
		slog.Error("Tag generation failed", "error", err)
		return nil
	}
	if strings.TrimSpace(response) == "" {
		slog.Error("Empty response from LLM")
		return nil
	}

	tags := parseTags(response)
	if len(tags) > t.cfg.MaxTags {
		tags = tags[:t.cfg.MaxTags]
	}
	return tags
}

func (t *LLMTagger) buildPrompt(content string) string {
	if t.cfg.CustomPrompt != "" {
		prompt := strings.ReplaceAll(t.cfg.CustomPrompt, "{content}", content)
		return strings.ReplaceAll(prompt, "{max_tags}", fmt.Sprintf("%d", t.cfg.MaxTags))
	}
	return fmt.Sprintf(defaultPromptTemplate, t.cfg.MaxTags, content)
}

// parseTags reads tags out of an LLM response: a JSON array first, then
// quoted strings, then a comma-separated line.
func parseTags(response string) []string {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start >= 0 && end > start {
		var raw []any
		if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err == nil {
			var tags []string
			for _, item := range raw {
				if s, ok := item.(string); ok {
					if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
						tags = append(tags, s)
					}
				}
			}
			return tags
		}
		slog.Warn("Failed to parse JSON tags, falling back to text extraction")
	}
	return extractTagsFromText(response)
}

// extractTagsFromText is the plain-text fallback: quoted items first, then
// the first comma-separated line with at least two entries.
func extractTagsFromText(text string) []string {
	matches := quotedItemPattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		var tags []string
		for _, m := range matches {
			if s := strings.ToLower(strings.TrimSpace(m[1])); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	}

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ",") || strings.HasPrefix(line, "#") {
			continue
		}
		items := strings.Split(line, ",")
		if len(items) < 2 {
			continue
		}
		var tags []string
		for _, item := range items {
			if s := strings.ToLower(strings.TrimSpace(item)); len(s) > 1 {
				tags = append(tags, s)
			}
		}
		return tags
	}

	slog.Warn("Could not extract tags from response")
	return nil
}
