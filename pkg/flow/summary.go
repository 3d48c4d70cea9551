package flow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quantmind/quantmind/pkg/chunking"
	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/models"
)

const (
	summarizeChunkTemplate   = "summarize_chunk_template"
	combineSummariesTemplate = "combine_summaries_template"

	cheapSummarizerBlock  = "cheap_summarizer"
	powerfulCombinerBlock = "powerful_combiner"

	noContentMessage    = "No content available for summarization."
	summarizeFailedMsg  = "Failed to summarize content."
	finalSummaryFailMsg = "Failed to generate final summary."
)

// chunkSummaryConcurrency bounds the parallel map step.
const chunkSummaryConcurrency = 4

// SummaryFlow is the two-stage map/reduce summarizer: chunk the content,
// summarize each chunk with the cheap model, combine the chunk summaries
// with the powerful one. LLM failures degrade to fixed fallback strings
// instead of propagating.
type SummaryFlow struct {
	*Base
	cfg *config.SummaryFlowConfig
}

// NewSummaryFlow builds the flow, applying config defaults and rejecting
// invalid chunking strategies at construction.
func NewSummaryFlow(cfg *config.SummaryFlowConfig, opts ...Option) (*SummaryFlow, error) {
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := NewBase(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &SummaryFlow{Base: base, cfg: cfg}, nil
}

// Config returns the flow's configuration.
func (f *SummaryFlow) Config() *config.SummaryFlowConfig {
	return f.cfg
}

// Run summarizes the item's content and returns the summary text, or one
// of the fixed fallback strings when content is missing or every LLM path
// fails.
func (f *SummaryFlow) Run(ctx context.Context, item models.Knowledge) string {
	content := strings.TrimSpace(item.Base().Content)
	if content == "" {
		return noContentMessage
	}

	if !f.cfg.UseChunkingValue() {
		return f.summarizeWhole(ctx, content)
	}

	chunks := f.chunk(content)
	if len(chunks) == 0 {
		return summarizeFailedMsg
	}

	summaries := f.summarizeChunks(ctx, chunks)
	if len(summaries) == 0 {
		return summarizeFailedMsg
	}
	if len(summaries) == 1 {
		return summaries[0]
	}

	return f.combine(ctx, summaries)
}

func (f *SummaryFlow) summarizeWhole(ctx context.Context, content string) string {
	rendered, err := f.RenderPrompt(summarizeChunkTemplate, map[string]any{"chunk_text": content})
	if err != nil {
		slog.Error("Failed to render summary prompt", "flow", f.Name(), "error", err)
		return summarizeFailedMsg
	}
	if text := f.generate(ctx, powerfulCombinerBlock, rendered); text != "" {
		return text
	}
	return summarizeFailedMsg
}

func (f *SummaryFlow) chunk(content string) []string {
	switch f.cfg.ChunkStrat {
	case config.ChunkByCustom:
		fn, err := chunking.Lookup(f.cfg.ChunkCustomStrategy)
		if err != nil {
			slog.Error("Custom chunker disappeared after validation",
				"flow", f.Name(), "chunker", f.cfg.ChunkCustomStrategy, "error", err)
			return nil
		}
		return fn(content)
	default:
		return chunking.BySize(content, f.cfg.ChunkSize)
	}
}

// summarizeChunks runs the map step on a bounded worker group. Results
// land in positional slots so the combined input preserves chunk order.
func (f *SummaryFlow) summarizeChunks(ctx context.Context, chunks []string) []string {
	slots := make([]string, len(chunks))

	g := &errgroup.Group{}
	g.SetLimit(chunkSummaryConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			rendered, err := f.RenderPrompt(summarizeChunkTemplate, map[string]any{"chunk_text": chunk})
			if err != nil {
				slog.Error("Failed to render chunk prompt",
					"flow", f.Name(), "chunk", i, "error", err)
				return nil
			}
			slots[i] = f.generate(ctx, cheapSummarizerBlock, rendered)
			return nil
		})
	}
	g.Wait()

	summaries := make([]string, 0, len(slots))
	for _, summary := range slots {
		if summary != "" {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

func (f *SummaryFlow) combine(ctx context.Context, summaries []string) string {
	rendered, err := f.RenderPrompt(combineSummariesTemplate, map[string]any{
		"summaries": strings.Join(summaries, "\n\n"),
	})
	if err != nil {
		slog.Error("Failed to render combine prompt", "flow", f.Name(), "error", err)
		return finalSummaryFailMsg
	}
	if text := f.generate(ctx, powerfulCombinerBlock, rendered); text != "" {
		return text
	}
	return finalSummaryFailMsg
}

// generate calls a block and treats every failure as an empty result so
// the flow can degrade.
func (f *SummaryFlow) generate(ctx context.Context, blockName, renderedPrompt string) string {
	block, err := f.Block(blockName)
	if err != nil {
		slog.Error("LLM block unavailable", "flow", f.Name(), "block", blockName, "error", err)
		return ""
	}
	text, err := block.GenerateText(ctx, renderedPrompt)
	if err != nil {
		slog.Warn("LLM call failed", "flow", f.Name(), "block", blockName, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}
