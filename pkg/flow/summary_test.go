package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind/quantmind/pkg/chunking"
	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/llm"
	"github.com/quantmind/quantmind/pkg/testutils"
)

var lineChunkerOnce sync.Once

// registerLineChunker installs a newline chunker used by the custom
// strategy tests. Registration is global, so it runs once per process.
func registerLineChunker(t *testing.T) {
	t.Helper()
	lineChunkerOnce.Do(func() {
		err := chunking.Register("flow-test-lines", func(content string) []string {
			return strings.Split(content, "\n")
		})
		require.NoError(t, err)
	})
}

// chunkFromPrompt extracts the chunk text the default template embeds.
func chunkFromPrompt(content string) string {
	start := strings.Index(content, "Content:\n")
	end := strings.Index(content, "\n\nSummary:")
	if start < 0 || end < 0 {
		return content
	}
	return content[start+len("Content:\n") : end]
}

// summarizerProvider answers every chunk prompt with a marker derived
// from the chunk's first word, so ordering is observable downstream.
func summarizerProvider() *testutils.ScriptedProvider {
	return &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			chunk := chunkFromPrompt(req.Messages[len(req.Messages)-1].Content)
			first, _, _ := strings.Cut(strings.TrimSpace(chunk), " ")
			return "sum-" + first, nil
		},
	}
}

func newTestSummaryFlow(t *testing.T, cfg *config.SummaryFlowConfig, cheap, powerful llm.Provider) *SummaryFlow {
	t.Helper()
	flow, err := NewSummaryFlow(cfg,
		WithBlock("cheap_summarizer", testutils.ScriptedBlock(t, cheap)),
		WithBlock("powerful_combiner", testutils.ScriptedBlock(t, powerful)),
	)
	require.NoError(t, err)
	return flow
}

func TestSummaryFlowEmptyContent(t *testing.T) {
	flow := newTestSummaryFlow(t, &config.SummaryFlowConfig{},
		&testutils.ScriptedProvider{}, &testutils.ScriptedProvider{})

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "   "))
	assert.Equal(t, "No content available for summarization.", result)
}

func TestSummaryFlowTwoStage(t *testing.T) {
	cheap := summarizerProvider()
	var combinerPrompt string
	powerful := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			combinerPrompt = req.Messages[len(req.Messages)-1].Content
			return "final summary", nil
		},
	}

	cfg := &config.SummaryFlowConfig{ChunkSize: 10}
	flow := newTestSummaryFlow(t, cfg, cheap, powerful)

	paper := testutils.SamplePaper("p1", "aaaa bbbb cccc dddd eeee ffff")
	result := flow.Run(context.Background(), paper)

	assert.Equal(t, "final summary", result)
	assert.GreaterOrEqual(t, cheap.CallCount(), 2)
	assert.Equal(t, 1, powerful.CallCount())

	// Combined input keeps original chunk order joined by blank lines.
	assert.Contains(t, combinerPrompt, "sum-aaaa\n\nsum-cccc\n\nsum-eeee")
}

func TestSummaryFlowSingleChunkSkipsCombiner(t *testing.T) {
	cheap := summarizerProvider()
	powerful := &testutils.ScriptedProvider{}

	cfg := &config.SummaryFlowConfig{ChunkSize: 2000}
	flow := newTestSummaryFlow(t, cfg, cheap, powerful)

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "short content"))

	assert.Equal(t, "sum-short", result, "single chunk summary is returned verbatim")
	assert.Equal(t, 1, cheap.CallCount())
	assert.Equal(t, 0, powerful.CallCount())
}

func TestSummaryFlowWithoutChunking(t *testing.T) {
	cheap := &testutils.ScriptedProvider{}
	powerful := summarizerProvider()

	useChunking := false
	cfg := &config.SummaryFlowConfig{UseChunking: &useChunking}
	flow := newTestSummaryFlow(t, cfg, cheap, powerful)

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "whole document text"))

	assert.Equal(t, "sum-whole", result)
	assert.Equal(t, 0, cheap.CallCount())
	assert.Equal(t, 1, powerful.CallCount())
}

func TestSummaryFlowAllChunkSummariesFail(t *testing.T) {
	powerful := &testutils.ScriptedProvider{}
	flow := newTestSummaryFlow(t, &config.SummaryFlowConfig{ChunkSize: 10},
		testutils.FailingProvider(), powerful)

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "aaaa bbbb cccc dddd eeee ffff"))

	assert.Equal(t, "Failed to summarize content.", result)
	assert.Equal(t, 0, powerful.CallCount())
}

func TestSummaryFlowCombinerFailure(t *testing.T) {
	flow := newTestSummaryFlow(t, &config.SummaryFlowConfig{ChunkSize: 10},
		summarizerProvider(), testutils.FailingProvider())

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "aaaa bbbb cccc dddd eeee ffff"))
	assert.Equal(t, "Failed to generate final summary.", result)
}

func TestSummaryFlowCustomChunker(t *testing.T) {
	registerLineChunker(t)

	cheap := summarizerProvider()
	var combinerPrompt string
	powerful := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			combinerPrompt = req.Messages[len(req.Messages)-1].Content
			return "combined", nil
		},
	}

	cfg := &config.SummaryFlowConfig{
		ChunkStrat:          config.ChunkByCustom,
		ChunkCustomStrategy: "flow-test-lines",
	}
	flow := newTestSummaryFlow(t, cfg, cheap, powerful)

	result := flow.Run(context.Background(), testutils.SamplePaper("p1", "alpha line\nbeta line"))

	assert.Equal(t, "combined", result)
	assert.Equal(t, 2, cheap.CallCount())
	assert.Contains(t, combinerPrompt, "sum-alpha\n\nsum-beta")
}

func TestSummaryFlowRejectsSectionChunkingAtConstruction(t *testing.T) {
	cfg := &config.SummaryFlowConfig{ChunkStrat: config.ChunkBySection}
	_, err := NewSummaryFlow(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestPodcastFlowRun(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return fmt.Sprintf("section text %d", call), nil
		},
	}
	block := testutils.ScriptedBlock(t, provider)

	cfg := &config.PodcastFlowConfig{}
	flow, err := NewPodcastFlow(cfg,
		WithBlock("intro_generator", block),
		WithBlock("main_generator", block),
		WithBlock("outro_generator", block),
	)
	require.NoError(t, err)

	script := flow.Run(context.Background(), "the research summary")

	assert.Len(t, script, 3)
	assert.NotEmpty(t, script["intro"])
	assert.NotEmpty(t, script["main"])
	assert.NotEmpty(t, script["outro"])
	assert.Equal(t, 3, provider.CallCount())
}

func TestPodcastFlowSkipsSectionsWithoutTemplate(t *testing.T) {
	provider := &testutils.ScriptedProvider{}
	block := testutils.ScriptedBlock(t, provider)

	cfg := &config.PodcastFlowConfig{
		BaseFlowConfig: config.BaseFlowConfig{
			PromptTemplates: map[string]string{
				"intro_prompt": "Intro for {{ summary_hint }}",
				"main_prompt":  "Main for {{ summary_hint }} with {{ num_speakers }} speakers",
			},
		},
	}
	flow, err := NewPodcastFlow(cfg,
		WithBlock("intro_generator", block),
		WithBlock("main_generator", block),
		WithBlock("outro_generator", block),
	)
	require.NoError(t, err)

	script := flow.Run(context.Background(), "summary")

	assert.Contains(t, script, "intro")
	assert.Contains(t, script, "main")
	assert.NotContains(t, script, "outro")
}

func TestPodcastFlowEmptySummaryUsesHint(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return req.Messages[len(req.Messages)-1].Content, nil
		},
	}
	cfg := &config.PodcastFlowConfig{SummaryHint: "fallback hint"}
	flow, err := NewPodcastFlow(cfg,
		WithBlock("intro_generator", testutils.ScriptedBlock(t, provider)),
		WithBlock("main_generator", testutils.ScriptedBlock(t, provider)),
		WithBlock("outro_generator", testutils.ScriptedBlock(t, provider)),
	)
	require.NoError(t, err)

	script := flow.Run(context.Background(), "")
	assert.Contains(t, script["intro"], "fallback hint")
}

func TestPodcastFlowTypeRegistered(t *testing.T) {
	cfg, err := config.NewFlowConfig("podcast")
	require.NoError(t, err)
	assert.Equal(t, "podcast", cfg.FlowType())
}
