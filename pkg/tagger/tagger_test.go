package tagger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/llm"
	"github.com/quantmind/quantmind/pkg/testutils"
)

func newTestTagger(t *testing.T, cfg *config.LLMTaggerConfig, provider llm.Provider) *LLMTagger {
	t.Helper()
	tagger, err := NewLLMTaggerWithBlock(cfg, testutils.ScriptedBlock(t, provider))
	require.NoError(t, err)
	return tagger
}

func TestTagJSONArrayResponse(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `Here are the tags:
["Machine Learning", "  Portfolio Optimization ", "LSTM"]`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0001", "We apply LSTM networks to hedging.")
	tagger.Tag(context.Background(), paper)

	assert.Equal(t, []string{"machine learning", "portfolio optimization", "lstm"}, paper.Tags)
	assert.Equal(t, "llm_tagger", paper.MetaInfo["tagger"])
	assert.Equal(t, "gpt-4o", paper.MetaInfo["model_used"])
	assert.Equal(t, 3, paper.MetaInfo["tags_generated"])
}

func TestTagQuotedFallback(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `I suggest "Risk Management" and "Deep Learning" as tags.`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0002", "content")
	tagger.Tag(context.Background(), paper)

	assert.Equal(t, []string{"risk management", "deep learning"}, paper.Tags)
}

func TestTagCommaSeparatedFallback(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return "Suggested tags below.\ncrypto, trading, x, sentiment analysis", nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0003", "content")
	tagger.Tag(context.Background(), paper)

	// Single-character items are dropped.
	assert.Equal(t, []string{"crypto", "trading", "sentiment analysis"}, paper.Tags)
}

func TestTagTruncatesToMaxTags(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `["a1", "a2", "a3", "a4"]`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{MaxTags: 2}, provider)

	paper := testutils.SamplePaper("2401.0004", "content")
	tagger.Tag(context.Background(), paper)

	assert.Equal(t, []string{"a1", "a2"}, paper.Tags)
	assert.Equal(t, 2, paper.MetaInfo["tags_generated"])
}

func TestTagMergesIntoExistingTags(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `["existing", "fresh"]`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0005", "content")
	paper.AddTag("existing")
	tagger.Tag(context.Background(), paper)

	assert.Equal(t, []string{"existing", "fresh"}, paper.Tags)
}

func TestTagLLMFailureLeavesItemUnchanged(t *testing.T) {
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, testutils.FailingProvider())

	paper := testutils.SamplePaper("2401.0006", "content")
	paper.AddTag("pre")
	before := paper.UpdatedAt

	tagger.Tag(context.Background(), paper)

	assert.Equal(t, []string{"pre"}, paper.Tags)
	assert.NotContains(t, paper.MetaInfo, "tagger")
	assert.Equal(t, before, paper.UpdatedAt)
}

func TestTagUnparseableResponseLeavesItemUnchanged(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return "no structured tags here", nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0007", "content")
	tagger.Tag(context.Background(), paper)

	assert.Empty(t, paper.Tags)
	assert.NotContains(t, paper.MetaInfo, "tagger")
}

func TestCustomPromptSubstitution(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `["ok"]`, nil
		},
	}
	cfg := &config.LLMTaggerConfig{
		MaxTags:      3,
		CustomPrompt: "Pick {max_tags} tags for: {content}",
	}
	tagger := newTestTagger(t, cfg, provider)

	paper := testutils.SamplePaper("2401.0008", "body text")
	tagger.Tag(context.Background(), paper)

	require.Equal(t, 1, provider.CallCount())
	prompt := provider.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "Pick 3 tags for:")
	assert.Contains(t, prompt, "Title: Deep Hedging with Transformers")
	assert.Contains(t, prompt, "body text")
}

func TestDefaultPromptMentionsMaxTags(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `["ok"]`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	paper := testutils.SamplePaper("2401.0009", "content")
	tagger.Tag(context.Background(), paper)

	prompt := provider.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "generate 5 relevant tags")
	assert.Contains(t, prompt, "Paper Content:")
}

func TestPrepareContentClipsBody(t *testing.T) {
	var prompt string
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			prompt = req.Messages[0].Content
			return `["ok"]`, nil
		},
	}
	cfg := &config.LLMTaggerConfig{MaxTokens: 100}
	tagger := newTestTagger(t, cfg, provider)

	paper := testutils.SamplePaper("2401.0010", strings.Repeat("x", 500))
	tagger.Tag(context.Background(), paper)

	assert.Contains(t, prompt, strings.Repeat("x", 100)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 101))
}

func TestExtractTags(t *testing.T) {
	provider := &testutils.ScriptedProvider{
		Reply: func(call int, req *llm.Request) (string, error) {
			return `["alpha", "beta"]`, nil
		},
	}
	tagger := newTestTagger(t, &config.LLMTaggerConfig{}, provider)

	tags := tagger.ExtractTags(context.Background(), "some text", "A Title")
	assert.Equal(t, []string{"alpha", "beta"}, tags)

	prompt := provider.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "Title: A Title")
}

func TestNilBlockTaggerIsInert(t *testing.T) {
	tagger, err := NewLLMTaggerWithBlock(&config.LLMTaggerConfig{}, nil)
	require.NoError(t, err)

	paper := testutils.SamplePaper("2401.0011", "content")
	tagger.Tag(context.Background(), paper)

	assert.Empty(t, paper.Tags)
	assert.False(t, tagger.TestConnection(context.Background()))
	assert.Nil(t, tagger.ExtractTags(context.Background(), "text", ""))
}

func TestTaggerConfigValidationError(t *testing.T) {
	_, err := NewLLMTagger(&config.LLMTaggerConfig{MaxTags: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tags")
}
