package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind/quantmind/pkg/chunking"
)

func TestSummaryFlowConfigDefaults(t *testing.T) {
	cfg := NewSummaryFlowConfig()

	assert.True(t, cfg.UseChunkingValue())
	assert.Equal(t, 2000, cfg.ChunkSize)
	assert.Equal(t, ChunkBySize, cfg.ChunkStrat)

	require.Contains(t, cfg.LLMBlocks, "cheap_summarizer")
	require.Contains(t, cfg.LLMBlocks, "powerful_combiner")
	assert.Equal(t, "gpt-4o-mini", cfg.LLMBlocks["cheap_summarizer"].Model)
	assert.Equal(t, 1000, cfg.LLMBlocks["cheap_summarizer"].MaxTokens)
	assert.Equal(t, "gpt-4o", cfg.LLMBlocks["powerful_combiner"].Model)
	assert.Equal(t, 2000, cfg.LLMBlocks["powerful_combiner"].MaxTokens)

	require.Contains(t, cfg.PromptTemplates, "summarize_chunk_template")
	require.Contains(t, cfg.PromptTemplates, "combine_summaries_template")
	assert.Contains(t, cfg.PromptTemplates["summarize_chunk_template"], "{{ chunk_text }}")
	assert.Contains(t, cfg.PromptTemplates["combine_summaries_template"], "{{ summaries }}")

	require.NoError(t, cfg.Validate())
}

func TestSummaryFlowConfigUserBlocksKept(t *testing.T) {
	custom := NewLLMConfig("claude-3-haiku")
	cfg := &SummaryFlowConfig{
		BaseFlowConfig: BaseFlowConfig{
			LLMBlocks:       map[string]*LLMConfig{"cheap_summarizer": custom},
			PromptTemplates: map[string]string{"summarize_chunk_template": "{{ chunk_text }}"},
		},
	}
	require.NoError(t, cfg.SetDefaults())

	assert.Len(t, cfg.LLMBlocks, 1)
	assert.Equal(t, "claude-3-haiku", cfg.LLMBlocks["cheap_summarizer"].Model)
	assert.Len(t, cfg.PromptTemplates, 1)
}

func TestSummaryFlowConfigSectionChunkingRejected(t *testing.T) {
	cfg := NewSummaryFlowConfig()
	cfg.ChunkStrat = ChunkBySection

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestSummaryFlowConfigCustomChunker(t *testing.T) {
	cfg := NewSummaryFlowConfig()
	cfg.ChunkStrat = ChunkByCustom
	assert.Error(t, cfg.Validate(), "custom strategy without a name")

	cfg.ChunkCustomStrategy = "no-such-chunker"
	assert.Error(t, cfg.Validate())

	require.NoError(t, chunking.Register("lines", func(text string) []string {
		return strings.Split(text, "\n")
	}))
	cfg.ChunkCustomStrategy = "lines"
	assert.NoError(t, cfg.Validate())
}

func TestPodcastFlowConfigDefaults(t *testing.T) {
	cfg := &PodcastFlowConfig{}
	require.NoError(t, cfg.SetDefaults())

	assert.Equal(t, 2, cfg.NumSpeakers)
	assert.Equal(t, "en-us", cfg.SpeakerLanguages)
	assert.Contains(t, cfg.LLMBlocks, "intro_generator")
	assert.Contains(t, cfg.LLMBlocks, "main_generator")
	assert.Contains(t, cfg.LLMBlocks, "outro_generator")
	require.NoError(t, cfg.Validate())
}

func TestPromptTemplatesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	content := "templates:\n  greeting_template: \"Hello {{ name }}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := &BaseFlowConfig{PromptTemplatesPath: path}
	require.NoError(t, cfg.SetDefaults())
	assert.Equal(t, "Hello {{ name }}", cfg.PromptTemplates["greeting_template"])
}

func TestPromptTemplatesPathErrors(t *testing.T) {
	dir := t.TempDir()

	cfg := &BaseFlowConfig{PromptTemplatesPath: filepath.Join(dir, "templates.txt")}
	err := cfg.SetDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YAML")

	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("other: {}\n"), 0o644))
	cfg = &BaseFlowConfig{PromptTemplatesPath: path}
	err = cfg.SetDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "templates")
}

func TestFlowConfigRegistry(t *testing.T) {
	_, err := NewFlowConfig("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flow type")

	cfg, err := NewFlowConfig("summary")
	require.NoError(t, err)
	assert.Equal(t, "summary", cfg.FlowType())

	assert.Contains(t, RegisteredFlowTypes(), "base")
	assert.Contains(t, RegisteredFlowTypes(), "summary")
}

func TestRegisterFlowConfigOverwrites(t *testing.T) {
	RegisterFlowConfig("overwrite-probe", func() FlowConfig { return &BaseFlowConfig{Name: "first"} })
	RegisterFlowConfig("overwrite-probe", func() FlowConfig { return &BaseFlowConfig{Name: "second"} })

	cfg, err := NewFlowConfig("overwrite-probe")
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.Base().Name)
}
