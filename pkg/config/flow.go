package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind/quantmind/pkg/chunking"
	"github.com/quantmind/quantmind/pkg/registry"
)

// FlowConfig is the configuration contract every flow type implements. A
// flow config only declares resources (LLM blocks and prompt templates);
// orchestration lives in the flow code.
type FlowConfig interface {
	// FlowType returns the registered type string ("base", "summary", ...).
	FlowType() string

	// Base exposes the shared resource fields.
	Base() *BaseFlowConfig

	SetDefaults() error
	Validate() error
}

// BaseFlowConfig is the embedded base of every flow config.
type BaseFlowConfig struct {
	Name string `yaml:"name,omitempty"`

	// LLMBlocks maps block names to their LLM configurations.
	LLMBlocks map[string]*LLMConfig `yaml:"llm_blocks,omitempty"`

	// PromptTemplates maps template names to Jinja-syntax template strings.
	PromptTemplates map[string]string `yaml:"prompt_templates,omitempty"`

	// PromptTemplatesPath optionally points to a YAML file with a top-level
	// "templates" mapping; when set, its contents replace PromptTemplates.
	PromptTemplatesPath string `yaml:"prompt_templates_path,omitempty"`
}

func (c *BaseFlowConfig) FlowType() string {
	return "base"
}

func (c *BaseFlowConfig) Base() *BaseFlowConfig {
	return c
}

// SetDefaults loads prompt templates from PromptTemplatesPath when set.
// This is the single step where a flow config touches the filesystem.
func (c *BaseFlowConfig) SetDefaults() error {
	if c.PromptTemplatesPath != "" {
		templates, err := loadPromptTemplates(c.PromptTemplatesPath)
		if err != nil {
			return err
		}
		c.PromptTemplates = templates
	}
	for _, blockCfg := range c.LLMBlocks {
		blockCfg.SetDefaults()
	}
	return nil
}

func (c *BaseFlowConfig) Validate() error {
	for name, blockCfg := range c.LLMBlocks {
		if blockCfg == nil {
			return fmt.Errorf("flow %q: llm block %q has no config", c.Name, name)
		}
		if err := blockCfg.Validate(); err != nil {
			return fmt.Errorf("flow %q: llm block %q: %w", c.Name, name, err)
		}
	}
	return nil
}

// loadPromptTemplates reads a YAML file with a required top-level
// "templates" mapping.
func loadPromptTemplates(path string) (map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("prompt templates file must be a YAML file, got: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt templates: %w", err)
	}

	var parsed struct {
		Templates map[string]string `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates %s: %w", path, err)
	}
	if len(parsed.Templates) == 0 {
		return nil, fmt.Errorf("no 'templates' section found in %s", path)
	}
	return parsed.Templates, nil
}

// ChunkStrategy selects how summary content is split.
type ChunkStrategy string

const (
	ChunkBySize    ChunkStrategy = "size"
	ChunkByCustom  ChunkStrategy = "custom"
	ChunkBySection ChunkStrategy = "section"
)

// SummaryFlowConfig configures the two-stage map/reduce summary flow.
type SummaryFlowConfig struct {
	BaseFlowConfig `yaml:",inline"`

	UseChunking *bool         `yaml:"use_chunking,omitempty"`
	ChunkSize   int           `yaml:"chunk_size,omitempty"`
	ChunkStrat  ChunkStrategy `yaml:"chunk_strategy,omitempty"`

	// ChunkCustomStrategy names a chunker registered in pkg/chunking.
	// Configs carry the name rather than a function value so they stay
	// serializable.
	ChunkCustomStrategy string `yaml:"chunk_custom_strategy,omitempty"`
}

// NewSummaryFlowConfig returns a summary flow config with defaults applied.
func NewSummaryFlowConfig() *SummaryFlowConfig {
	cfg := &SummaryFlowConfig{}
	_ = cfg.SetDefaults()
	return cfg
}

func (c *SummaryFlowConfig) FlowType() string {
	return "summary"
}

// SetDefaults fills the two-stage defaults: a cheap summarizer for the map
// step and a powerful combiner for the reduce step. User-supplied blocks
// and templates are left untouched.
func (c *SummaryFlowConfig) SetDefaults() error {
	if err := c.BaseFlowConfig.SetDefaults(); err != nil {
		return err
	}

	if c.UseChunking == nil {
		useChunking := true
		c.UseChunking = &useChunking
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 2000
	}
	if c.ChunkStrat == "" {
		c.ChunkStrat = ChunkBySize
	}

	if len(c.LLMBlocks) == 0 {
		cheap := NewLLMConfig("gpt-4o-mini")
		cheap.Temperature = 0.3
		cheap.MaxTokens = 1000
		powerful := NewLLMConfig("gpt-4o")
		powerful.Temperature = 0.3
		powerful.MaxTokens = 2000
		c.LLMBlocks = map[string]*LLMConfig{
			"cheap_summarizer":  cheap,
			"powerful_combiner": powerful,
		}
	}

	if len(c.PromptTemplates) == 0 {
		c.PromptTemplates = map[string]string{
			"summarize_chunk_template": "You are a financial research expert. Summarize the following content chunk " +
				"focusing on key insights, methodology, and findings. Keep it concise but comprehensive.\n\n" +
				"Content:\n{{ chunk_text }}\n\n" +
				"Summary:",
			"combine_summaries_template": "You are a financial research expert. Combine the following chunk summaries " +
				"into a coherent, comprehensive final summary. Eliminate redundancy and " +
				"create a well-structured overview.\n\n" +
				"Chunk Summaries:\n{{ summaries }}\n\n" +
				"Final Summary:",
		}
	}
	return nil
}

func (c *SummaryFlowConfig) Validate() error {
	if err := c.BaseFlowConfig.Validate(); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("summary flow: chunk_size must be positive, got %d", c.ChunkSize)
	}
	switch c.ChunkStrat {
	case ChunkBySize:
	case ChunkByCustom:
		if c.ChunkCustomStrategy == "" {
			return fmt.Errorf("summary flow: chunk_strategy 'custom' requires chunk_custom_strategy")
		}
		if _, err := chunking.Lookup(c.ChunkCustomStrategy); err != nil {
			return fmt.Errorf("summary flow: %w", err)
		}
	case ChunkBySection:
		return fmt.Errorf("summary flow: chunking strategy %q is not implemented", c.ChunkStrat)
	default:
		return fmt.Errorf("summary flow: unknown chunk_strategy %q", c.ChunkStrat)
	}
	return nil
}

// UseChunkingValue returns use_chunking with its default applied.
func (c *SummaryFlowConfig) UseChunkingValue() bool {
	if c.UseChunking == nil {
		return true
	}
	return *c.UseChunking
}

// PodcastFlowConfig configures the podcast script generation flow.
type PodcastFlowConfig struct {
	BaseFlowConfig `yaml:",inline"`

	NumSpeakers      int    `yaml:"num_speakers,omitempty"`
	SpeakerLanguages string `yaml:"speaker_languages,omitempty"`
	SummaryHint      string `yaml:"summary_hint,omitempty"`
}

func (c *PodcastFlowConfig) FlowType() string {
	return "podcast"
}

func (c *PodcastFlowConfig) SetDefaults() error {
	if err := c.BaseFlowConfig.SetDefaults(); err != nil {
		return err
	}

	if c.NumSpeakers == 0 {
		c.NumSpeakers = 2
	}
	if c.SpeakerLanguages == "" {
		c.SpeakerLanguages = "en-us"
	}

	if len(c.LLMBlocks) == 0 {
		generator := func() *LLMConfig {
			cfg := NewLLMConfig("gpt-4o")
			cfg.Temperature = 0.7
			cfg.MaxTokens = 2000
			return cfg
		}
		c.LLMBlocks = map[string]*LLMConfig{
			"intro_generator": generator(),
			"main_generator":  generator(),
			"outro_generator": generator(),
		}
	}

	if len(c.PromptTemplates) == 0 {
		c.PromptTemplates = map[string]string{
			"intro_prompt": "Write a short podcast introduction for an episode about the following research.\n\n" +
				"Summary:\n{{ summary_hint }}\n\nIntroduction:",
			"main_prompt": "Write the main segment of a podcast script with {{ num_speakers }} speakers discussing " +
				"the following research summary. Keep the dialogue natural and informative.\n\n" +
				"Summary:\n{{ summary_hint }}\n\nScript:",
			"outro_prompt": "Write a short podcast outro wrapping up an episode about the following research.\n\n" +
				"Summary:\n{{ summary_hint }}\n\nOutro:",
		}
	}
	return nil
}

func (c *PodcastFlowConfig) Validate() error {
	if err := c.BaseFlowConfig.Validate(); err != nil {
		return err
	}
	if c.NumSpeakers <= 0 {
		return fmt.Errorf("podcast flow: num_speakers must be positive, got %d", c.NumSpeakers)
	}
	return nil
}

// FlowConfigFactory builds an empty config for a registered flow type.
type FlowConfigFactory func() FlowConfig

var flowConfigs = registry.NewBaseRegistry[FlowConfigFactory]()

// RegisterFlowConfig registers a flow config type. User-defined flows call
// this at startup (typically from a package init). Duplicate registrations
// overwrite the previous factory.
func RegisterFlowConfig(name string, factory FlowConfigFactory) {
	if replaced := flowConfigs.Put(name, factory); replaced {
		slog.Debug("Flow config type overwritten", "type", name)
	}
}

// NewFlowConfig instantiates an empty config for a registered flow type.
func NewFlowConfig(flowType string) (FlowConfig, error) {
	factory, ok := flowConfigs.Get(flowType)
	if !ok {
		return nil, fmt.Errorf("unknown flow type %q (registered: %v)", flowType, flowConfigs.Names())
	}
	return factory(), nil
}

// RegisteredFlowTypes returns the registered flow type names, sorted.
func RegisteredFlowTypes() []string {
	return flowConfigs.Names()
}

func init() {
	RegisterFlowConfig("base", func() FlowConfig { return &BaseFlowConfig{} })
	RegisterFlowConfig("summary", func() FlowConfig { return &SummaryFlowConfig{} })
}
