package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/quantmind/quantmind/pkg/registry"
)

// ErrUnknownComponent reports a component section whose type string has no
// registered config.
var ErrUnknownComponent = errors.New("unknown component type")

// ComponentConfig is the contract for source, parser, tagger and storage
// configurations.
type ComponentConfig interface {
	// ComponentType returns the registered type string ("arxiv", "pdf", ...).
	ComponentType() string

	SetDefaults() error
	Validate() error
}

// ComponentFactory builds an empty config for a registered component type.
type ComponentFactory func() ComponentConfig

var (
	sourceConfigs  = registry.NewBaseRegistry[ComponentFactory]()
	parserConfigs  = registry.NewBaseRegistry[ComponentFactory]()
	taggerConfigs  = registry.NewBaseRegistry[ComponentFactory]()
	storageConfigs = registry.NewBaseRegistry[ComponentFactory]()
)

// RegisterSourceConfig registers a source config type.
func RegisterSourceConfig(name string, factory ComponentFactory) {
	sourceConfigs.Put(name, factory)
}

// RegisterParserConfig registers a parser config type.
func RegisterParserConfig(name string, factory ComponentFactory) {
	parserConfigs.Put(name, factory)
}

// RegisterTaggerConfig registers a tagger config type.
func RegisterTaggerConfig(name string, factory ComponentFactory) {
	taggerConfigs.Put(name, factory)
}

// RegisterStorageConfig registers a storage config type.
func RegisterStorageConfig(name string, factory ComponentFactory) {
	storageConfigs.Put(name, factory)
}

func newComponentConfig(section string, reg *registry.BaseRegistry[ComponentFactory], componentType string) (ComponentConfig, error) {
	factory, ok := reg.Get(componentType)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q (registered: %v)", section, ErrUnknownComponent, componentType, reg.Names())
	}
	return factory(), nil
}

// ArxivSourceConfig configures the arXiv paper source.
type ArxivSourceConfig struct {
	// Query is the arXiv search query, e.g. "cat:q-fin.CP".
	Query      string   `yaml:"query,omitempty"`
	MaxResults int      `yaml:"max_results,omitempty"`
	SortBy     string   `yaml:"sort_by,omitempty"`
	SortOrder  string   `yaml:"sort_order,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
}

func (c *ArxivSourceConfig) ComponentType() string { return "arxiv" }

func (c *ArxivSourceConfig) SetDefaults() error {
	if c.MaxResults == 0 {
		c.MaxResults = 100
	}
	if c.SortBy == "" {
		c.SortBy = "submittedDate"
	}
	if c.SortOrder == "" {
		c.SortOrder = "descending"
	}
	return nil
}

func (c *ArxivSourceConfig) Validate() error {
	if c.MaxResults <= 0 {
		return fmt.Errorf("arxiv source: max_results must be positive, got %d", c.MaxResults)
	}
	switch c.SortBy {
	case "relevance", "lastUpdatedDate", "submittedDate":
	default:
		return fmt.Errorf("arxiv source: invalid sort_by %q", c.SortBy)
	}
	switch c.SortOrder {
	case "ascending", "descending":
	default:
		return fmt.Errorf("arxiv source: invalid sort_order %q", c.SortOrder)
	}
	return nil
}

// SearchSourceConfig configures a web search source. It is registered under
// the news, web and search type names; kind records which one was used.
type SearchSourceConfig struct {
	kind string

	MaxResults int    `yaml:"max_results,omitempty"`
	Region     string `yaml:"region,omitempty"`
	SafeSearch string `yaml:"safe_search,omitempty"`
}

func (c *SearchSourceConfig) ComponentType() string {
	if c.kind == "" {
		return "search"
	}
	return c.kind
}

func (c *SearchSourceConfig) SetDefaults() error {
	if c.MaxResults == 0 {
		c.MaxResults = 10
	}
	if c.Region == "" {
		c.Region = "wt-wt"
	}
	if c.SafeSearch == "" {
		c.SafeSearch = "moderate"
	}
	return nil
}

func (c *SearchSourceConfig) Validate() error {
	if c.MaxResults <= 0 {
		return fmt.Errorf("search source: max_results must be positive, got %d", c.MaxResults)
	}
	switch c.SafeSearch {
	case "on", "moderate", "off":
	default:
		return fmt.Errorf("search source: invalid safe_search %q", c.SafeSearch)
	}
	return nil
}

// PDFParserConfig configures the local PDF text extractor.
type PDFParserConfig struct {
	Method        string `yaml:"method,omitempty"`
	DownloadPDFs  *bool  `yaml:"download_pdfs,omitempty"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb,omitempty"`
	ExtractTables bool   `yaml:"extract_tables,omitempty"`
}

func (c *PDFParserConfig) ComponentType() string { return "pdf" }

func (c *PDFParserConfig) SetDefaults() error {
	if c.Method == "" {
		c.Method = "auto"
	}
	if c.DownloadPDFs == nil {
		download := true
		c.DownloadPDFs = &download
	}
	if c.MaxFileSizeMB == 0 {
		c.MaxFileSizeMB = 50
	}
	return nil
}

func (c *PDFParserConfig) Validate() error {
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("pdf parser: max_file_size_mb must be positive, got %d", c.MaxFileSizeMB)
	}
	return nil
}

// DownloadPDFsValue returns download_pdfs with its default applied.
func (c *PDFParserConfig) DownloadPDFsValue() bool {
	if c.DownloadPDFs == nil {
		return true
	}
	return *c.DownloadPDFs
}

// LlamaParserConfig configures the LlamaParse cloud parser. Only the config
// surface is supported; no parser implementation backs it.
type LlamaParserConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	ResultType string `yaml:"result_type,omitempty"`
}

func (c *LlamaParserConfig) ComponentType() string { return "llama" }

func (c *LlamaParserConfig) SetDefaults() error {
	if c.ResultType == "" {
		c.ResultType = "markdown"
	}
	return nil
}

func (c *LlamaParserConfig) Validate() error {
	if c.ResultType != "markdown" && c.ResultType != "text" {
		return fmt.Errorf("llama parser: result_type must be 'markdown' or 'text', got %q", c.ResultType)
	}
	return nil
}

// LLMTaggerConfig configures the LLM-based tagger.
type LLMTaggerConfig struct {
	LLMType            string  `yaml:"llm_type,omitempty"`
	LLMName            string  `yaml:"llm_name,omitempty"`
	Temperature        float64 `yaml:"temperature,omitempty"`
	MaxTokens          int     `yaml:"max_tokens,omitempty"`
	MaxTags            int     `yaml:"max_tags,omitempty"`
	APIKey             string  `yaml:"api_key,omitempty"`
	BaseURL            string  `yaml:"base_url,omitempty"`
	CustomPrompt       string  `yaml:"custom_prompt,omitempty"`
	CustomInstructions string  `yaml:"custom_instructions,omitempty"`
}

func (c *LLMTaggerConfig) ComponentType() string { return "llm" }

func (c *LLMTaggerConfig) SetDefaults() error {
	if c.LLMType == "" {
		c.LLMType = "openai"
	}
	if c.LLMName == "" {
		c.LLMName = "gpt-4o"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 5000
	}
	if c.MaxTags == 0 {
		c.MaxTags = 5
	}
	return nil
}

func (c *LLMTaggerConfig) Validate() error {
	switch c.LLMType {
	case "openai", "anthropic", "gemini", "deepseek":
	default:
		return fmt.Errorf("tagger: llm_type must be one of openai, anthropic, gemini, deepseek, got %q", c.LLMType)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("tagger: temperature must be between 0 and 1, got %v", c.Temperature)
	}
	if c.MaxTokens < 100 || c.MaxTokens > 1_000_000 {
		return fmt.Errorf("tagger: max_tokens must be between 100 and 1000000, got %d", c.MaxTokens)
	}
	if c.MaxTags < 1 || c.MaxTags > 10 {
		return fmt.Errorf("tagger: max_tags must be between 1 and 10, got %d", c.MaxTags)
	}
	return nil
}

// LLMConfig is the tagger's projection onto an LLM block config.
func (c *LLMTaggerConfig) LLMConfig() *LLMConfig {
	llmCfg := NewLLMConfig(c.LLMName)
	llmCfg.Temperature = c.Temperature
	llmCfg.MaxTokens = c.MaxTokens
	llmCfg.APIKey = c.APIKey
	llmCfg.BaseURL = c.BaseURL
	llmCfg.CustomInstructions = c.CustomInstructions
	llmCfg.SetDefaults()
	return llmCfg
}

// LocalStorageConfig configures the indexed local file store.
type LocalStorageConfig struct {
	// StorageDir is the root directory holding the four namespaces.
	StorageDir string `yaml:"storage_dir,omitempty"`

	// DownloadTimeout bounds raw-file downloads, in seconds.
	DownloadTimeout int `yaml:"download_timeout,omitempty"`
}

// NewLocalStorageConfig returns a storage config with defaults applied.
func NewLocalStorageConfig(storageDir string) *LocalStorageConfig {
	cfg := &LocalStorageConfig{StorageDir: storageDir}
	_ = cfg.SetDefaults()
	return cfg
}

func (c *LocalStorageConfig) ComponentType() string { return "local" }

func (c *LocalStorageConfig) SetDefaults() error {
	if c.StorageDir == "" {
		c.StorageDir = "./data"
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = 30
	}
	return nil
}

func (c *LocalStorageConfig) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage: storage_dir must not be empty")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("storage: download_timeout must be positive, got %d", c.DownloadTimeout)
	}
	return nil
}

// AbsStorageDir resolves the storage root to an absolute path.
func (c *LocalStorageConfig) AbsStorageDir() (string, error) {
	return filepath.Abs(c.StorageDir)
}

func init() {
	RegisterSourceConfig("arxiv", func() ComponentConfig { return &ArxivSourceConfig{} })
	RegisterSourceConfig("news", func() ComponentConfig { return &SearchSourceConfig{kind: "news"} })
	RegisterSourceConfig("web", func() ComponentConfig { return &SearchSourceConfig{kind: "web"} })
	RegisterSourceConfig("search", func() ComponentConfig { return &SearchSourceConfig{kind: "search"} })

	RegisterParserConfig("pdf", func() ComponentConfig { return &PDFParserConfig{} })
	RegisterParserConfig("llama", func() ComponentConfig { return &LlamaParserConfig{} })

	RegisterTaggerConfig("llm", func() ComponentConfig { return &LLMTaggerConfig{} })

	RegisterStorageConfig("local", func() ComponentConfig { return &LocalStorageConfig{} })
}
