package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind/quantmind/pkg/logger"
	"github.com/quantmind/quantmind/pkg/registry"
)

// Setting is the root configuration: optional pipeline components, a map of
// named flows, the default LLM config and the log level.
type Setting struct {
	Source  ComponentConfig
	Parser  ComponentConfig
	Tagger  *LLMTaggerConfig
	Storage *LocalStorageConfig
	Flows   map[string]FlowConfig
	LLM     *LLMConfig
	LogLevel string
}

// NewDefaultSetting mirrors the stock pipeline: arXiv source, PDF parser,
// LLM tagger, local storage.
func NewDefaultSetting() *Setting {
	s := &Setting{
		Source:  &ArxivSourceConfig{},
		Parser:  &PDFParserConfig{},
		Tagger:  &LLMTaggerConfig{},
		Storage: &LocalStorageConfig{},
		Flows:   map[string]FlowConfig{},
		LLM:     &LLMConfig{},
	}
	_ = s.SetDefaults()
	return s
}

// SetDefaults applies defaults to every present component.
func (s *Setting) SetDefaults() error {
	if s.Storage == nil {
		s.Storage = &LocalStorageConfig{}
	}
	if s.LLM == nil {
		s.LLM = &LLMConfig{}
	}
	if s.Flows == nil {
		s.Flows = map[string]FlowConfig{}
	}
	if s.LogLevel == "" {
		s.LogLevel = "INFO"
	}

	if s.Source != nil {
		if err := s.Source.SetDefaults(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}
	if s.Parser != nil {
		if err := s.Parser.SetDefaults(); err != nil {
			return fmt.Errorf("parser: %w", err)
		}
	}
	if s.Tagger != nil {
		if err := s.Tagger.SetDefaults(); err != nil {
			return fmt.Errorf("tagger: %w", err)
		}
	}
	if err := s.Storage.SetDefaults(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	s.LLM.SetDefaults()
	for name, flowCfg := range s.Flows {
		if err := flowCfg.SetDefaults(); err != nil {
			return fmt.Errorf("flow %q: %w", name, err)
		}
		if flowCfg.Base().Name == "" {
			flowCfg.Base().Name = name
		}
	}
	return nil
}

// Validate checks every present component.
func (s *Setting) Validate() error {
	switch strings.ToUpper(s.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("log_level must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL, got %q", s.LogLevel)
	}

	if s.Source != nil {
		if err := s.Source.Validate(); err != nil {
			return err
		}
	}
	if s.Parser != nil {
		if err := s.Parser.Validate(); err != nil {
			return err
		}
	}
	if s.Tagger != nil {
		if err := s.Tagger.Validate(); err != nil {
			return err
		}
	}
	if err := s.Storage.Validate(); err != nil {
		return err
	}
	if err := s.LLM.Validate(); err != nil {
		return err
	}
	for name, flowCfg := range s.Flows {
		if err := flowCfg.Validate(); err != nil {
			return fmt.Errorf("flow %q: %w", name, err)
		}
	}
	return nil
}

// LoadSetting loads the root configuration from a YAML file.
//
// The pipeline: load env files (explicit envFile, else auto-discovered
// .env), parse YAML, substitute ${VAR} and ${VAR:default} in every string
// value, dispatch each component section by its {type, config} shape
// through the registries, apply defaults, validate, and configure logging
// from log_level.
func LoadSetting(path string, envFile string) (*Setting, error) {
	if err := loadEnvFiles(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}

	expanded, _ := ExpandEnvVars(raw).(map[string]any)

	setting, err := parseSetting(expanded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := setting.SetDefaults(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := setting.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Configure(setting.LogLevel)
	return setting, nil
}

func parseSetting(raw map[string]any) (*Setting, error) {
	setting := &Setting{Flows: map[string]FlowConfig{}}

	if section, ok := raw["source"]; ok {
		cfg, err := parseComponentSection("source", section, sourceConfigs)
		if err != nil {
			return nil, err
		}
		setting.Source = cfg
	}

	if section, ok := raw["parser"]; ok {
		cfg, err := parseComponentSection("parser", section, parserConfigs)
		if err != nil {
			return nil, err
		}
		setting.Parser = cfg
	}

	if section, ok := raw["tagger"]; ok {
		cfg, err := parseComponentSection("tagger", section, taggerConfigs)
		if err != nil {
			return nil, err
		}
		taggerCfg, ok := cfg.(*LLMTaggerConfig)
		if !ok {
			return nil, fmt.Errorf("tagger: unsupported config type %T", cfg)
		}
		setting.Tagger = taggerCfg
	}

	if section, ok := raw["storage"]; ok {
		cfg, err := parseComponentSection("storage", section, storageConfigs)
		if err != nil {
			return nil, err
		}
		storageCfg, ok := cfg.(*LocalStorageConfig)
		if !ok {
			return nil, fmt.Errorf("storage: unsupported config type %T", cfg)
		}
		setting.Storage = storageCfg
	}

	if section, ok := raw["flows"]; ok {
		flows, ok := section.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("flows: expected a mapping of flow name to {type, config}")
		}
		for name, flowSection := range flows {
			flowCfg, err := parseFlowSection(name, flowSection)
			if err != nil {
				return nil, err
			}
			setting.Flows[name] = flowCfg
		}
	}

	if section, ok := raw["llm"]; ok {
		llmMap, ok := section.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("llm: expected a mapping")
		}
		llmCfg := &LLMConfig{}
		if err := decodeInto(llmMap, llmCfg); err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		setting.LLM = llmCfg
	}

	if level, ok := raw["log_level"].(string); ok {
		setting.LogLevel = level
	}

	return setting, nil
}

// sectionShape is the {type, config} envelope of every component section.
type sectionShape struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

func parseSectionShape(section string, raw any) (*sectionShape, error) {
	asMap, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a {type, config} mapping", section)
	}
	shape := &sectionShape{}
	if err := decodeInto(asMap, shape); err != nil {
		return nil, fmt.Errorf("%s: %w", section, err)
	}
	if shape.Type == "" {
		return nil, fmt.Errorf("%s: missing 'type'", section)
	}
	return shape, nil
}

func parseComponentSection(section string, raw any, reg *registry.BaseRegistry[ComponentFactory]) (ComponentConfig, error) {
	shape, err := parseSectionShape(section, raw)
	if err != nil {
		return nil, err
	}
	cfg, err := newComponentConfig(section, reg, shape.Type)
	if err != nil {
		return nil, err
	}
	if shape.Config != nil {
		if err := decodeInto(shape.Config, cfg); err != nil {
			return nil, fmt.Errorf("%s (%s): %w", section, shape.Type, err)
		}
	}
	return cfg, nil
}

func parseFlowSection(name string, raw any) (FlowConfig, error) {
	section := fmt.Sprintf("flows.%s", name)
	shape, err := parseSectionShape(section, raw)
	if err != nil {
		return nil, err
	}
	cfg, err := NewFlowConfig(shape.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", section, err)
	}
	if shape.Config != nil {
		if err := decodeInto(shape.Config, cfg); err != nil {
			return nil, fmt.Errorf("%s (%s): %w", section, shape.Type, err)
		}
	}
	return cfg, nil
}

// SaveToYAML exports the setting. Credential fields are stripped.
func (s *Setting) SaveToYAML(path string) error {
	out := map[string]any{}

	addComponent := func(key string, cfg ComponentConfig) error {
		if cfg == nil {
			return nil
		}
		m, err := toMap(cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out[key] = map[string]any{
			"type":   cfg.ComponentType(),
			"config": stripSensitive(m),
		}
		return nil
	}

	if err := addComponent("source", s.Source); err != nil {
		return err
	}
	if err := addComponent("parser", s.Parser); err != nil {
		return err
	}
	if s.Tagger != nil {
		if err := addComponent("tagger", s.Tagger); err != nil {
			return err
		}
	}
	if s.Storage != nil {
		if err := addComponent("storage", s.Storage); err != nil {
			return err
		}
	}

	if len(s.Flows) > 0 {
		flows := map[string]any{}
		for name, flowCfg := range s.Flows {
			m, err := toMap(flowCfg)
			if err != nil {
				return fmt.Errorf("flow %q: %w", name, err)
			}
			flows[name] = map[string]any{
				"type":   flowCfg.FlowType(),
				"config": stripSensitive(m),
			}
		}
		out["flows"] = flows
	}

	if s.LLM != nil {
		m, err := toMap(s.LLM)
		if err != nil {
			return fmt.Errorf("llm: %w", err)
		}
		out["llm"] = stripSensitive(m)
	}
	out["log_level"] = s.LogLevel

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return encoder.Close()
}
