package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quantmind/quantmind/pkg/config"
)

// Podcast section names double as result keys.
const (
	sectionIntro = "intro"
	sectionMain  = "main"
	sectionOutro = "outro"
)

var podcastSections = []struct {
	name     string
	block    string
	template string
}{
	{sectionIntro, "intro_generator", "intro_prompt"},
	{sectionMain, "main_generator", "main_prompt"},
	{sectionOutro, "outro_generator", "outro_prompt"},
}

// PodcastFlow turns a research summary into podcast script sections. A
// section is generated only when both its LLM block and its template are
// configured; everything else is skipped silently.
type PodcastFlow struct {
	*Base
	cfg *config.PodcastFlowConfig
}

// NewPodcastFlow builds the flow with config defaults applied.
func NewPodcastFlow(cfg *config.PodcastFlowConfig, opts ...Option) (*PodcastFlow, error) {
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
	return &PodcastFlow{Base: base, cfg: cfg}, nil
}

// Run renders and generates each configured section and assembles the
// script map. An empty summary falls back to the configured summary hint.
func (f *PodcastFlow) Run(ctx context.Context, summary string) map[string]string {
	if strings.TrimSpace(summary) == "" {
		summary = f.cfg.SummaryHint
	}

	vars := map[string]any{
		"summary_hint": summary,
		"num_speakers": f.cfg.NumSpeakers,
	}

	script := map[string]string{}
	for _, section := range podcastSections {
		if !f.HasBlock(section.block) || !f.HasTemplate(section.template) {
			continue
		}

		rendered, err := f.RenderPrompt(section.template, vars)
		if err != nil {
			slog.Error("Failed to render podcast prompt",
				"flow", f.Name(), "section", section.name, "error", err)
			continue
		}

		block, err := f.Block(section.block)
		if err != nil {
			continue
		}
		text, err := block.GenerateText(ctx, rendered)
		if err != nil {
			slog.Warn("Podcast section generation failed",
				"flow", f.Name(), "section", section.name, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			script[section.name] = text
		}
	}
	return script
}

// The podcast flow type registers itself: it is the documented example of
// extending the flow registry from a plugin package.
func init() {
	config.RegisterFlowConfig("podcast", func() config.FlowConfig { return &config.PodcastFlowConfig{} })
}
