// Package flow implements the flow runtime: flows own named LLM blocks
// and compiled prompt templates declared by their configuration, and
// orchestrate them into multi-step pipelines.
package flow

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/llm"
	"github.com/quantmind/quantmind/pkg/prompt"
)

// ErrTemplateNotFound reports a render against an undeclared template.
var ErrTemplateNotFound = errors.New("template not found")

// ErrBlockNotFound reports access to an undeclared or failed LLM block.
var ErrBlockNotFound = errors.New("llm block not found")

// Base carries the shared flow resources: the name→block and
// name→template maps built from a flow config.
type Base struct {
	name      string
	blocks    map[string]*llm.Block
	templates map[string]*prompt.Template
}

// Option adjusts a flow at construction time.
type Option func(*Base)

// WithBlock replaces a named LLM block, bypassing provider construction.
// Used for testing and for callers that share blocks across flows.
func WithBlock(name string, block *llm.Block) Option {
	return func(b *Base) {
		b.blocks[name] = block
	}
}

// NewBase builds the shared resources from a flow config. A block whose
// provider cannot be constructed is stored as nil and logged; a template
// that fails to compile fails construction.
func NewBase(cfg config.FlowConfig, opts ...Option) (*Base, error) {
	base := cfg.Base()
	b := &Base{
		name:      base.Name,
		blocks:    make(map[string]*llm.Block, len(base.LLMBlocks)),
		templates: make(map[string]*prompt.Template, len(base.PromptTemplates)),
	}

	for name, blockCfg := range base.LLMBlocks {
		block, err := llm.NewBlock(blockCfg)
		if err != nil {
			slog.Error("Failed to initialize LLM block",
				"flow", base.Name, "block", name, "error", err)
			b.blocks[name] = nil
			continue
		}
		b.blocks[name] = block
	}

	for name, source := range base.PromptTemplates {
		tmpl, err := prompt.New(name, source)
		if err != nil {
			return nil, fmt.Errorf("flow %q: template %q: %w", base.Name, name, err)
		}
		b.templates[name] = tmpl
	}

	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the flow name.
func (b *Base) Name() string {
	return b.name
}

// RenderPrompt renders a declared template with the given variables.
func (b *Base) RenderPrompt(name string, vars map[string]any) (string, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return tmpl.Render(vars)
}

// Block returns a declared LLM block by name. A block that failed to
// initialize reports the same error as a missing one.
func (b *Base) Block(name string) (*llm.Block, error) {
	block, ok := b.blocks[name]
	if !ok || block == nil {
		return nil, fmt.Errorf("%w: %q", ErrBlockNotFound, name)
	}
	return block, nil
}

// HasTemplate reports whether a template is declared.
func (b *Base) HasTemplate(name string) bool {
	_, ok := b.templates[name]
	return ok
}

// HasBlock reports whether a usable block is present.
func (b *Base) HasBlock(name string) bool {
	block, ok := b.blocks[name]
	return ok && block != nil
}

// Close releases every block.
func (b *Base) Close() error {
	var firstErr error
	for name, block := range b.blocks {
		if block == nil {
			continue
		}
		if err := block.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("block %q: %w", name, err)
		}
	}
	return firstErr
}
