// Package parsers enriches knowledge items with content extracted from
// their raw files. The PDF parser reads stored PDFs and fills the item's
// content body; enrichment failures are reported, not swallowed.
package parsers

import (
	"context"
	"fmt"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/models"
)

// Parser extracts content into a knowledge item.
type Parser interface {
	// Parse locates the item's raw file, extracts its text and mutates the
	// item's content and metadata.
	Parse(ctx context.Context, item models.Knowledge) error

	Name() string
}

// RawFileLocator resolves a knowledge id to its stored raw file path.
// storage.LocalStorage satisfies this.
type RawFileLocator interface {
	GetRawFile(knowledgeID string) (string, bool)
}

// NewParser builds a parser from its component config.
func NewParser(cfg config.ComponentConfig, locator RawFileLocator) (Parser, error) {
	switch c := cfg.(type) {
	case *config.PDFParserConfig:
		return NewPDFParser(c, locator)
	case *config.LlamaParserConfig:
		return nil, fmt.Errorf("parser type %q is configuration-only: the LlamaParse backend is not implemented, use the 'pdf' parser", c.ComponentType())
	default:
		return nil, fmt.Errorf("unsupported parser config %T", cfg)
	}
}
