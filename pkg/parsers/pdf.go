package parsers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/models"
)

// PDFParser extracts plain text from stored PDF files.
type PDFParser struct {
	cfg     *config.PDFParserConfig
	locator RawFileLocator
}

// NewPDFParser builds the parser with config defaults applied. The locator
// may be nil when callers only use ParseFile with explicit paths.
func NewPDFParser(cfg *config.PDFParserConfig, locator RawFileLocator) (*PDFParser, error) {
	if cfg == nil {
		cfg = &config.PDFParserConfig{}
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PDFParser{cfg: cfg, locator: locator}, nil
}

func (p *PDFParser) Name() string {
	return "pdf"
}

// Parse extracts the text of the item's stored raw PDF into its content.
func (p *PDFParser) Parse(ctx context.Context, item models.Knowledge) error {
	if p.locator == nil {
		return fmt.Errorf("pdf parser: no raw file locator configured")
	}
	path, ok := p.locator.GetRawFile(item.GetPrimaryID())
	if !ok {
		return fmt.Errorf("pdf parser: no raw file stored for %q", item.GetPrimaryID())
	}
	return p.ParseFile(ctx, item, path)
}

// ParseFile extracts the text of an explicit PDF path into the item.
func (p *PDFParser) ParseFile(ctx context.Context, item models.Knowledge, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("pdf parser: %w", err)
	}
	maxBytes := int64(p.cfg.MaxFileSizeMB) << 20
	if info.Size() > maxBytes {
		return fmt.Errorf("pdf parser: file %s is %d bytes, exceeds limit of %d MB", path, info.Size(), p.cfg.MaxFileSizeMB)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pdf parser: %w", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return fmt.Errorf("pdf parser: failed to read %s: %w", path, err)
	}

	text, pages := extractText(ctx, reader)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("pdf parser: no text extracted from %s", path)
	}

	base := item.Base()
	base.Content = text
	base.SetMeta("parser", p.Name())
	base.SetMeta("pages", pages)

	slog.Info("Parsed PDF", "id", item.GetPrimaryID(), "pages", pages, "chars", len(text))
	return nil
}

// extractText walks the document page by page. A page that fails to
// decode is skipped so one bad page does not lose the document.
func extractText(ctx context.Context, reader *pdf.Reader) (string, int) {
	totalPages := reader.NumPage()

	var parts []string
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if ctx.Err() != nil {
			break
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("PDF page extraction failed", "page", pageNum, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), totalPages
}
