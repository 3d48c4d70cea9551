package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/httpclient"
	"github.com/quantmind/quantmind/pkg/models"
)

const arxivAPIURL = "http://export.arxiv.org/api/query"

// ArxivSource queries the arXiv Atom API and maps entries to papers.
type ArxivSource struct {
	cfg     *config.ArxivSourceConfig
	baseURL string
	client  *httpclient.Client
}

// ArxivOption adjusts the source at construction time.
type ArxivOption func(*ArxivSource)

// WithBaseURL points the source at a different API endpoint.
func WithBaseURL(baseURL string) ArxivOption {
	return func(s *ArxivSource) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient replaces the retrying HTTP client.
func WithHTTPClient(client *httpclient.Client) ArxivOption {
	return func(s *ArxivSource) {
		s.client = client
	}
}

// NewArxivSource builds the source with config defaults applied. The API
// rate-limits aggressively, so requests go through the smart-retry client.
func NewArxivSource(cfg *config.ArxivSourceConfig, opts ...ArxivOption) (*ArxivSource, error) {
	if cfg == nil {
		cfg = &config.ArxivSourceConfig{}
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &ArxivSource{
		cfg:     cfg,
		baseURL: arxivAPIURL,
		client:  httpclient.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ArxivSource) Name() string {
	return "arxiv"
}

// Fetch runs the configured query.
func (s *ArxivSource) Fetch(ctx context.Context) ([]models.Knowledge, error) {
	return s.Search(ctx, s.cfg.Query)
}

// Search queries the API and maps the Atom feed entries to papers.
func (s *ArxivSource) Search(ctx context.Context, query string) ([]models.Knowledge, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", s.cfg.MaxResults))
	params.Set("sortBy", s.cfg.SortBy)
	params.Set("sortOrder", s.cfg.SortOrder)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build arxiv request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	papers := make([]models.Knowledge, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entry.toPaper())
	}

	slog.Info("Fetched papers from arXiv", "query", query, "count", len(papers))
	return papers, nil
}

// Atom feed shapes for the arXiv API response.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Authors         []atomAuthor   `xml:"author"`
	Links           []atomLink     `xml:"link"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// toPaper maps an Atom entry onto a Paper. Entries without an id get a
// generated one so storage still has a primary key.
func (e *atomEntry) toPaper() *models.Paper {
	paper := models.NewPaper(normalizeWhitespace(e.Title), arxivIDFromEntryID(e.ID))
	paper.Abstract = normalizeWhitespace(e.Summary)
	paper.PrimaryCategory = e.PrimaryCategory.Term

	for _, author := range e.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}
	for _, category := range e.Categories {
		if category.Term != "" {
			paper.Categories = append(paper.Categories, category.Term)
		}
	}
	for _, link := range e.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paper.PDFURL = link.Href
			break
		}
	}
	if published, err := time.Parse(time.RFC3339, e.Published); err == nil {
		published = published.UTC()
		paper.PublishedDate = &published
	}
	return paper
}

// arxivIDFromEntryID extracts the short id from an entry id like
// "http://arxiv.org/abs/2401.00001v1".
func arxivIDFromEntryID(entryID string) string {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return uuid.NewString()
	}
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
