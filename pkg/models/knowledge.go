// Package models defines the knowledge entities the pipeline stores and
// enriches: the generic KnowledgeItem plus its Paper and SearchContent
// subtypes, and the embedding record kept alongside them.
//
// Every entity round-trips through JSON; Decode dispatches on the stored
// content_type so a serialized subtype comes back as that subtype.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Content type discriminators stored in the content_type field.
const (
	ContentTypeGeneric = "generic"
	ContentTypePaper   = "paper"
	ContentTypeSearch  = "search"
)

// Knowledge is the atomic unit stored and enriched by the pipeline.
type Knowledge interface {
	// GetPrimaryID returns the stable identity of the item. Two items with
	// equal primary IDs are duplicates in storage.
	GetPrimaryID() string

	// GetContentType returns the subtype discriminator.
	GetContentType() string

	// Base exposes the shared fields for mutation by parsers and taggers.
	Base() *KnowledgeItem

	// EmbeddingText returns the text an embedding should be computed from.
	EmbeddingText() string
}

// KnowledgeItem is the generic knowledge entity and the embedded base of
// every subtype. MetaInfo is an open map for downstream enrichment;
// consumers parse their own subtrees.
type KnowledgeItem struct {
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract,omitempty"`
	Content     string         `json:"content,omitempty"`
	Authors     []string       `json:"authors,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Source      string         `json:"source"`
	ContentType string         `json:"content_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	MetaInfo    map[string]any `json:"meta_info,omitempty"`
}

// NewKnowledgeItem creates a generic knowledge item with timestamps set.
func NewKnowledgeItem(title, source string) *KnowledgeItem {
	now := time.Now().UTC()
	return &KnowledgeItem{
		Title:       title,
		Source:      source,
		ContentType: ContentTypeGeneric,
		CreatedAt:   now,
		UpdatedAt:   now,
		MetaInfo:    make(map[string]any),
	}
}

// GetPrimaryID returns a stable 16-hex-character hash of source and title.
// Subtypes override this with a natural identifier when one exists.
func (k *KnowledgeItem) GetPrimaryID() string {
	sum := sha256.Sum256([]byte(k.Source + ":" + k.Title))
	return hex.EncodeToString(sum[:8])
}

func (k *KnowledgeItem) GetContentType() string {
	if k.ContentType == "" {
		return ContentTypeGeneric
	}
	return k.ContentType
}

func (k *KnowledgeItem) Base() *KnowledgeItem {
	return k
}

// EmbeddingText returns title plus abstract, falling back to the content
// body when no abstract is set.
func (k *KnowledgeItem) EmbeddingText() string {
	if k.Abstract != "" {
		return strings.TrimSpace(k.Title + "\n" + k.Abstract)
	}
	return strings.TrimSpace(k.Title + "\n" + k.Content)
}

// AddTag adds a tag with set semantics: duplicates are ignored.
func (k *KnowledgeItem) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, existing := range k.Tags {
		if existing == tag {
			return
		}
	}
	k.Tags = append(k.Tags, tag)
	k.UpdatedAt = time.Now().UTC()
}

// HasTag reports whether the tag is present.
func (k *KnowledgeItem) HasTag(tag string) bool {
	for _, existing := range k.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// SetMeta records an enrichment value under the given key.
func (k *KnowledgeItem) SetMeta(key string, value any) {
	if k.MetaInfo == nil {
		k.MetaInfo = make(map[string]any)
	}
	k.MetaInfo[key] = value
	k.UpdatedAt = time.Now().UTC()
}

// Paper is a knowledge item originating from an academic paper.
type Paper struct {
	KnowledgeItem

	ArxivID         string     `json:"arxiv_id,omitempty"`
	PDFURL          string     `json:"pdf_url,omitempty"`
	PublishedDate   *time.Time `json:"published_date,omitempty"`
	PrimaryCategory string     `json:"primary_category,omitempty"`
}

// NewPaper creates a paper knowledge item.
func NewPaper(title, arxivID string) *Paper {
	now := time.Now().UTC()
	return &Paper{
		KnowledgeItem: KnowledgeItem{
			Title:       title,
			Source:      "arxiv",
			ContentType: ContentTypePaper,
			CreatedAt:   now,
			UpdatedAt:   now,
			MetaInfo:    make(map[string]any),
		},
		ArxivID: arxivID,
	}
}

// GetPrimaryID returns the arXiv ID when present, else the base fallback.
func (p *Paper) GetPrimaryID() string {
	if p.ArxivID != "" {
		return p.ArxivID
	}
	return p.KnowledgeItem.GetPrimaryID()
}

// FullText aliases the content body for backward compatibility.
func (p *Paper) FullText() string {
	return p.Content
}

// SetFullText sets the content body.
func (p *Paper) SetFullText(text string) {
	p.Content = text
	p.UpdatedAt = time.Now().UTC()
}

// SearchContent is a knowledge item originating from a web search result.
type SearchContent struct {
	KnowledgeItem

	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Query   string `json:"query,omitempty"`
}

// NewSearchContent creates a search knowledge item keyed by its URL.
func NewSearchContent(title, url string) *SearchContent {
	now := time.Now().UTC()
	return &SearchContent{
		KnowledgeItem: KnowledgeItem{
			Title:       title,
			Source:      "search",
			ContentType: ContentTypeSearch,
			CreatedAt:   now,
			UpdatedAt:   now,
			MetaInfo:    make(map[string]any),
		},
		URL: url,
	}
}

// GetPrimaryID returns the URL verbatim.
func (s *SearchContent) GetPrimaryID() string {
	return s.URL
}

// EmbeddingText returns title plus snippet.
func (s *SearchContent) EmbeddingText() string {
	return strings.TrimSpace(s.Title + " " + s.Snippet)
}
