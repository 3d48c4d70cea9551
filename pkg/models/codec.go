package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Encode serializes a knowledge item to indented UTF-8 JSON.
func Encode(k Knowledge) ([]byte, error) {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode knowledge %s: %w", k.GetPrimaryID(), err)
	}
	return data, nil
}

// Decode deserializes a knowledge item, dispatching on the stored
// content_type. Unknown content types decode as generic items.
func Decode(data []byte) (Knowledge, error) {
	var probe struct {
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge: %w", err)
	}

	switch probe.ContentType {
	case ContentTypePaper:
		var p Paper
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode paper: %w", err)
		}
		return &p, nil
	case ContentTypeSearch:
		var s SearchContent
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode search content: %w", err)
		}
		return &s, nil
	default:
		var k KnowledgeItem
		if err := json.Unmarshal(data, &k); err != nil {
			return nil, fmt.Errorf("failed to decode knowledge item: %w", err)
		}
		if k.ContentType == "" {
			k.ContentType = ContentTypeGeneric
		}
		return &k, nil
	}
}

// Embedding is the vector record stored alongside a knowledge item.
// One embedding per knowledge ID; the last write wins.
type Embedding struct {
	KnowledgeID string    `json:"knowledge_id"`
	Embedding   []float64 `json:"embedding"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}
