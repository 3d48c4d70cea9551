// Package storage implements the indexed content-addressable local store:
// four parallel namespaces (raw files, knowledge JSON, embeddings, extras)
// with persistent side indexes that survive restarts, tolerate out-of-band
// filesystem mutations and rebuild by scan.
package storage

import (
	"context"
	"errors"
	"iter"

	"github.com/quantmind/quantmind/pkg/models"
)

// ErrInvalidInput reports conflicting or missing raw file inputs.
var ErrInvalidInput = errors.New("invalid input")

// RawFileInput carries the payload for StoreRawFile. Exactly one of
// FilePath and Content must be set.
type RawFileInput struct {
	// FilePath points to an existing file to copy in.
	FilePath string

	// Content is the raw bytes to store.
	Content []byte

	// Extension overrides the stored extension, with or without the
	// leading dot. Defaults to the FilePath extension when copying.
	Extension string
}

// Info summarizes the store for diagnostics.
type Info struct {
	StorageDir     string `json:"storage_dir"`
	RawFileCount   int    `json:"raw_file_count"`
	KnowledgeCount int    `json:"knowledge_count"`
	EmbeddingCount int    `json:"embedding_count"`
	ExtraCount     int    `json:"extra_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
}

// Storage is the durable substrate of the pipeline. Get operations report
// absence with a false second return; only I/O and encoding problems
// surface as errors from the write paths.
type Storage interface {
	// StoreRawFile writes opaque bytes under a file ID and returns the
	// absolute path of the stored file.
	StoreRawFile(fileID string, input RawFileInput) (string, error)

	// GetRawFile returns the absolute path of the stored file. A stale
	// index entry is pruned; an unindexed file found by scan is backfilled.
	GetRawFile(fileID string) (string, bool)

	DeleteRawFile(fileID string) bool

	// StoreKnowledge persists the item under its primary ID, overwriting
	// any previous version, and returns the ID.
	StoreKnowledge(item models.Knowledge) (string, error)

	GetKnowledge(id string) (models.Knowledge, bool)

	DeleteKnowledge(id string) bool

	KnowledgeExists(id string) bool

	// AllKnowledges lazily yields every indexed knowledge item. The index
	// keys are snapshotted up front, so items stored or deleted during
	// iteration do not affect the sequence.
	AllKnowledges() iter.Seq[models.Knowledge]

	StoreEmbedding(id string, vector []float64, model string) error

	GetEmbedding(id string) (*models.Embedding, bool)

	DeleteEmbedding(id string) bool

	// StoreExtra persists an arbitrary JSON-serializable payload.
	StoreExtra(key string, value any) error

	GetExtra(key string) (any, bool)

	DeleteExtra(key string) bool

	// ProcessKnowledge stores the item, then runs subtype handling: a
	// Paper with a pdf_url and no stored raw file gets one download
	// attempt whose failure never blocks the knowledge write.
	ProcessKnowledge(ctx context.Context, item models.Knowledge) (string, error)

	// ProcessKnowledges is the ordered fold over ProcessKnowledge.
	ProcessKnowledges(ctx context.Context, items []models.Knowledge) ([]string, error)

	RebuildAllIndexes() error

	GetStorageInfo() (*Info, error)
}
