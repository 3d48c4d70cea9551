package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/quantmind/quantmind/pkg/config"
	"github.com/quantmind/quantmind/pkg/httpclient"
	"github.com/quantmind/quantmind/pkg/models"
)

const (
	rawFilesDir   = "raw_files"
	knowledgesDir = "knowledges"
	embeddingsDir = "embeddings"
	extraDir      = "extra"
)

var _ Storage = (*LocalStorage)(nil)

// LocalStorage is the indexed local file store. Single-process use is
// assumed; within the process every index mutation is serialized.
type LocalStorage struct {
	root       string
	downloader *httpclient.Client

	rawFiles   *index
	knowledges *index
	embeddings *index
}

// NewLocalStorage opens (or creates) the store rooted at the configured
// directory. Each index is loaded from disk; a missing or corrupt index
// file is rebuilt by scanning its namespace.
func NewLocalStorage(cfg *config.LocalStorageConfig) (*LocalStorage, error) {
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root, err := cfg.AbsStorageDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage_dir: %w", err)
	}
	for _, dir := range []string{rawFilesDir, knowledgesDir, embeddingsDir, extraDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	s := &LocalStorage{
		root: root,
		// Raw downloads get a single attempt; retrying is the caller's call.
		downloader: httpclient.New(
			httpclient.WithMaxRetries(0),
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.DownloadTimeout) * time.Second,
			}),
		),
		rawFiles:   newIndex(root, "raw_files_index"),
		knowledges: newIndex(root, "knowledges_index"),
		embeddings: newIndex(root, "embeddings_index"),
	}

	for _, ix := range []*index{s.rawFiles, s.knowledges, s.embeddings} {
		if err := ix.load(); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Index unreadable, rebuilding by scan", "index", ix.name, "error", err)
			}
			if err := s.rebuildIndex(ix); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// StorageDir returns the absolute storage root.
func (s *LocalStorage) StorageDir() string {
	return s.root
}

func normalizeExtension(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

func (s *LocalStorage) StoreRawFile(fileID string, input RawFileInput) (string, error) {
	hasPath := input.FilePath != ""
	hasContent := input.Content != nil
	if hasPath == hasContent {
		return "", fmt.Errorf("%w: exactly one of file path and content is required", ErrInvalidInput)
	}

	content := input.Content
	ext := normalizeExtension(input.Extension)
	if hasPath {
		data, err := os.ReadFile(input.FilePath)
		if err != nil {
			return "", fmt.Errorf("failed to read source file: %w", err)
		}
		content = data
		if ext == "" {
			ext = filepath.Ext(input.FilePath)
		}
	}

	name := fileID + ext
	dest := filepath.Join(s.root, rawFilesDir, name)
	if err := atomic.WriteFile(dest, bytes.NewReader(content)); err != nil {
		return "", fmt.Errorf("failed to store raw file %s: %w", fileID, err)
	}

	entry := indexEntry{Path: filepath.Join(rawFilesDir, name), Extension: ext}
	if err := s.rawFiles.put(fileID, entry); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *LocalStorage) GetRawFile(fileID string) (string, bool) {
	if entry, ok := s.rawFiles.get(fileID); ok {
		path := filepath.Join(s.root, entry.Path)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		slog.Debug("Pruning stale raw file index entry", "file_id", fileID)
		s.rawFiles.prune(fileID)
		return "", false
	}

	// Not indexed: scan for an out-of-band file and backfill.
	name, ext, found := s.scanRawFiles(fileID)
	if !found {
		return "", false
	}
	entry := indexEntry{Path: filepath.Join(rawFilesDir, name), Extension: ext}
	if err := s.rawFiles.put(fileID, entry); err != nil {
		slog.Warn("Failed to backfill raw file index", "file_id", fileID, "error", err)
	}
	return filepath.Join(s.root, rawFilesDir, name), true
}

func (s *LocalStorage) scanRawFiles(fileID string) (string, string, bool) {
	dirEntries, err := os.ReadDir(filepath.Join(s.root, rawFilesDir))
	if err != nil {
		return "", "", false
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		stem, ext := splitStem(de.Name())
		if stem == fileID {
			return de.Name(), ext, true
		}
	}
	return "", "", false
}

func (s *LocalStorage) DeleteRawFile(fileID string) bool {
	entry, ok := s.rawFiles.get(fileID)
	if !ok {
		return false
	}
	if err := os.Remove(filepath.Join(s.root, entry.Path)); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove raw file", "file_id", fileID, "error", err)
		return false
	}
	if err := s.rawFiles.remove(fileID); err != nil {
		slog.Warn("Failed to update raw file index", "file_id", fileID, "error", err)
	}
	return true
}

func (s *LocalStorage) StoreKnowledge(item models.Knowledge) (string, error) {
	id := item.GetPrimaryID()
	data, err := models.Encode(item)
	if err != nil {
		return "", err
	}

	name := id + ".json"
	if err := atomic.WriteFile(filepath.Join(s.root, knowledgesDir, name), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store knowledge %s: %w", id, err)
	}
	if err := s.knowledges.put(id, indexEntry{Path: filepath.Join(knowledgesDir, name)}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *LocalStorage) GetKnowledge(id string) (models.Knowledge, bool) {
	path, ok := s.lookupJSON(s.knowledges, knowledgesDir, id)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read knowledge file", "id", id, "error", err)
		return nil, false
	}
	item, err := models.Decode(data)
	if err != nil {
		slog.Warn("Failed to decode knowledge file", "id", id, "error", err)
		return nil, false
	}
	return item, true
}

// lookupJSON resolves a JSON-namespace id through its index: prune on a
// stale entry, backfill on an unindexed file found on disk.
func (s *LocalStorage) lookupJSON(ix *index, dir, id string) (string, bool) {
	name := id + ".json"
	if entry, ok := ix.get(id); ok {
		path := filepath.Join(s.root, entry.Path)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		slog.Debug("Pruning stale index entry", "index", ix.name, "id", id)
		ix.prune(id)
		return "", false
	}

	path := filepath.Join(s.root, dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	if err := ix.put(id, indexEntry{Path: filepath.Join(dir, name)}); err != nil {
		slog.Warn("Failed to backfill index", "index", ix.name, "id", id, "error", err)
	}
	return path, true
}

func (s *LocalStorage) DeleteKnowledge(id string) bool {
	return s.deleteJSON(s.knowledges, id)
}

func (s *LocalStorage) deleteJSON(ix *index, id string) bool {
	entry, ok := ix.get(id)
	if !ok {
		return false
	}
	if err := os.Remove(filepath.Join(s.root, entry.Path)); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove file", "index", ix.name, "id", id, "error", err)
		return false
	}
	if err := ix.remove(id); err != nil {
		slog.Warn("Failed to update index", "index", ix.name, "id", id, "error", err)
	}
	return true
}

func (s *LocalStorage) KnowledgeExists(id string) bool {
	_, ok := s.lookupJSON(s.knowledges, knowledgesDir, id)
	return ok
}

func (s *LocalStorage) AllKnowledges() iter.Seq[models.Knowledge] {
	return func(yield func(models.Knowledge) bool) {
		for _, id := range s.knowledges.keys() {
			item, ok := s.GetKnowledge(id)
			if !ok {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

func (s *LocalStorage) StoreEmbedding(id string, vector []float64, model string) error {
	record := models.Embedding{
		KnowledgeID: id,
		Embedding:   vector,
		Model:       model,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode embedding %s: %w", id, err)
	}

	name := id + ".json"
	if err := atomic.WriteFile(filepath.Join(s.root, embeddingsDir, name), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store embedding %s: %w", id, err)
	}
	return s.embeddings.put(id, indexEntry{Path: filepath.Join(embeddingsDir, name)})
}

func (s *LocalStorage) GetEmbedding(id string) (*models.Embedding, bool) {
	path, ok := s.lookupJSON(s.embeddings, embeddingsDir, id)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read embedding file", "id", id, "error", err)
		return nil, false
	}
	var record models.Embedding
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn("Failed to decode embedding file", "id", id, "error", err)
		return nil, false
	}
	return &record, true
}

func (s *LocalStorage) DeleteEmbedding(id string) bool {
	return s.deleteJSON(s.embeddings, id)
}

func (s *LocalStorage) extraPath(key string) string {
	return filepath.Join(s.root, extraDir, key+".json")
}

func (s *LocalStorage) StoreExtra(key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode extra %s: %w", key, err)
	}
	if err := atomic.WriteFile(s.extraPath(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store extra %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) GetExtra(key string) (any, bool) {
	data, err := os.ReadFile(s.extraPath(key))
	if err != nil {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		slog.Warn("Failed to decode extra", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (s *LocalStorage) DeleteExtra(key string) bool {
	if err := os.Remove(s.extraPath(key)); err != nil {
		return false
	}
	return true
}

func (s *LocalStorage) ProcessKnowledge(ctx context.Context, item models.Knowledge) (string, error) {
	id, err := s.StoreKnowledge(item)
	if err != nil {
		return "", err
	}

	if paper, ok := item.(*models.Paper); ok && paper.PDFURL != "" {
		if _, exists := s.GetRawFile(id); !exists {
			s.downloadPDF(ctx, id, paper.PDFURL)
		}
	}
	return id, nil
}

// downloadPDF makes one GET attempt; failure is logged and never blocks
// the already-written knowledge record.
func (s *LocalStorage) downloadPDF(ctx context.Context, id, pdfURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		slog.Warn("Invalid PDF URL", "id", id, "url", pdfURL, "error", err)
		return
	}

	resp, err := s.downloader.Do(req)
	if err != nil {
		slog.Warn("PDF download failed", "id", id, "url", pdfURL, "error", err)
		if resp != nil {
			resp.Body.Close()
		}
		return
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("PDF download read failed", "id", id, "url", pdfURL, "error", err)
		return
	}
	if _, err := s.StoreRawFile(id, RawFileInput{Content: content, Extension: ".pdf"}); err != nil {
		slog.Warn("Failed to store downloaded PDF", "id", id, "error", err)
		return
	}
	slog.Info("Downloaded PDF", "id", id, "bytes", len(content))
}

func (s *LocalStorage) ProcessKnowledges(ctx context.Context, items []models.Knowledge) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, err := s.ProcessKnowledge(ctx, item)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// rebuildIndex reconstructs one index from its namespace directory.
func (s *LocalStorage) rebuildIndex(ix *index) error {
	var dir string
	withExtension := false
	switch ix {
	case s.rawFiles:
		dir = rawFilesDir
		withExtension = true
	case s.knowledges:
		dir = knowledgesDir
	case s.embeddings:
		dir = embeddingsDir
	}

	entries := map[string]indexEntry{}
	dirEntries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		stem, ext := splitStem(de.Name())
		if !withExtension && ext != ".json" {
			continue
		}
		entry := indexEntry{Path: filepath.Join(dir, de.Name())}
		if withExtension {
			entry.Extension = ext
		}
		entries[stem] = entry
	}
	return ix.replace(entries)
}

func (s *LocalStorage) RebuildAllIndexes() error {
	for _, ix := range []*index{s.rawFiles, s.knowledges, s.embeddings} {
		if err := s.rebuildIndex(ix); err != nil {
			return err
		}
	}
	slog.Info("Rebuilt storage indexes",
		"raw_files", s.rawFiles.count(),
		"knowledges", s.knowledges.count(),
		"embeddings", s.embeddings.count())
	return nil
}

func (s *LocalStorage) GetStorageInfo() (*Info, error) {
	info := &Info{
		StorageDir:     s.root,
		RawFileCount:   s.rawFiles.count(),
		KnowledgeCount: s.knowledges.count(),
		EmbeddingCount: s.embeddings.count(),
	}

	extraEntries, err := os.ReadDir(filepath.Join(s.root, extraDir))
	if err != nil {
		return nil, fmt.Errorf("failed to scan extras: %w", err)
	}
	for _, de := range extraEntries {
		if de.IsDir() || strings.HasSuffix(de.Name(), "_index.json") {
			continue
		}
		info.ExtraCount++
	}

	err = filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		info.TotalSizeBytes += fi.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to measure storage size: %w", err)
	}
	return info, nil
}
