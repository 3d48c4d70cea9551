package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
)

// indexEntry locates one stored object, with the path relative to the
// storage root so the store stays relocatable.
type indexEntry struct {
	Path      string `json:"path"`
	Extension string `json:"extension,omitempty"`
}

// index is one persistent side index. The mutex serializes every
// read-modify-write so memory and disk never diverge within a process.
type index struct {
	mu      sync.Mutex
	name    string
	file    string
	entries map[string]indexEntry
}

func newIndex(root, name string) *index {
	return &index{
		name:    name,
		file:    filepath.Join(root, extraDir, name+".json"),
		entries: map[string]indexEntry{},
	}
}

// load reads the index from disk. A missing or unreadable file reports an
// error so the caller can rebuild by scan.
func (ix *index) load() error {
	data, err := os.ReadFile(ix.file)
	if err != nil {
		return err
	}
	entries := map[string]indexEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("index %s is corrupt: %w", ix.name, err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
	return nil
}

// save persists the index atomically. Callers must hold ix.mu.
func (ix *index) save() error {
	data, err := json.MarshalIndent(ix.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index %s: %w", ix.name, err)
	}
	if err := atomic.WriteFile(ix.file, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write index %s: %w", ix.name, err)
	}
	return nil
}

// put records an entry write-through.
func (ix *index) put(id string, entry indexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[id] = entry
	return ix.save()
}

// get returns the entry for id.
func (ix *index) get(id string) (indexEntry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry, ok := ix.entries[id]
	return entry, ok
}

// remove deletes the entry write-through; missing ids are a no-op.
func (ix *index) remove(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[id]; !ok {
		return nil
	}
	delete(ix.entries, id)
	return ix.save()
}

// prune drops a stale entry, logging instead of failing on save errors:
// pruning is an opportunistic repair, not a write the caller requested.
func (ix *index) prune(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[id]; !ok {
		return
	}
	delete(ix.entries, id)
	if err := ix.save(); err != nil {
		slog.Warn("Failed to persist index after pruning stale entry",
			"index", ix.name, "id", id, "error", err)
	}
}

// keys snapshots the indexed ids.
func (ix *index) keys() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	keys := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		keys = append(keys, id)
	}
	return keys
}

func (ix *index) count() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}

// replace swaps in a freshly scanned entry set write-through.
func (ix *index) replace(entries map[string]indexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = entries
	return ix.save()
}

// stem is everything before the last dot of a file name; the suffix from
// that dot on is the extension.
func splitStem(name string) (string, string) {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i:]
	}
	return name, ""
}
