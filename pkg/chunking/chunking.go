// Package chunking splits long content into LLM-sized pieces.
//
// Custom chunkers are registered by name so that flow configurations stay
// serializable; a config references a chunker through its registered name
// instead of carrying a function value.
package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/quantmind/quantmind/pkg/registry"
)

// Func splits text into ordered chunks.
type Func func(text string) []string

var chunkers = registry.NewBaseRegistry[Func]()

// Register adds a named chunker. Registering an existing name fails.
func Register(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("chunker %q: function cannot be nil", name)
	}
	return chunkers.Register(name, fn)
}

// Lookup resolves a registered chunker by name.
func Lookup(name string) (Func, error) {
	fn, ok := chunkers.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown chunker %q (registered: %v)", name, chunkers.Names())
	}
	return fn, nil
}

// BySize walks the text with stride size. Every non-final chunk is trimmed
// back to its last whitespace boundary when that boundary lies past the
// midpoint of the chunk, so words are not cut in half. Each piece is
// stripped of surrounding whitespace; empty pieces are dropped.
func BySize(text string, size int) []string {
	if size <= 0 {
		if piece := strings.TrimSpace(text); piece != "" {
			return []string{piece}
		}
		return nil
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else if cut := lastWhitespace(text[start:end]); cut > size/2 {
			end = start + cut
		}

		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			chunks = append(chunks, piece)
		}
		start = end
	}
	return chunks
}

// lastWhitespace returns the byte index of the last whitespace rune in s,
// or -1 when s contains none.
func lastWhitespace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if unicode.IsSpace(rune(s[i])) {
			return i
		}
	}
	return -1
}
