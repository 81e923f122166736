package tokenize

import (
	"regexp"
	"sync"
)

// pieceRegex splits text into pieces that concatenate back to the input:
// optional leading whitespace followed by a word or a single punctuation
// rune, or a run of trailing whitespace.
var pieceRegex = regexp.MustCompile(`\s*(?:[\p{L}\p{N}]+|[^\s\p{L}\p{N}])|\s+`)

// WordTokenizer is a deterministic, lossless word-level tokenizer. Ids are
// assigned on first sight and stay stable for the life of the tokenizer.
// It needs no model files, which makes it the default for offline use and
// tests; counts run slightly below BPE tokenizers on English prose.
type WordTokenizer struct {
	mu     sync.RWMutex
	ids    map[string]int
	pieces []string
}

// NewWordTokenizer creates an empty tokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{ids: make(map[string]int)}
}

func (w *WordTokenizer) Name() string { return NameWord }

func (w *WordTokenizer) Encode(text string) []int {
	matches := pieceRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]int, len(matches))
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, piece := range matches {
		id, ok := w.ids[piece]
		if !ok {
			id = len(w.pieces)
			w.ids[piece] = id
			w.pieces = append(w.pieces, piece)
		}
		out[i] = id
	}
	return out
}

// Decode concatenates the pieces for ids. Unknown ids are skipped.
func (w *WordTokenizer) Decode(ids []int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if id >= 0 && id < len(w.pieces) {
			n += len(w.pieces[id])
		}
	}
	buf := make([]byte, 0, n)
	for _, id := range ids {
		if id >= 0 && id < len(w.pieces) {
			buf = append(buf, w.pieces[id]...)
		}
	}
	return string(buf)
}

func (w *WordTokenizer) Count(text string) int {
	return len(pieceRegex.FindAllStringIndex(text, -1))
}
