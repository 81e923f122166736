// Package tokenize provides the token counters used to enforce chunk
// budgets. Encode/Decode must round-trip: decoding any suffix of an encoding
// yields the matching suffix of the text, which is how chunk overlap is
// carried between consecutive chunks.
package tokenize

import (
	"fmt"
	"strings"
)

// Tokenizer converts text to token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	// Count returns len(Encode(text)) without retaining state.
	Count(text string) int
	Name() string
}

const (
	NameWord       = "word"
	NameCL100kBase = "cl100k_base"
)

// New returns the tokenizer registered under name.
func New(name string) (Tokenizer, error) {
	switch strings.ToLower(name) {
	case "", NameWord:
		return NewWordTokenizer(), nil
	case NameCL100kBase:
		return NewTiktoken(NameCL100kBase)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}
