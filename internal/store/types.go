// Package store holds the vector collections the retrievers query, the
// SQLite record store that makes them durable, and a bleve keyword index.
package store

import (
	"context"
	"fmt"
	"strconv"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// Record is one stored item: an id, its text, flat metadata and the
// embedding of the text.
type Record struct {
	ID        string         `json:"id"`
	Document  string         `json:"document"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"-"`
}

// Where is a metadata equality filter. Every key must match.
type Where map[string]any

// Matches reports whether meta satisfies every clause. Numbers compare by
// value, so an int filter matches a float64 read back from JSON.
func (w Where) Matches(meta map[string]any) bool {
	for k, want := range w {
		got, ok := meta[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Merge returns a copy of w overlaid with other; other wins on conflicts.
func (w Where) Merge(other Where) Where {
	out := make(Where, len(w)+len(other))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// IntValue reads a numeric metadata value such as position_index. Strings
// holding integers are accepted.
func IntValue(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		f, ok := toFloat(v)
		return int(f), ok
	}
}

// StringValue reads a metadata value as a string; missing keys give "".
func StringValue(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// QueryRequest asks for the N records nearest to Embedding that satisfy
// Where.
type QueryRequest struct {
	Embedding []float32
	N         int
	Where     Where
}

// Match is a query hit. Distance is cosine distance, 1 - cosine similarity;
// matches are returned nearest first.
type Match struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float32
}

// Collection is a named set of records searchable by embedding similarity.
// Implementations are safe for concurrent reads.
type Collection interface {
	Name() string

	// Add inserts records, replacing any with the same id.
	Add(ctx context.Context, records []Record) error

	Query(ctx context.Context, req QueryRequest) ([]Match, error)

	// Get returns every record matching where, in insertion order.
	Get(ctx context.Context, where Where) ([]Record, error)

	Count() int
	Reset(ctx context.Context) error
	Close() error
}

// DimensionMismatchError reports a vector whose length differs from the
// collection's.
func DimensionMismatchError(collection string, expected, got int) error {
	return ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("collection %s holds %d-dimensional vectors, got %d", collection, expected, got), nil).
		WithSuggestion("Rebuild the index after changing the embedding model")
}
