// Package chunk splits section text into overlapping chunks at three
// granularities and assembles them into a per-document hierarchy.
package chunk

import (
	"fmt"
	"maps"
)

// Level is a chunk granularity.
type Level string

const (
	Small  Level = "small"
	Medium Level = "medium"
	Large  Level = "large"
)

// Levels lists every level from finest to broadest.
var Levels = []Level{Small, Medium, Large}

func (l Level) Valid() bool {
	switch l {
	case Small, Medium, Large:
		return true
	}
	return false
}

func (l Level) String() string { return string(l) }

// ParseLevel converts a string such as "medium" to a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("invalid chunk level %q (want small, medium or large)", s)
	}
	return l, nil
}

// Budget is the token range for a level.
type Budget struct {
	Min int
	Max int
}

// Target is the running count at which a chunk is closed.
func (b Budget) Target() int {
	return (b.Min + b.Max) / 2
}

// Default budgets, in tokens.
var (
	SmallBudget  = Budget{Min: 100, Max: 200}
	MediumBudget = Budget{Min: 500, Max: 800}
	LargeBudget  = Budget{Min: 1500, Max: 2000}
)

// DefaultOverlapRatio is the share of a closed chunk's tokens that seeds
// the next chunk.
const DefaultOverlapRatio = 0.2

// Chunk is one indexed text unit. Chunks are created once during assembly
// and never mutated afterwards.
type Chunk struct {
	// ID is "{section_id}_{level}_{index}".
	ID   string `json:"chunk_id"`
	Text string `json:"text"`
	// Tokens is recounted from Text.
	Tokens int   `json:"tokens"`
	Index  int   `json:"chunk_index"`
	Level  Level `json:"level"`

	// ParentID is the owning section; chunks never cross sections.
	ParentID   string `json:"parent_id"`
	SectionID  string `json:"section_id"`
	DocumentID string `json:"document_id"`
	ClaimID    string `json:"claim_id"`

	Metadata map[string]any `json:"metadata"`
}

// Clone returns a deep copy of c's metadata map with the other fields
// copied by value.
func (c *Chunk) Clone() *Chunk {
	cp := *c
	cp.Metadata = maps.Clone(c.Metadata)
	return &cp
}
