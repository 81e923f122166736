// Package retrieve fetches scored candidates from the hierarchical and
// summary collections, reranks them on explicit time and section
// references, and merges structurally adjacent chunks.
package retrieve

import (
	"maps"
	"strings"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// Metadata keys read by retrieval. They match the keys written by the
// indexers.
const (
	keyChunkID       = "chunk_id"
	keyLevel         = "level"
	keySectionID     = "section_id"
	keySection       = "section"
	keyChunkText     = "chunk_text"
	keyPositionIndex = "position_index"
)

// unknownSection groups candidates that carry no section_id.
const unknownSection = "unknown"

// Candidate is one retrieval result. Score is the similarity from the
// store (1 - distance), or the average of its constituents once merged.
// Rerank passes never modify Score; they record their boosts separately.
// Each pass orders by Score plus its own boost.
type Candidate struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`

	TimeMatches  int     `json:"time_match_count,omitempty"`
	TimeBoost    float64 `json:"time_boost,omitempty"`
	SectionMatch bool    `json:"section_match,omitempty"`
	SectionBoost float64 `json:"section_boost,omitempty"`

	Merged      bool     `json:"merged"`
	MergedCount int      `json:"merged_count,omitempty"`
	MergedIDs   []string `json:"merged_ids,omitempty"`
}

// RankScore is Score plus every boost the candidate earned. It explains a
// result; no pass orders by the sum.
func (c Candidate) RankScore() float64 {
	return c.Score + c.TimeBoost + c.SectionBoost
}

// SectionID returns the candidate's section_id metadata, or "".
func (c Candidate) SectionID() string {
	return store.StringValue(c.Metadata, keySectionID)
}

// Position returns position_index metadata, 0 when missing.
func (c Candidate) Position() int {
	n, _ := store.IntValue(c.Metadata, keyPositionIndex)
	return n
}

func (c Candidate) clone() Candidate {
	c.Metadata = maps.Clone(c.Metadata)
	if c.MergedIDs != nil {
		c.MergedIDs = append([]string(nil), c.MergedIDs...)
	}
	return c
}

// fromMatch converts a store match to a candidate.
func fromMatch(m store.Match) Candidate {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Candidate{
		ID:       m.ID,
		Text:     m.Document,
		Metadata: meta,
		Score:    1 - float64(m.Distance),
	}
}

// validateQuery rejects empty and whitespace-only queries.
func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ragerrors.RetrievalError("invalid query: query must be a non-empty string",
			ragerrors.New(ragerrors.ErrCodeQueryEmpty, "empty query", nil))
	}
	return nil
}

// Info describes a retriever for diagnostics and the stats command.
type Info struct {
	RetrieverType  string   `json:"retriever_type"`
	IndexType      string   `json:"index_type"`
	CollectionName string   `json:"collection_name"`
	EmbeddingModel string   `json:"embedding_model"`
	AutoMerge      bool     `json:"auto_merge_enabled"`
	Capabilities   []string `json:"capabilities"`
}
