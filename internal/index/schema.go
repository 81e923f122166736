// Package index builds and manages the hierarchical chunk index and the
// MapReduce summary index over claim documents.
package index

import (
	"fmt"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// Collection names.
const (
	CollectionHierarchical = "hierarchical_index"
	CollectionSummary      = "summary_index"
)

// Metadata keys shared by both collections.
const (
	KeyChunkID       = "chunk_id"
	KeyParentID      = "parent_id"
	KeyLevel         = "level"
	KeySection       = "section"
	KeyTimestamp     = "timestamp"
	KeyChunkText     = "chunk_text"
	KeyPositionIndex = "position_index"
	KeyDocumentID    = "document_id"
	KeySectionID     = "section_id"
	KeyClaimID       = "claim_id"
	KeySummaryLevel  = "summary_level"
	KeyOriginalChunk = "original_chunk_id"
)

// SummaryLevel is the granularity a summary was produced at.
type SummaryLevel string

const (
	SummaryChunk    SummaryLevel = "chunk"
	SummarySection  SummaryLevel = "section"
	SummaryDocument SummaryLevel = "document"
)

func (l SummaryLevel) Valid() bool {
	switch l {
	case SummaryChunk, SummarySection, SummaryDocument:
		return true
	}
	return false
}

// HierarchicalMetadata flattens a chunk into collection metadata. Optional
// keys are set only when the chunk carries a value.
func HierarchicalMetadata(c *chunk.Chunk) map[string]any {
	meta := map[string]any{
		KeyChunkID:       c.ID,
		KeyLevel:         string(c.Level),
		KeyDocumentID:    c.DocumentID,
		KeyChunkText:     c.Text,
		KeyPositionIndex: c.Index,
	}
	if c.ParentID != "" {
		meta[KeyParentID] = c.ParentID
	}
	if c.SectionID != "" {
		meta[KeySectionID] = c.SectionID
		meta[KeySection] = c.SectionID
	}
	if c.ClaimID != "" {
		meta[KeyClaimID] = c.ClaimID
	}
	if ts, ok := c.Metadata[KeyTimestamp].(string); ok && ts != "" {
		meta[KeyTimestamp] = ts
	}
	return meta
}

// ValidateHierarchicalMetadata requires chunk_id, level and document_id and
// a known level.
func ValidateHierarchicalMetadata(meta map[string]any) error {
	if err := requireKeys(meta, KeyChunkID, KeyLevel, KeyDocumentID); err != nil {
		return err
	}
	level, _ := meta[KeyLevel].(string)
	if !chunk.Level(level).Valid() {
		return invalidMetadata(fmt.Sprintf("invalid level %q", level))
	}
	return nil
}

// Summary is one MapReduce output before embedding.
type Summary struct {
	ID              string
	Level           SummaryLevel
	Text            string
	SectionID       string
	DocumentID      string
	ClaimID         string
	OriginalChunkID string
}

// SummaryMetadata flattens a summary into collection metadata.
func SummaryMetadata(s Summary) map[string]any {
	meta := map[string]any{
		KeyChunkID:      s.ID,
		KeySummaryLevel: string(s.Level),
		KeyChunkText:    s.Text,
	}
	if s.SectionID != "" {
		meta[KeySectionID] = s.SectionID
	}
	if s.DocumentID != "" {
		meta[KeyDocumentID] = s.DocumentID
	}
	if s.ClaimID != "" {
		meta[KeyClaimID] = s.ClaimID
	}
	if s.OriginalChunkID != "" {
		meta[KeyOriginalChunk] = s.OriginalChunkID
	}
	return meta
}

// ValidateSummaryMetadata requires chunk_id and a known summary_level.
func ValidateSummaryMetadata(meta map[string]any) error {
	if err := requireKeys(meta, KeyChunkID, KeySummaryLevel); err != nil {
		return err
	}
	level, _ := meta[KeySummaryLevel].(string)
	if !SummaryLevel(level).Valid() {
		return invalidMetadata(fmt.Sprintf("invalid summary_level %q", level))
	}
	return nil
}

func requireKeys(meta map[string]any, keys ...string) error {
	for _, k := range keys {
		if _, ok := meta[k]; !ok {
			return invalidMetadata("missing required key " + k)
		}
	}
	return nil
}

func invalidMetadata(msg string) error {
	return ragerrors.New(ragerrors.ErrCodeInvalidMetadata, msg, nil)
}
