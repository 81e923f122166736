package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/claimrag/internal/document"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// Default identifiers used when neither the caller nor the document
// provides one.
const (
	DefaultDocumentID = "document_1"
	DefaultClaimID    = "claim_1"
)

// SectionSummary describes one retained section of a Hierarchy.
type SectionSummary struct {
	SectionID string `json:"section_id"`
	// SectionNumber counts retained sections from 1; empty sections are
	// not counted.
	SectionNumber int           `json:"section_number"`
	Header        string        `json:"header"`
	DocumentID    string        `json:"document_id"`
	ClaimID       string        `json:"claim_id"`
	ParentID      string        `json:"parent_id"`
	ChunkCounts   map[Level]int `json:"chunk_counts"`
}

// Hierarchy is the chunked form of one document.
type Hierarchy struct {
	ClaimID    string             `json:"claim_id"`
	DocumentID string             `json:"document_id"`
	Sections   []SectionSummary   `json:"sections"`
	Chunks     map[Level][]*Chunk `json:"chunks"`
	Metadata   document.Metadata  `json:"metadata"`
}

// Level returns the chunks of one level in document order.
func (h *Hierarchy) Level(level Level) []*Chunk {
	return h.Chunks[level]
}

// SectionChunks returns the chunks of level that belong to sectionID.
func (h *Hierarchy) SectionChunks(sectionID string, level Level) []*Chunk {
	var out []*Chunk
	for _, c := range h.Chunks[level] {
		if c.SectionID == sectionID {
			out = append(out, c)
		}
	}
	return out
}

// Header returns the header of a retained section.
func (h *Hierarchy) Header(sectionID string) string {
	for _, s := range h.Sections {
		if s.SectionID == sectionID {
			return s.Header
		}
	}
	return ""
}

// TotalChunks counts chunks across all levels.
func (h *Hierarchy) TotalChunks() int {
	n := 0
	for _, cs := range h.Chunks {
		n += len(cs)
	}
	return n
}

// Assembler runs every level's segmentation over each section of a
// document and stamps chunk identity.
type Assembler struct {
	seg *Segmenter
}

func NewAssembler(seg *Segmenter) *Assembler {
	return &Assembler{seg: seg}
}

// Assemble chunks doc at all three levels. Sections with no text after
// normalization are skipped. Any segmentation failure aborts the whole
// document with a chunking error; no partial hierarchy is returned.
//
// Empty documentID and claimID fall back to the document's own values,
// then to DefaultDocumentID and DefaultClaimID.
func (a *Assembler) Assemble(ctx context.Context, doc *document.Document, documentID, claimID string) (*Hierarchy, error) {
	if doc == nil {
		return nil, ragerrors.ChunkingError("document is nil", nil)
	}
	documentID = firstNonEmpty(documentID, doc.ID, DefaultDocumentID)
	claimID = firstNonEmpty(claimID, doc.ClaimID, DefaultClaimID)

	start := time.Now()
	h := &Hierarchy{
		ClaimID:    claimID,
		DocumentID: documentID,
		Chunks:     make(map[Level][]*Chunk, len(Levels)),
		Metadata:   doc.Metadata,
	}

	sections := doc.Sections
	if len(sections) == 0 {
		sections = []document.Section{{ID: "section_1", Text: doc.Text}}
	}

	number := 0
	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, ragerrors.ChunkingError("chunking cancelled", err)
		}

		sectionID := section.ID
		if sectionID == "" {
			sectionID = fmt.Sprintf("section_%d", i+1)
		}
		if strings.TrimSpace(section.Text) == "" {
			continue
		}
		number++

		meta := map[string]any{
			"section_id":     sectionID,
			"section_number": number,
			"header":         section.Header,
			"document_id":    documentID,
			"claim_id":       claimID,
			"parent_id":      documentID,
		}

		byLevel, err := a.segmentAll(ctx, section.Text, meta)
		if err != nil {
			return nil, ragerrors.ChunkingError(
				fmt.Sprintf("failed to chunk section %s of document %s", sectionID, documentID), err).
				WithDetail("section_id", sectionID)
		}

		counts := make(map[Level]int, len(Levels))
		for _, level := range Levels {
			for idx, c := range byLevel[level] {
				c.ID = fmt.Sprintf("%s_%s_%d", sectionID, level, idx)
				c.ParentID = sectionID
				c.SectionID = sectionID
				c.DocumentID = documentID
				c.ClaimID = claimID
				if ts := document.FirstTimestamp(c.Text); ts != "" {
					c.Metadata["timestamp"] = ts
				}
			}
			counts[level] = len(byLevel[level])
			h.Chunks[level] = append(h.Chunks[level], byLevel[level]...)
		}

		h.Sections = append(h.Sections, SectionSummary{
			SectionID:     sectionID,
			SectionNumber: number,
			Header:        section.Header,
			DocumentID:    documentID,
			ClaimID:       claimID,
			ParentID:      documentID,
			ChunkCounts:   counts,
		})

		slog.Debug("section_chunked",
			slog.String("section_id", sectionID),
			slog.Int("small", counts[Small]),
			slog.Int("medium", counts[Medium]),
			slog.Int("large", counts[Large]))
	}

	slog.Info("document_chunked",
		slog.String("document_id", documentID),
		slog.Int("sections", len(h.Sections)),
		slog.Int("chunks", h.TotalChunks()),
		slog.Duration("duration", time.Since(start)))

	return h, nil
}

// segmentAll runs the three levels over the same text concurrently.
func (a *Assembler) segmentAll(ctx context.Context, text string, meta map[string]any) (map[Level][]*Chunk, error) {
	results := make([][]*Chunk, len(Levels))
	g, _ := errgroup.WithContext(ctx)
	for i, level := range Levels {
		g.Go(func() error {
			chunks, err := a.seg.Segment(text, level, meta)
			if err != nil {
				return fmt.Errorf("%s level: %w", level, err)
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Level][]*Chunk, len(Levels))
	for i, level := range Levels {
		out[level] = results[i]
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
