package index

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// SummaryIndexer builds summaries with a map phase over small chunks and
// two reduce phases (section, then document), and stores them all in one
// collection.
type SummaryIndexer struct {
	collection store.Collection
	embedder   embed.Embedder
	summarizer Summarizer
	workers    int
	opts       IndexerOptions
	progress   ProgressFunc
}

// NewSummaryIndexer binds an indexer to its collection. workers bounds the
// number of concurrent map-phase summaries.
func NewSummaryIndexer(coll store.Collection, e embed.Embedder, s Summarizer, workers int, opts IndexerOptions) (*SummaryIndexer, error) {
	if coll == nil {
		return nil, ragerrors.ConfigError("summary indexer needs a collection", nil)
	}
	if e == nil {
		return nil, ragerrors.ConfigError("summary indexer needs an embedder", nil)
	}
	if s == nil {
		s = NewTruncatingSummarizer()
	}
	return &SummaryIndexer{
		collection: coll,
		embedder:   e,
		summarizer: s,
		workers:    max(workers, 1),
		opts:       opts.withDefaults(),
	}, nil
}

// Prepare runs MapReduce over h and returns chunk, section and document
// summaries in that order. A failing summarizer call degrades to a
// truncation of its input; only cancellation aborts.
func (x *SummaryIndexer) Prepare(ctx context.Context, h *chunk.Hierarchy) ([]Summary, error) {
	if h == nil {
		return nil, nil
	}

	// Map: one summary per small chunk, order preserved.
	small := h.Level(chunk.Small)
	chunkSummaries := make([]Summary, len(small))

	// Sections without chunks are skipped, so total is an upper bound
	// until Build reports the final count.
	var done atomic.Int64
	total := len(small) + len(h.Sections) + 1
	advance := func() { x.progress.report(StageSummaries, int(done.Add(1)), total) }
	x.progress.report(StageSummaries, 0, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, c := range small {
		g.Go(func() error {
			text := x.summarize(gctx, chunkPrompt(c.Text), c.Text, ChunkFallbackLen, c.ID)
			chunkSummaries[i] = Summary{
				ID:              "summary_" + c.ID,
				Level:           SummaryChunk,
				Text:            text,
				SectionID:       c.SectionID,
				DocumentID:      c.DocumentID,
				ClaimID:         c.ClaimID,
				OriginalChunkID: c.ID,
			}
			advance()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ragerrors.IndexingError("summary map phase cancelled", err)
	}
	slog.Info("chunk_summaries_generated", slog.Int("count", len(chunkSummaries)))

	out := append([]Summary(nil), chunkSummaries...)

	// Reduce 1: sections with at least one chunk summary.
	var sectionTexts []string
	for _, sec := range h.Sections {
		var parts []string
		for _, cs := range chunkSummaries {
			if cs.SectionID == sec.SectionID {
				parts = append(parts, cs.Text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, ragerrors.IndexingError("summary reduce phase cancelled", err)
		}
		combined := strings.Join(parts, "\n\n")
		text := x.summarize(ctx, sectionPrompt(sec.Header, combined), combined, SectionFallbackLen, sec.SectionID)
		out = append(out, Summary{
			ID:         "summary_section_" + sec.SectionID,
			Level:      SummarySection,
			Text:       text,
			SectionID:  sec.SectionID,
			DocumentID: h.DocumentID,
			ClaimID:    h.ClaimID,
		})
		sectionTexts = append(sectionTexts, text)
		advance()
	}
	slog.Info("section_summaries_generated", slog.Int("count", len(sectionTexts)))

	// Reduce 2: only when some section produced a summary.
	if len(sectionTexts) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, ragerrors.IndexingError("summary reduce phase cancelled", err)
		}
		docID := h.DocumentID
		if docID == "" {
			docID = "doc"
		}
		combined := strings.Join(sectionTexts, "\n\n")
		prompt := documentPrompt(h.ClaimID, h.Metadata.FirstTimestamp, h.Metadata.LastTimestamp, combined)
		out = append(out, Summary{
			ID:         "summary_document_" + docID,
			Level:      SummaryDocument,
			Text:       x.summarize(ctx, prompt, combined, DocumentFallbackLen, docID),
			DocumentID: h.DocumentID,
			ClaimID:    h.ClaimID,
		})
		advance()
	}

	return out, nil
}

// summarize calls the summarizer and falls back to the first limit bytes
// of input on failure.
func (x *SummaryIndexer) summarize(ctx context.Context, prompt, input string, limit int, id string) string {
	text, err := x.summarizer.Summarize(ctx, prompt)
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	if err != nil && ctx.Err() == nil {
		slog.Warn("summary_fallback",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	return truncateWithEllipsis(input, limit)
}

// Store embeds summaries and adds them to the collection. Summaries with
// invalid metadata are skipped.
func (x *SummaryIndexer) Store(ctx context.Context, summaries []Summary) error {
	items := make([]Item, 0, len(summaries))
	for _, s := range summaries {
		meta := SummaryMetadata(s)
		if err := ValidateSummaryMetadata(meta); err != nil {
			slog.Warn("summary_skipped", slog.String("id", s.ID), slog.String("error", err.Error()))
			continue
		}
		items = append(items, Item{ID: s.ID, Text: s.Text, Metadata: meta})
	}
	if len(items) == 0 {
		slog.Warn("summary_index_empty")
		return nil
	}
	return storeItems(ctx, x.collection, x.embedder, items, x.opts)
}

// Build prepares and stores the summaries of h.
func (x *SummaryIndexer) Build(ctx context.Context, h *chunk.Hierarchy) (int, error) {
	summaries, err := x.Prepare(ctx, h)
	if err != nil {
		return 0, err
	}
	if err := x.Store(ctx, summaries); err != nil {
		return 0, err
	}
	x.progress.report(StageSummaries, len(summaries), len(summaries))
	return len(summaries), nil
}

func (x *SummaryIndexer) Collection() store.Collection { return x.collection }
