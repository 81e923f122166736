package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// Item is one record waiting to be embedded and stored.
type Item struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// IndexerOptions tune embedding during Store.
type IndexerOptions struct {
	// BatchSize is the number of texts per embedding request. Default 100.
	BatchSize int
	// Workers is the number of embedding batches in flight. Default 1.
	Workers int
}

func (o IndexerOptions) withDefaults() IndexerOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = embed.DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// HierarchicalIndexer stores chunks of every level in one collection,
// tagged by level, and optionally mirrors them into a keyword index.
type HierarchicalIndexer struct {
	collection store.Collection
	embedder   embed.Embedder
	keyword    *store.KeywordIndex
	opts       IndexerOptions
}

// NewHierarchicalIndexer binds an indexer to its collection. keyword may
// be nil.
func NewHierarchicalIndexer(coll store.Collection, e embed.Embedder, keyword *store.KeywordIndex, opts IndexerOptions) (*HierarchicalIndexer, error) {
	if coll == nil {
		return nil, ragerrors.ConfigError("hierarchical indexer needs a collection", nil)
	}
	if e == nil {
		return nil, ragerrors.ConfigError("hierarchical indexer needs an embedder", nil)
	}
	return &HierarchicalIndexer{
		collection: coll,
		embedder:   e,
		keyword:    keyword,
		opts:       opts.withDefaults(),
	}, nil
}

// Prepare flattens the hierarchy into items, small level first. Chunks
// whose metadata fails validation are skipped with a warning.
func (x *HierarchicalIndexer) Prepare(h *chunk.Hierarchy) []Item {
	if h == nil {
		return nil
	}
	items := make([]Item, 0, h.TotalChunks())
	for _, level := range chunk.Levels {
		for _, c := range h.Level(level) {
			meta := HierarchicalMetadata(c)
			if err := ValidateHierarchicalMetadata(meta); err != nil {
				slog.Warn("chunk_skipped",
					slog.String("chunk_id", c.ID),
					slog.String("error", err.Error()))
				continue
			}
			items = append(items, Item{ID: c.ID, Text: c.Text, Metadata: meta})
		}
	}
	return items
}

// Store embeds items and adds them to the collection, then to the keyword
// index when one is configured.
func (x *HierarchicalIndexer) Store(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		slog.Warn("hierarchical_index_empty")
		return nil
	}
	if err := storeItems(ctx, x.collection, x.embedder, items, x.opts); err != nil {
		return err
	}
	if x.keyword == nil {
		return nil
	}

	docs := make([]store.KeywordDoc, len(items))
	for i, it := range items {
		docs[i] = store.KeywordDoc{
			ID:        it.ID,
			Text:      it.Text,
			Level:     store.StringValue(it.Metadata, KeyLevel),
			SectionID: store.StringValue(it.Metadata, KeySectionID),
		}
	}
	if err := x.keyword.Index(ctx, docs); err != nil {
		return ragerrors.IndexingError("failed to update keyword index", err)
	}
	return nil
}

// Build prepares and stores h.
func (x *HierarchicalIndexer) Build(ctx context.Context, h *chunk.Hierarchy) (int, error) {
	items := x.Prepare(h)
	if err := x.Store(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (x *HierarchicalIndexer) Collection() store.Collection { return x.collection }

// storeItems embeds and adds items in one collection write.
func storeItems(ctx context.Context, coll store.Collection, e embed.Embedder, items []Item, opts IndexerOptions) error {
	start := time.Now()
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}

	vecs, err := embed.EmbedAll(ctx, e, texts, opts.BatchSize, opts.Workers)
	if err != nil {
		return ragerrors.IndexingError(
			fmt.Sprintf("failed to embed %d items for %s", len(items), coll.Name()), err)
	}

	records := make([]store.Record, len(items))
	for i, it := range items {
		records[i] = store.Record{
			ID:        it.ID,
			Document:  it.Text,
			Metadata:  it.Metadata,
			Embedding: vecs[i],
		}
	}
	if err := coll.Add(ctx, records); err != nil {
		return ragerrors.IndexingError("failed to store items in "+coll.Name(), err)
	}

	slog.Info("items_stored",
		slog.String("collection", coll.Name()),
		slog.Int("count", len(items)),
		slog.Duration("duration", time.Since(start)))
	return nil
}
