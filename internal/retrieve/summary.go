package retrieve

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// SummaryOptions are per-query settings for SummaryRetriever.
type SummaryOptions struct {
	TopK int
	// Filters are metadata equality filters, e.g. summary_level=document.
	Filters       store.Where
	SectionRerank bool
}

// SummaryRetriever searches the summary collection. Summaries are never
// merged.
type SummaryRetriever struct {
	fetcher
	cfg Config
}

func NewSummaryRetriever(coll store.Collection, e embed.Embedder, opts ...Option) (*SummaryRetriever, error) {
	if coll == nil {
		return nil, ragerrors.ConfigError("summary collection cannot be nil", nil)
	}
	if e == nil {
		return nil, ragerrors.ConfigError("embedder cannot be nil", nil)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SummaryRetriever{
		fetcher: fetcher{collection: coll, embedder: e},
		cfg:     cfg.withDefaults(),
	}, nil
}

// Retrieve runs one query. With section rerank on, a query naming exactly
// one section is narrowed to that section in the store query itself; a
// query naming several widens the pool and boosts matching sections.
func (r *SummaryRetriever) Retrieve(ctx context.Context, query string, opts SummaryOptions) ([]Candidate, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	where := store.Where{}.Merge(opts.Filters)
	narrowed := false
	if opts.SectionRerank {
		if ids := ExtractSectionIDs(query); len(ids) == 1 {
			where[keySectionID] = ids[0]
			narrowed = true
			slog.Debug("summary_section_filter", slog.String("section_id", ids[0]))
		}
	}

	pool := topK
	if opts.SectionRerank && !narrowed {
		pool = topK * r.cfg.RerankPoolMultiplier
	}

	candidates, err := r.fetch(ctx, query, where, pool)
	if err != nil {
		return nil, err
	}
	if opts.SectionRerank && !narrowed {
		candidates = SectionReranker{Boost: r.cfg.SectionBoost}.Rerank(query, candidates)
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	slog.Info("summary_retrieval",
		slog.Int("pool", pool),
		slog.Bool("section_filter", narrowed),
		slog.Int("results", len(candidates)))
	return candidates, nil
}

func (r *SummaryRetriever) Metadata() Info {
	return Info{
		RetrieverType:  "SummaryRetriever",
		IndexType:      "summary",
		CollectionName: r.collection.Name(),
		EmbeddingModel: r.embedder.ModelName(),
		Capabilities: []string{
			"semantic_search",
			"summary_level_filtering",
			"section_filtering",
			"section_rerank",
		},
	}
}
