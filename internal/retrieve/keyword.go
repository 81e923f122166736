package retrieve

import (
	"context"
	"log/slog"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// KeywordSearcher is the part of store.KeywordIndex the keyword retriever
// needs.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, where store.Where, limit int) ([]store.KeywordHit, error)
}

var _ KeywordSearcher = (*store.KeywordIndex)(nil)

// KeywordRetriever finds chunks by term match and returns them in the same
// shape as the vector retrievers. Scores are divided by the score of the
// best hit that survives filtering, so the top result scores 1.
type KeywordRetriever struct {
	searcher   KeywordSearcher
	collection store.Collection
	cfg        Config
}

func NewKeywordRetriever(s KeywordSearcher, coll store.Collection, opts ...Option) (*KeywordRetriever, error) {
	if s == nil {
		return nil, ragerrors.ConfigError("keyword index cannot be nil", nil)
	}
	if coll == nil {
		return nil, ragerrors.ConfigError("hierarchical collection cannot be nil", nil)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &KeywordRetriever{searcher: s, collection: coll, cfg: cfg.withDefaults()}, nil
}

// Retrieve searches at opts.StartLevel (or the configured level) and
// hydrates hits from the collection. Filters the keyword index cannot
// apply are checked against the hydrated metadata.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, opts Options) ([]Candidate, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	level := opts.StartLevel
	if level == "" {
		level = r.cfg.StartLevel
	}
	where := store.Where{keyLevel: level}.Merge(opts.Filters)

	pool := topK * r.cfg.PoolMultiplier
	if opts.TimeRerank || opts.SectionRerank {
		pool = topK * r.cfg.RerankPoolMultiplier
	}
	hits, err := r.searcher.Search(ctx, query, where, pool)
	if err != nil {
		return nil, ragerrors.RetrievalError("keyword search failed for "+truncateQuery(query), err)
	}
	if len(hits) == 0 {
		return []Candidate{}, nil
	}

	var top float64
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		recs, err := r.collection.Get(ctx, store.Where{keyChunkID: h.ID})
		if err != nil {
			return nil, ragerrors.RetrievalError("failed to load keyword hit "+h.ID, err)
		}
		if len(recs) == 0 {
			slog.Debug("keyword_hit_missing", slog.String("id", h.ID))
			continue
		}
		rec := recs[0]
		if !where.Matches(rec.Metadata) {
			continue
		}
		if len(out) == 0 {
			top = h.Score
		}
		score := 0.0
		if top > 0 {
			score = h.Score / top
		}
		out = append(out, Candidate{
			ID:       rec.ID,
			Text:     rec.Document,
			Metadata: rec.Metadata,
			Score:    score,
		})
	}

	if opts.TimeRerank {
		out = TimeReranker{Boost: r.cfg.TimeBoost}.Rerank(query, out)
	}
	if opts.SectionRerank {
		out = SectionReranker{Boost: r.cfg.SectionBoost}.Rerank(query, out)
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *KeywordRetriever) Metadata() Info {
	return Info{
		RetrieverType:  "KeywordRetriever",
		IndexType:      "keyword",
		CollectionName: r.collection.Name(),
		Capabilities:   []string{"keyword_search", "level_filtering", "section_filtering"},
	}
}
