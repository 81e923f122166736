package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// Defaults shared by the retrievers.
const (
	DefaultTopK                 = 5
	DefaultStartLevel           = "small"
	DefaultRerankPoolMultiplier = 4
	DefaultPoolMultiplier       = 2
)

// Config tunes a retriever. Zero fields take the defaults above.
type Config struct {
	TopK                 int
	StartLevel           string
	TimeBoost            float64
	SectionBoost         float64
	RerankPoolMultiplier int
	PoolMultiplier       int
	AutoMerge            bool
}

// DefaultConfig returns the retriever defaults with auto-merge on.
func DefaultConfig() Config {
	return Config{
		TopK:                 DefaultTopK,
		StartLevel:           DefaultStartLevel,
		TimeBoost:            DefaultTimeBoost,
		SectionBoost:         DefaultSectionBoost,
		RerankPoolMultiplier: DefaultRerankPoolMultiplier,
		PoolMultiplier:       DefaultPoolMultiplier,
		AutoMerge:            true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.StartLevel == "" {
		c.StartLevel = def.StartLevel
	}
	if c.TimeBoost == 0 {
		c.TimeBoost = def.TimeBoost
	}
	if c.SectionBoost == 0 {
		c.SectionBoost = def.SectionBoost
	}
	if c.RerankPoolMultiplier <= 0 {
		c.RerankPoolMultiplier = def.RerankPoolMultiplier
	}
	if c.PoolMultiplier <= 0 {
		c.PoolMultiplier = def.PoolMultiplier
	}
	return c
}

// Option configures a retriever at construction.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

func WithTopK(k int) Option {
	return func(c *Config) { c.TopK = k }
}

// WithAutoMerge turns merging of adjacent chunks on or off.
func WithAutoMerge(enabled bool) Option {
	return func(c *Config) { c.AutoMerge = enabled }
}

// WithBoosts sets the time and section rerank boosts.
func WithBoosts(timeBoost, sectionBoost float64) Option {
	return func(c *Config) {
		c.TimeBoost = timeBoost
		c.SectionBoost = sectionBoost
	}
}

// Options are per-query settings for HierarchicalRetriever.
type Options struct {
	// TopK overrides the configured result count when positive.
	TopK int
	// Filters are metadata equality filters. A "level" filter here wins
	// over StartLevel.
	Filters store.Where
	// StartLevel is the chunk level searched; empty uses the configured
	// start level.
	StartLevel    string
	TimeRerank    bool
	SectionRerank bool
}

// fetcher embeds a query and turns store matches into candidates.
type fetcher struct {
	collection store.Collection
	embedder   embed.Embedder
}

func (f fetcher) fetch(ctx context.Context, query string, where store.Where, n int) ([]Candidate, error) {
	vec, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, ragerrors.RetrievalError(fmt.Sprintf("failed to embed query %q", truncateQuery(query)), err)
	}
	matches, err := f.collection.Query(ctx, store.QueryRequest{Embedding: vec, N: n, Where: where})
	if err != nil {
		return nil, ragerrors.RetrievalError(
			fmt.Sprintf("failed to query %s for %q", f.collection.Name(), truncateQuery(query)), err)
	}
	out := make([]Candidate, len(matches))
	for i, m := range matches {
		out[i] = fromMatch(m)
	}
	return out, nil
}

// HierarchicalRetriever searches the chunk collection at one level,
// optionally reranks, truncates to top k and merges adjacent chunks.
type HierarchicalRetriever struct {
	fetcher
	cfg    Config
	merger AutoMerger
}

// NewHierarchicalRetriever binds a retriever to the hierarchical
// collection. A nil collection or embedder is a configuration error.
func NewHierarchicalRetriever(coll store.Collection, e embed.Embedder, opts ...Option) (*HierarchicalRetriever, error) {
	if coll == nil {
		return nil, ragerrors.ConfigError("hierarchical collection cannot be nil", nil)
	}
	if e == nil {
		return nil, ragerrors.ConfigError("embedder cannot be nil", nil)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HierarchicalRetriever{
		fetcher: fetcher{collection: coll, embedder: e},
		cfg:     cfg.withDefaults(),
	}, nil
}

// Retrieve runs one query. An empty query is an error; no matches is an
// empty result.
func (r *HierarchicalRetriever) Retrieve(ctx context.Context, query string, opts Options) ([]Candidate, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	level := opts.StartLevel
	if level == "" {
		level = r.cfg.StartLevel
	}

	where := store.Where{keyLevel: level}.Merge(opts.Filters)

	rerank := opts.TimeRerank || opts.SectionRerank
	pool := topK * r.cfg.PoolMultiplier
	if rerank {
		pool = topK * r.cfg.RerankPoolMultiplier
	}

	candidates, err := r.fetch(ctx, query, where, pool)
	if err != nil {
		return nil, err
	}

	if opts.TimeRerank {
		candidates = TimeReranker{Boost: r.cfg.TimeBoost}.Rerank(query, candidates)
	}
	if opts.SectionRerank {
		candidates = SectionReranker{Boost: r.cfg.SectionBoost}.Rerank(query, candidates)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	if r.cfg.AutoMerge && len(candidates) > 0 {
		candidates = r.merger.Merge(candidates, topK)
	}

	slog.Info("hierarchical_retrieval",
		slog.String("level", fmt.Sprint(where[keyLevel])),
		slog.Int("pool", pool),
		slog.Int("results", len(candidates)),
		slog.Bool("auto_merge", r.cfg.AutoMerge),
		slog.Duration("duration", time.Since(start)))
	return candidates, nil
}

// Metadata describes the retriever.
func (r *HierarchicalRetriever) Metadata() Info {
	merge := "no_auto_merging"
	if r.cfg.AutoMerge {
		merge = "auto_merging"
	}
	return Info{
		RetrieverType:  "HierarchicalRetriever",
		IndexType:      "hierarchical",
		CollectionName: r.collection.Name(),
		EmbeddingModel: r.embedder.ModelName(),
		AutoMerge:      r.cfg.AutoMerge,
		Capabilities: []string{
			"semantic_search",
			"level_filtering",
			"section_filtering",
			"timestamp_filtering",
			"time_rerank",
			"section_rerank",
			merge,
		},
	}
}

// truncateQuery shortens a query for error messages.
func truncateQuery(q string) string {
	const n = 50
	r := []rune(q)
	if len(r) <= n {
		return q
	}
	return string(r[:n]) + "..."
}
