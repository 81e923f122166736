package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/config"
	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/retrieve"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// Files inside the data directory.
const (
	RecordsFileName = "records.db"
	KeywordDirName  = "keyword.bleve"
)

// State keys kept in the record store.
const (
	stateEmbeddingModel = "embedding_model"
	stateEmbeddingDims  = "embedding_dimensions"
	stateLastBuild      = "last_build"
	stateDocuments      = "documents"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// DataDir holds the record store, keyword index and build lock. Empty
	// keeps everything in memory.
	DataDir        string
	HNSW           store.HNSWConfig
	Indexer        IndexerOptions
	SummaryEnabled bool
	SummaryWorkers int
	KeywordEnabled bool
	Retrieval      retrieve.Config
}

// ManagerConfigFrom maps the application config onto a ManagerConfig.
func ManagerConfigFrom(cfg *config.Config, dataDir string) ManagerConfig {
	return ManagerConfig{
		DataDir: dataDir,
		HNSW:    store.DefaultHNSWConfig(),
		Indexer: IndexerOptions{
			BatchSize: cfg.Embeddings.BatchSize,
			Workers:   cfg.Embeddings.Workers,
		},
		SummaryEnabled: cfg.Summary.Enabled,
		SummaryWorkers: cfg.Summary.Workers,
		KeywordEnabled: true,
		Retrieval: retrieve.Config{
			TopK:                 cfg.Retrieval.TopK,
			StartLevel:           cfg.Retrieval.StartLevel,
			TimeBoost:            cfg.Retrieval.TimeBoost,
			SectionBoost:         cfg.Retrieval.SectionBoost,
			RerankPoolMultiplier: cfg.Retrieval.RerankPoolMultiplier,
			PoolMultiplier:       cfg.Retrieval.PoolMultiplier,
			AutoMerge:            cfg.Retrieval.AutoMerge,
		},
	}
}

// Deps are the collaborators a Manager uses but does not construct.
type Deps struct {
	Embedder embed.Embedder
	// Summarizer may be nil, which selects truncation.
	Summarizer Summarizer
	// Progress, when set, receives build progress.
	Progress ProgressFunc
}

// Manager owns both collections, the keyword index and the record store
// behind them for one data directory.
type Manager struct {
	cfg  ManagerConfig
	deps Deps

	mu           sync.Mutex
	records      *store.SQLiteRecordStore
	hierarchical *store.HNSWCollection
	summary      *store.HNSWCollection
	keyword      *store.KeywordIndex
	opened       bool
}

// NewManager validates its inputs. Call Open before use.
func NewManager(cfg ManagerConfig, deps Deps) (*Manager, error) {
	if deps.Embedder == nil {
		return nil, ragerrors.ConfigError("index manager needs an embedder", nil)
	}
	if deps.Summarizer == nil {
		deps.Summarizer = NewTruncatingSummarizer()
	}
	if cfg.Retrieval == (retrieve.Config{}) {
		cfg.Retrieval = retrieve.DefaultConfig()
	}
	return &Manager{cfg: cfg, deps: deps}, nil
}

// Open opens or creates the stores and loads persisted collections. It
// fails when the stored vectors were made by an embedder of a different
// dimension.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return nil
	}

	recordsPath, keywordPath := "", ""
	if m.cfg.DataDir != "" {
		recordsPath = filepath.Join(m.cfg.DataDir, RecordsFileName)
		keywordPath = filepath.Join(m.cfg.DataDir, KeywordDirName)
	}

	rs, err := store.OpenRecordStore(recordsPath)
	if err != nil {
		return err
	}
	m.records = rs

	m.hierarchical, err = store.OpenHNSWCollection(ctx, CollectionHierarchical, rs, m.cfg.HNSW)
	if err != nil {
		_ = m.closeLocked()
		return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	m.summary, err = store.OpenHNSWCollection(ctx, CollectionSummary, rs, m.cfg.HNSW)
	if err != nil {
		_ = m.closeLocked()
		return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	if m.cfg.KeywordEnabled {
		m.keyword, err = store.OpenKeywordIndex(keywordPath)
		if err != nil {
			_ = m.closeLocked()
			return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
		}
	}

	if err := m.checkEmbedding(ctx); err != nil {
		_ = m.closeLocked()
		return err
	}
	m.opened = true

	if m.keyword != nil && !NewConsistencyChecker(m.hierarchical, m.keyword).QuickCheck() {
		slog.Warn("keyword_index_out_of_sync",
			slog.String("hint", "run `claimrag stats --check --repair`"))
	}

	slog.Info("index_opened",
		slog.String("data_dir", m.cfg.DataDir),
		slog.Int("hierarchical", m.hierarchical.Count()),
		slog.Int("summary", m.summary.Count()))
	return nil
}

// checkEmbedding compares the embedder with the one that built the stored
// vectors.
func (m *Manager) checkEmbedding(ctx context.Context) error {
	storedDims, err := m.records.GetState(ctx, stateEmbeddingDims)
	if err != nil {
		return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	if storedDims == "" {
		return nil
	}
	dims, _ := strconv.Atoi(storedDims)
	if want := m.deps.Embedder.Dimensions(); dims != 0 && want != 0 && dims != want {
		return store.DimensionMismatchError(CollectionHierarchical, dims, want)
	}
	storedModel, _ := m.records.GetState(ctx, stateEmbeddingModel)
	if storedModel != "" && storedModel != m.deps.Embedder.ModelName() {
		slog.Warn("embedding_model_changed",
			slog.String("indexed_with", storedModel),
			slog.String("current", m.deps.Embedder.ModelName()))
	}
	return nil
}

// BuildResult reports what a build stored.
type BuildResult struct {
	DocumentID   string        `json:"document_id"`
	Chunks       int           `json:"chunks"`
	Summaries    int           `json:"summaries"`
	Duration     time.Duration `json:"duration"`
	SummaryModel string        `json:"summary_model,omitempty"`
}

// Build adds h to both indices. With a data directory the build holds the
// directory's build lock and fails fast when another process holds it.
func (m *Manager) Build(ctx context.Context, h *chunk.Hierarchy) (*BuildResult, error) {
	return m.build(ctx, h, false)
}

// Rebuild clears every collection, then builds h.
func (m *Manager) Rebuild(ctx context.Context, h *chunk.Hierarchy) (*BuildResult, error) {
	return m.build(ctx, h, true)
}

func (m *Manager) build(ctx context.Context, h *chunk.Hierarchy, reset bool) (*BuildResult, error) {
	if h == nil {
		return nil, ragerrors.IndexingError("hierarchy is nil", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return nil, ragerrors.IndexingError("index manager is not open", nil)
	}

	if m.cfg.DataDir != "" {
		lock := NewBuildLock(m.cfg.DataDir)
		if err := lock.TryLock(); err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("build_unlock_failed", slog.String("error", err.Error()))
			}
		}()
	}

	start := time.Now()
	slog.Info("index_build_started",
		slog.String("document_id", h.DocumentID),
		slog.Bool("rebuild", reset))

	if reset {
		if err := m.resetLocked(ctx); err != nil {
			return nil, err
		}
	}

	hx, err := NewHierarchicalIndexer(m.hierarchical, m.deps.Embedder, m.keyword, m.cfg.Indexer)
	if err != nil {
		return nil, err
	}
	result := &BuildResult{DocumentID: h.DocumentID}
	total := h.TotalChunks()
	m.deps.Progress.report(StageChunks, 0, total)
	if result.Chunks, err = hx.Build(ctx, h); err != nil {
		return nil, err
	}
	m.deps.Progress.report(StageChunks, result.Chunks, result.Chunks)

	if m.cfg.SummaryEnabled {
		sx, err := NewSummaryIndexer(m.summary, m.deps.Embedder, m.deps.Summarizer, m.cfg.SummaryWorkers, m.cfg.Indexer)
		if err != nil {
			return nil, err
		}
		sx.progress = m.deps.Progress
		if result.Summaries, err = sx.Build(ctx, h); err != nil {
			return nil, err
		}
		result.SummaryModel = m.deps.Summarizer.Name()
	}

	if err := m.recordBuild(ctx, h.DocumentID); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	slog.Info("index_build_completed",
		slog.String("document_id", h.DocumentID),
		slog.Int("chunks", result.Chunks),
		slog.Int("summaries", result.Summaries),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (m *Manager) recordBuild(ctx context.Context, documentID string) error {
	docs, err := m.records.GetState(ctx, stateDocuments)
	if err != nil {
		return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	list := splitList(docs)
	if documentID != "" && !slices.Contains(list, documentID) {
		list = append(list, documentID)
	}

	state := map[string]string{
		stateEmbeddingModel: m.deps.Embedder.ModelName(),
		stateEmbeddingDims:  strconv.Itoa(m.deps.Embedder.Dimensions()),
		stateLastBuild:      time.Now().UTC().Format(time.RFC3339),
		stateDocuments:      strings.Join(list, ","),
	}
	for k, v := range state {
		if err := m.records.SetState(ctx, k, v); err != nil {
			return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
		}
	}
	return nil
}

// Reset clears both collections and the keyword index.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return ragerrors.IndexingError("index manager is not open", nil)
	}
	return m.resetLocked(ctx)
}

func (m *Manager) resetLocked(ctx context.Context) error {
	if err := m.hierarchical.Reset(ctx); err != nil {
		return ragerrors.IndexingError("failed to reset hierarchical index", err)
	}
	if err := m.summary.Reset(ctx); err != nil {
		return ragerrors.IndexingError("failed to reset summary index", err)
	}
	if m.keyword != nil {
		if err := m.keyword.Reset(ctx); err != nil {
			return ragerrors.IndexingError("failed to reset keyword index", err)
		}
	}
	if err := m.records.SetState(ctx, stateDocuments, ""); err != nil {
		return ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	slog.Info("index_reset")
	return nil
}

// Load reports whether either collection holds records.
func (m *Manager) Load(ctx context.Context) (bool, error) {
	if err := m.Open(ctx); err != nil {
		return false, err
	}
	return m.hierarchical.Count() > 0 || m.summary.Count() > 0, nil
}

// HierarchicalRetriever returns a retriever over the chunk collection
// using the configured retrieval settings. opts override them.
func (m *Manager) HierarchicalRetriever(opts ...retrieve.Option) (*retrieve.HierarchicalRetriever, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	return retrieve.NewHierarchicalRetriever(m.hierarchical, m.deps.Embedder, m.retrieveOptions(opts)...)
}

func (m *Manager) SummaryRetriever(opts ...retrieve.Option) (*retrieve.SummaryRetriever, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	return retrieve.NewSummaryRetriever(m.summary, m.deps.Embedder, m.retrieveOptions(opts)...)
}

// KeywordRetriever fails with a config error when the keyword index is
// disabled.
func (m *Manager) KeywordRetriever(opts ...retrieve.Option) (*retrieve.KeywordRetriever, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if m.keyword == nil {
		return nil, ragerrors.ConfigError("keyword index is disabled", nil)
	}
	return retrieve.NewKeywordRetriever(m.keyword, m.hierarchical, m.retrieveOptions(opts)...)
}

func (m *Manager) retrieveOptions(opts []retrieve.Option) []retrieve.Option {
	return append([]retrieve.Option{retrieve.WithConfig(m.cfg.Retrieval)}, opts...)
}

func (m *Manager) requireOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return ragerrors.ConfigError("index manager is not open", nil)
	}
	return nil
}

// CheckConsistency compares the chunk collection with the keyword index
// and, when repair is set, fixes what it found.
func (m *Manager) CheckConsistency(ctx context.Context, repair bool) (*CheckResult, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if m.keyword == nil {
		return &CheckResult{Checked: m.hierarchical.Count()}, nil
	}
	checker := NewConsistencyChecker(m.hierarchical, m.keyword)
	result, err := checker.Check(ctx)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	if repair && !result.Consistent() {
		if err := checker.Repair(ctx, result.Inconsistencies); err != nil {
			return nil, ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
		}
	}
	return result, nil
}

// Stats describes the managed indices.
type Stats struct {
	DataDir           string   `json:"data_dir"`
	Hierarchical      int      `json:"hierarchical_records"`
	HierarchicalNodes int      `json:"hierarchical_graph_nodes"`
	Summary           int      `json:"summary_records"`
	Keyword           int      `json:"keyword_documents"`
	Documents         []string `json:"documents"`
	EmbeddingModel    string   `json:"embedding_model"`
	Dimensions        int      `json:"dimensions"`
	LastBuild         string   `json:"last_build,omitempty"`
	Summarizer        string   `json:"summarizer"`
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	records, nodes := m.hierarchical.Stats()
	s := &Stats{
		DataDir:           m.cfg.DataDir,
		Hierarchical:      records,
		HierarchicalNodes: nodes,
		Summary:           m.summary.Count(),
		EmbeddingModel:    m.deps.Embedder.ModelName(),
		Dimensions:        m.deps.Embedder.Dimensions(),
		Summarizer:        m.deps.Summarizer.Name(),
	}
	if m.keyword != nil {
		s.Keyword = m.keyword.Count()
	}
	docs, err := m.records.GetState(ctx, stateDocuments)
	if err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	s.Documents = splitList(docs)
	if s.LastBuild, err = m.records.GetState(ctx, stateLastBuild); err != nil {
		return nil, ragerrors.Wrap(ragerrors.ErrCodeStoreFailed, err)
	}
	return s, nil
}

// Close releases every store. The embedder and summarizer belong to the
// caller.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	var errs []error
	if m.hierarchical != nil {
		errs = append(errs, m.hierarchical.Close())
	}
	if m.summary != nil {
		errs = append(errs, m.summary.Close())
	}
	if m.keyword != nil {
		errs = append(errs, m.keyword.Close())
	}
	if m.records != nil {
		errs = append(errs, m.records.Close())
	}
	m.hierarchical, m.summary, m.keyword, m.records = nil, nil, nil, nil
	m.opened = false
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
