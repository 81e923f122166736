package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/config"
	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/tokenize"
)

// env is the loaded configuration of one project directory.
type env struct {
	dir string
	cfg *config.Config
	// progress, when set, is passed to the index manager.
	progress index.ProgressFunc
}

func loadEnv(flags *globalFlags) (*env, error) {
	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", flags.dir, err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return &env{dir: dir, cfg: cfg}, nil
}

func (e *env) dataDir() string {
	return e.cfg.DataDir(e.dir)
}

// hasIndex reports whether a build has written the record store.
func (e *env) hasIndex() bool {
	_, err := os.Stat(filepath.Join(e.dataDir(), index.RecordsFileName))
	return err == nil
}

func (e *env) requireIndex() error {
	if e.hasIndex() {
		return nil
	}
	return ragerrors.New(ragerrors.ErrCodeFileNotFound,
		"no index found in "+e.dataDir(), nil).
		WithSuggestion("run `claimrag index <file>` first")
}

func (e *env) segmenter() (*chunk.Segmenter, error) {
	tok, err := tokenize.New(e.cfg.Chunking.Tokenizer)
	if err != nil {
		return nil, err
	}
	c := e.cfg.Chunking
	return chunk.NewSegmenter(tok, chunk.Options{
		Budgets: map[chunk.Level]chunk.Budget{
			chunk.Small:  {Min: c.Small.Min, Max: c.Small.Max},
			chunk.Medium: {Min: c.Medium.Min, Max: c.Medium.Max},
			chunk.Large:  {Min: c.Large.Min, Max: c.Large.Max},
		},
		OverlapRatio: c.OverlapRatio,
	})
}

func (e *env) embedder(ctx context.Context) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(e.cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	return embed.NewEmbedder(ctx, embed.Config{
		Provider:  provider,
		Model:     e.cfg.Embeddings.Model,
		Host:      e.cfg.Embeddings.OllamaHost,
		BatchSize: e.cfg.Embeddings.BatchSize,
		CacheSize: e.cfg.Embeddings.CacheSize,
	})
}

// session is an open index plus the collaborators it was opened with.
type session struct {
	manager    *index.Manager
	embedder   embed.Embedder
	summarizer index.Summarizer
}

// openSession opens the index in the project's data directory. The
// summarizer is only contacted when withSummarizer is set, since queries
// never call it.
func (e *env) openSession(ctx context.Context, withSummarizer bool) (*session, error) {
	emb, err := e.embedder(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{embedder: emb}
	if withSummarizer && e.cfg.Summary.Enabled {
		s.summarizer = index.NewSummarizer(ctx, e.cfg.Summary)
	}

	m, err := index.NewManager(index.ManagerConfigFrom(e.cfg, e.dataDir()),
		index.Deps{Embedder: emb, Summarizer: s.summarizer, Progress: e.progress})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := m.Open(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.manager = m
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.manager != nil {
		errs = append(errs, s.manager.Close())
	}
	if s.summarizer != nil {
		errs = append(errs, s.summarizer.Close())
	}
	errs = append(errs, s.embedder.Close())
	return errors.Join(errs...)
}

func validateFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json":
		return nil
	}
	return ragerrors.New(ragerrors.ErrCodeInvalidInput,
		fmt.Sprintf("unknown output format %q", format), nil).
		WithSuggestion("use --format text or --format json")
}
