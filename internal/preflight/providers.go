package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/claimrag/internal/config"
	"github.com/Aman-CERP/claimrag/internal/embed"
	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/tokenize"
)

// CheckTokenizer fails when the configured tokenizer cannot load.
func (c *Checker) CheckTokenizer(name string) CheckResult {
	result := CheckResult{Name: "tokenizer", Required: true}

	tok, err := tokenize.New(name)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = tok.Name()
	return result
}

// CheckEmbedder starts the configured embedder. An explicit provider that
// cannot start fails; auto-detection landing on static embeddings warns,
// since vector recall drops to lexical overlap.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) CheckResult {
	result := CheckResult{Name: "embedder", Required: true}

	provider, err := embed.ParseProvider(cfg.Provider)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	e, err := embed.NewEmbedder(ctx, embed.Config{
		Provider:  provider,
		Model:     cfg.Model,
		Host:      cfg.OllamaHost,
		CacheSize: -1,
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = "Start Ollama or set embeddings.provider: static"
		return result
	}
	defer func() { _ = e.Close() }()

	info := embed.GetInfo(e)
	result.Message = fmt.Sprintf("%s (%d dims)", info.Model, info.Dimensions)
	if info.Provider == embed.ProviderOllama {
		result.Message = "ollama " + result.Message
	}
	if provider == embed.ProviderAuto && info.Provider == embed.ProviderStatic {
		result.Status = StatusWarn
		result.Message = "Ollama unreachable, using static embeddings"
		result.Details = "Keyword search is more reliable than semantic search with static embeddings"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckSummarizer probes Ollama when it generates summaries. An
// unreachable server only warns because builds fall back to truncation.
func (c *Checker) CheckSummarizer(ctx context.Context, cfg config.SummaryConfig) CheckResult {
	result := CheckResult{Name: "summarizer"}

	switch {
	case !cfg.Enabled:
		result.Status = StatusPass
		result.Message = "disabled"
		return result
	case strings.EqualFold(cfg.Provider, "truncate"):
		result.Status = StatusPass
		result.Message = "truncate"
		return result
	}

	s := index.NewOllamaSummarizer(index.OllamaSummarizerConfig{
		Host:    cfg.OllamaHost,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	defer func() { _ = s.Close() }()

	if !s.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama unreachable at %s, summaries will be truncated text", cfg.OllamaHost)
		return result
	}
	result.Status = StatusPass
	result.Message = "ollama " + cfg.Model
	return result
}

// CheckIndex warns when no index has been built in dataDir yet.
func (c *Checker) CheckIndex(dataDir string) CheckResult {
	result := CheckResult{Name: "index"}

	info, err := os.Stat(filepath.Join(dataDir, index.RecordsFileName))
	if err != nil {
		result.Status = StatusWarn
		result.Message = "not built yet"
		result.Details = "Run 'claimrag index <file>'"
		return result
	}
	result.Status = StatusPass
	result.Message = "built " + info.ModTime().Format("2006-01-02 15:04:05")
	return result
}
