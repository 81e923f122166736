package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// ProviderType names an embedding backend.
type ProviderType string

const (
	// ProviderAuto uses Ollama when it is reachable and the static
	// embedder otherwise.
	ProviderAuto   ProviderType = ""
	ProviderOllama ProviderType = "ollama"
	ProviderStatic ProviderType = "static"
)

func (p ProviderType) String() string {
	if p == ProviderAuto {
		return "auto"
	}
	return string(p)
}

// ParseProvider converts a config value to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ProviderAuto, nil
	case "ollama":
		return ProviderOllama, nil
	case "static":
		return ProviderStatic, nil
	}
	return "", ragerrors.New(ragerrors.ErrCodeProviderUnsupported,
		fmt.Sprintf("unknown embedding provider %q", s), nil).
		WithSuggestion("Use one of: ollama, static")
}

// Config selects and tunes the embedder built by NewEmbedder.
type Config struct {
	Provider  ProviderType
	Model     string
	Host      string
	BatchSize int
	// CacheSize is the LRU size; negative disables caching.
	CacheSize int
}

// NewEmbedder builds the embedder for cfg and wraps it in a cache. An
// explicit provider that cannot start is an error; auto-detection falls
// back to the static embedder.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderStatic:
		e = NewStaticEmbedder()
	case ProviderOllama:
		e, err = newOllama(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w", err)
		}
	case ProviderAuto:
		e, err = newOllama(ctx, cfg)
		if err != nil {
			slog.Warn("embedder_fallback",
				slog.String("from", string(ProviderOllama)),
				slog.String("to", string(ProviderStatic)),
				slog.String("reason", err.Error()))
			e = NewStaticEmbedder()
		}
	default:
		return nil, ragerrors.New(ragerrors.ErrCodeProviderUnsupported,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}

	if cfg.CacheSize >= 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

func newOllama(ctx context.Context, cfg Config) (*OllamaEmbedder, error) {
	oc := DefaultOllamaConfig()
	if cfg.Host != "" {
		oc.Host = cfg.Host
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	if cfg.BatchSize > 0 {
		oc.BatchSize = cfg.BatchSize
	}
	return NewOllamaEmbedder(ctx, oc)
}

// Info describes an embedder for display.
type Info struct {
	Provider   ProviderType `json:"provider"`
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions"`
	Cached     bool         `json:"cached"`
}

func GetInfo(e Embedder) Info {
	info := Info{Model: e.ModelName(), Dimensions: e.Dimensions()}
	inner := e
	if c, ok := e.(*CachedEmbedder); ok {
		info.Cached = true
		inner = c.Inner()
	}
	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}
	return info
}
