// Package config loads claimrag configuration from defaults, YAML files and
// CLAIMRAG_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// ProjectConfigNames are the project-level config files, in lookup order.
var ProjectConfigNames = []string{".claimrag.yaml", ".claimrag.yml"}

// Config is the complete claimrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Summary    SummaryConfig    `yaml:"summary" json:"summary"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// Budget is a token range for one chunk level.
type Budget struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Target is the midpoint of the budget.
func (b Budget) Target() int {
	return (b.Min + b.Max) / 2
}

// recenter moves the budget so its midpoint is target, keeping its width.
func (b Budget) recenter(target int) Budget {
	half := (b.Max - b.Min) / 2
	return Budget{Min: target - half, Max: target + half}
}

// ChunkingConfig configures hierarchical segmentation.
type ChunkingConfig struct {
	Small  Budget `yaml:"small" json:"small"`
	Medium Budget `yaml:"medium" json:"medium"`
	Large  Budget `yaml:"large" json:"large"`

	// OverlapRatio is the fraction of a closed chunk's tokens carried into
	// the next chunk of the same level.
	OverlapRatio float64 `yaml:"overlap_ratio" json:"overlap_ratio"`

	// Tokenizer is "word" (built in, offline) or "cl100k_base".
	Tokenizer string `yaml:"tokenizer" json:"tokenizer"`
}

// RetrievalConfig configures candidate fetching, reranking and merging.
type RetrievalConfig struct {
	TopK       int    `yaml:"top_k" json:"top_k"`
	StartLevel string `yaml:"start_level" json:"start_level"`

	// TimeBoost is added per time token matched; SectionBoost once for a
	// matching section reference.
	TimeBoost    float64 `yaml:"time_boost" json:"time_boost"`
	SectionBoost float64 `yaml:"section_boost" json:"section_boost"`

	// RerankPoolMultiplier sizes the candidate pool when a rerank pass will
	// run; PoolMultiplier otherwise.
	RerankPoolMultiplier int `yaml:"rerank_pool_multiplier" json:"rerank_pool_multiplier"`
	PoolMultiplier       int `yaml:"pool_multiplier" json:"pool_multiplier"`

	AutoMerge     bool `yaml:"auto_merge" json:"auto_merge"`
	TimeRerank    bool `yaml:"time_rerank" json:"time_rerank"`
	SectionRerank bool `yaml:"section_rerank" json:"section_rerank"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static", "ollama" or empty for auto-detection
	// (Ollama when reachable, static otherwise).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	Workers    int    `yaml:"workers" json:"workers"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// SummaryConfig configures the MapReduce summary index.
type SummaryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Provider is "ollama" or "truncate".
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Workers    int           `yaml:"workers" json:"workers"`
}

// StorageConfig configures where indices live.
type StorageConfig struct {
	// DataDir is resolved against the project directory when relative.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			Small:        Budget{Min: 100, Max: 200},
			Medium:       Budget{Min: 500, Max: 800},
			Large:        Budget{Min: 1500, Max: 2000},
			OverlapRatio: 0.2,
			Tokenizer:    "word",
		},
		Retrieval: RetrievalConfig{
			TopK:                 5,
			StartLevel:           "small",
			TimeBoost:            1.0,
			SectionBoost:         2.0,
			RerankPoolMultiplier: 4,
			PoolMultiplier:       2,
			AutoMerge:            true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  100,
			Workers:    min(runtime.NumCPU(), 4),
			CacheSize:  1000,
		},
		Summary: SummaryConfig{
			Enabled:    true,
			Provider:   "ollama",
			Model:      "llama3.2",
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
			Workers:    4,
		},
		Storage: StorageConfig{
			DataDir: ".claimrag",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/claimrag/config.yaml, or
// ~/.config/claimrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claimrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "claimrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "claimrag", "config.yaml")
}

// Load builds the configuration for the project in dir. Precedence, lowest
// first:
//  1. Built-in defaults
//  2. User config (GetUserConfigPath)
//  3. Project config (.claimrag.yaml in dir)
//  4. CLAIMRAG_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
		return nil, err
	}

	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
		break
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over c. Keys absent from the file keep their
// current values. A missing file is not an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeConfigNotFound, "failed to read config "+path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return ragerrors.ConfigError("failed to parse config "+path, err).
			WithSuggestion("check the YAML syntax, or regenerate it with `claimrag config init`")
	}
	return nil
}

// applyEnvOverrides applies CLAIMRAG_* environment variables. Malformed
// numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v, ok := envInt("CLAIMRAG_SMALL_CHUNK_SIZE"); ok {
		c.Chunking.Small = c.Chunking.Small.recenter(v)
	}
	if v, ok := envInt("CLAIMRAG_MEDIUM_CHUNK_SIZE"); ok {
		c.Chunking.Medium = c.Chunking.Medium.recenter(v)
	}
	if v, ok := envInt("CLAIMRAG_LARGE_CHUNK_SIZE"); ok {
		c.Chunking.Large = c.Chunking.Large.recenter(v)
	}
	if v := os.Getenv("CLAIMRAG_CHUNK_OVERLAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Chunking.OverlapRatio = f
		}
	}
	if v := os.Getenv("CLAIMRAG_TOKENIZER"); v != "" {
		c.Chunking.Tokenizer = v
	}
	if v, ok := envInt("CLAIMRAG_TOP_K_RESULTS"); ok {
		c.Retrieval.TopK = v
	}
	if v := os.Getenv("CLAIMRAG_AUTO_MERGE"); v != "" {
		c.Retrieval.AutoMerge = parseBool(v)
	}
	if v := os.Getenv("CLAIMRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CLAIMRAG_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CLAIMRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Summary.OllamaHost = v
	}
	if v := os.Getenv("CLAIMRAG_LLM_MODEL"); v != "" {
		c.Summary.Model = v
	}
	if v := os.Getenv("CLAIMRAG_SUMMARY_ENABLED"); v != "" {
		c.Summary.Enabled = parseBool(v)
	}
	if v := os.Getenv("CLAIMRAG_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CLAIMRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

// Validate checks the configuration and returns a config error describing
// the first problem found.
func (c *Config) Validate() error {
	budgets := []struct {
		name string
		b    Budget
	}{
		{"small", c.Chunking.Small},
		{"medium", c.Chunking.Medium},
		{"large", c.Chunking.Large},
	}
	for _, lb := range budgets {
		if lb.b.Min <= 0 || lb.b.Max < lb.b.Min {
			return invalid("chunking.%s budget must satisfy 0 < min <= max, got %d..%d", lb.name, lb.b.Min, lb.b.Max)
		}
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return invalid("chunking.overlap_ratio must be in [0, 1), got %g", c.Chunking.OverlapRatio)
	}
	switch strings.ToLower(c.Chunking.Tokenizer) {
	case "word", "cl100k_base":
	default:
		return invalid("chunking.tokenizer must be 'word' or 'cl100k_base', got %q", c.Chunking.Tokenizer)
	}

	if c.Retrieval.TopK < 1 {
		return invalid("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	switch c.Retrieval.StartLevel {
	case "small", "medium", "large":
	default:
		return invalid("retrieval.start_level must be small, medium or large, got %q", c.Retrieval.StartLevel)
	}
	if c.Retrieval.RerankPoolMultiplier < 1 || c.Retrieval.PoolMultiplier < 1 {
		return invalid("retrieval pool multipliers must be at least 1")
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "static", "ollama":
	default:
		return ragerrors.New(ragerrors.ErrCodeProviderUnsupported,
			fmt.Sprintf("embeddings.provider must be 'static', 'ollama' or empty (auto-detect), got %q", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.BatchSize < 1 {
		return invalid("embeddings.batch_size must be at least 1, got %d", c.Embeddings.BatchSize)
	}

	switch strings.ToLower(c.Summary.Provider) {
	case "ollama", "truncate":
	default:
		return ragerrors.New(ragerrors.ErrCodeProviderUnsupported,
			fmt.Sprintf("summary.provider must be 'ollama' or 'truncate', got %q", c.Summary.Provider), nil)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return ragerrors.ConfigError(fmt.Sprintf(format, args...), nil)
}

// DataDir returns the storage directory for the project rooted at dir.
func (c *Config) DataDir(dir string) string {
	if filepath.IsAbs(c.Storage.DataDir) {
		return c.Storage.DataDir
	}
	return filepath.Join(dir, c.Storage.DataDir)
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
