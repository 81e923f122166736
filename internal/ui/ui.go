// Package ui renders index build progress: a bubbletea view for
// interactive terminals and plain lines for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/Aman-CERP/claimrag/internal/output"
)

// Stage is a phase of building a claim index.
type Stage int

const (
	StageChunking Stage = iota
	StageEmbedding
	StageSummarizing
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageChunking:
		return "Chunking"
	case StageEmbedding:
		return "Embedding"
	case StageSummarizing:
		return "Summarizing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag used in plain output.
func (s Stage) Icon() string {
	switch s {
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StageSummarizing:
		return "SUMMARY"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// CompletionStats summarizes a finished build.
type CompletionStats struct {
	DocumentID     string
	Sections       int
	Chunks         int
	Summaries      int
	SummaryModel   string
	EmbeddingModel string
	Duration       time.Duration
}

// Renderer displays build progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, typically the source file.
	Title string
}

// NewRenderer returns the TUI renderer for interactive terminals and the
// plain renderer for pipes, CI and ForcePlain.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !output.IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
