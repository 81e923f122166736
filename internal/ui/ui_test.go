package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Stages and renderer selection
// ============================================================================

func TestStage_NamesAndIcons(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageChunking, "Chunking", "CHUNK"},
		{StageEmbedding, "Embedding", "EMBED"},
		{StageSummarizing, "Summarizing", "SUMMARY"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestNewRenderer_PlainForBuffers(t *testing.T) {
	r := NewRenderer(Config{Output: &bytes.Buffer{}})

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(Config{Output: &bytes.Buffer{}})

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	assert.True(t, DetectCI())
}

// ============================================================================
// ProgressTracker
// ============================================================================

func TestProgressTracker_StageTransitions(t *testing.T) {
	// Given a tracker partway through embedding
	p := NewProgressTracker()
	p.Apply(ProgressEvent{Stage: StageEmbedding, Current: 3, Total: 12})
	assert.InDelta(t, 0.25, p.Progress(), 1e-9)

	// When summarizing starts and a late embedding event arrives
	p.Apply(ProgressEvent{Stage: StageSummarizing, Current: 0, Total: 5})
	p.Apply(ProgressEvent{Stage: StageEmbedding, Current: 12, Total: 12})

	// Then the late event is ignored and the embedding stage is timed
	s := p.Stats()
	assert.Equal(t, StageSummarizing, s.Stage)
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 5, s.Total)
	assert.Contains(t, p.Timings(), StageChunking)
	assert.Contains(t, p.Timings(), StageEmbedding)
}

func TestProgressTracker_ProgressBounds(t *testing.T) {
	p := NewProgressTracker()
	assert.Zero(t, p.Progress())

	p.Apply(ProgressEvent{Stage: StageSummarizing, Current: 9, Total: 6})
	assert.Equal(t, 1.0, p.Progress())

	p.Apply(ProgressEvent{Stage: StageComplete})
	assert.Equal(t, 1.0, p.Progress())
}

// ============================================================================
// PlainRenderer
// ============================================================================

func TestPlainRenderer_PrintsStageChangesAndCompletion(t *testing.T) {
	// Given a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(Config{Output: buf})
	require.NoError(t, r.Start(context.Background()))

	// When a build reports many small steps
	r.UpdateProgress(ProgressEvent{Stage: StageChunking, Message: "claim.txt"})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 0, Total: 6})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 6, Total: 6})
	for i := 1; i <= 5; i++ {
		r.UpdateProgress(ProgressEvent{Stage: StageSummarizing, Current: i, Total: 6})
	}
	r.UpdateProgress(ProgressEvent{Stage: StageSummarizing, Current: 5, Total: 5})
	r.Complete(CompletionStats{DocumentID: "doc-1", Chunks: 6, Summaries: 5, Duration: 1200 * time.Millisecond})
	require.NoError(t, r.Stop())

	// Then only stage starts and finishes are printed
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"[CHUNK] claim.txt",
		"[EMBED] 0/6",
		"[EMBED] 6/6",
		"[SUMMARY] 1/6",
		"[SUMMARY] 5/5",
		"[DONE] doc-1: 6 chunks, 5 summaries in 1.2s",
	}, lines)
	assert.NotContains(t, buf.String(), "\x1b[")
}

// ============================================================================
// TUI model
// ============================================================================

func TestBuildModel_View(t *testing.T) {
	// Given a model halfway through embedding
	tracker := NewProgressTracker()
	tracker.Apply(ProgressEvent{Stage: StageEmbedding, Current: 3, Total: 6})
	m := newBuildModel(tracker, "claim.txt")
	m.styles = NoColorStyles()

	// When rendering
	view := m.View()

	// Then the header, stages and counts are shown
	assert.Contains(t, view, "claimrag index • claim.txt")
	assert.Contains(t, view, "● Chunking")
	assert.Contains(t, view, "Embedding")
	assert.Contains(t, view, "○ Summarizing")
	assert.Contains(t, view, "3 / 6")
	assert.Contains(t, view, "50%")
}

func TestBuildModel_CompleteQuits(t *testing.T) {
	m := newBuildModel(NewProgressTracker(), "")
	m.styles = NoColorStyles()

	_, cmd := m.Update(completeMsg(CompletionStats{DocumentID: "doc-1", Chunks: 6, Summaries: 5}))

	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Index built")
	assert.Contains(t, view, "doc-1")
	assert.Contains(t, view, "Summaries:")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "1m 5s", formatDuration(65*time.Second))
}
