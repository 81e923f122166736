package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *Writer)
		want  []string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Searching claim") }, []string{"🔍", "Searching claim"}},
		{"success", func(w *Writer) { w.Success("Index built") }, []string{"✅", "Index built"}},
		{"warning", func(w *Writer) { w.Warningf("%d chunks skipped", 2) }, []string{"⚠️", "2 chunks skipped"}},
		{"error", func(w *Writer) { w.Error("Ollama unreachable") }, []string{"❌", "Ollama unreachable"}},
		{"indented", func(w *Writer) { w.Statusf("", "section %d", 3) }, []string{"   section 3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.print(New(buf))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestNew_BufferIsPlain(t *testing.T) {
	// Given a writer over a buffer, which is not a terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When printing a header
	w.Header("Results")

	// Then no escape sequences are written
	assert.False(t, w.Colored())
	assert.Equal(t, "Results\n", buf.String())
	assert.False(t, IsTTY(buf))
}

func TestWriter_KeyValuesAligns(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).KeyValues([]KV{{"chunks", "7"}, {"summaries", "6"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  chunks     7", lines[0])
	assert.Equal(t, "  summaries  6", lines[1])
}

func TestWriter_Results(t *testing.T) {
	// Given a merged, boosted result and a plain one
	buf := &bytes.Buffer{}
	results := []Result{
		{ID: "section_1_small_0", Score: 0.65, Rank: 1.15, Tags: []string{"merged x2"}, Text: "line one\nline two\nline three\nline four"},
		{ID: "section_2_small_4", Score: 0.85, Rank: 0.85, Text: "invoice\n\n"},
	}

	// When rendering with two snippet lines
	New(buf).Results(`2 results for "collision"`, results, 2)

	// Then ranks appear only where they differ and snippets are cut
	out := buf.String()
	assert.Contains(t, out, "1. section_1_small_0 (score 0.650, rank 1.150) [merged x2]")
	assert.Contains(t, out, "2. section_2_small_4 (score 0.850)")
	assert.Contains(t, out, "line two")
	assert.NotContains(t, out, "line three")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(map[string]int{"chunks": 7}))

	assert.Equal(t, "{\n  \"chunks\": 7\n}\n", buf.String())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Snippet("a\nb\nc", 2))
	assert.Equal(t, []string{"a"}, Snippet("a\n \n", 5))
	assert.Equal(t, []string{"a", "b", "c"}, Snippet("a\nb\nc", 0))
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Newline()

	assert.Equal(t, "\n", buf.String())
}
