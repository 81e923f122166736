package chunk

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimrag/internal/document"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/tokenize"
)

// sentence is 9 word-tokenizer tokens.
func sentence(n int) string {
	return fmt.Sprintf("Sentence %d describes the claim event in detail.", n)
}

// paragraphs builds count paragraphs of perPara sentences each.
func paragraphs(count, perPara int) string {
	var paras []string
	n := 1
	for p := 0; p < count; p++ {
		var ss []string
		for s := 0; s < perPara; s++ {
			ss = append(ss, sentence(n))
			n++
		}
		paras = append(paras, strings.Join(ss, " "))
	}
	return strings.Join(paras, "\n\n")
}

func newTestSegmenter(t *testing.T, budgets map[Level]Budget) *Segmenter {
	t.Helper()
	opts := DefaultOptions()
	for l, b := range budgets {
		opts.Budgets[l] = b
	}
	seg, err := NewSegmenter(tokenize.NewWordTokenizer(), opts)
	require.NoError(t, err)
	return seg
}

// ============================================================================
// Text helpers
// ============================================================================

func TestNormalizeText(t *testing.T) {
	in := "  Hello   world \t\r\n\n\n  Next\tpara  \n line \n\n"

	assert.Equal(t, "Hello world\n\nNext para\nline", NormalizeText(in))
	assert.Equal(t, "", NormalizeText(" \n\t\n "))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two!  Three?\nFour")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four"}, got)

	assert.Equal(t, []string{"3.5 million dollars."}, splitSentences("3.5 million dollars."))
	assert.Empty(t, splitSentences("   "))
}

func TestSplitPseudoSections(t *testing.T) {
	text := "Intro para.\n\nPolice Report\nThe officer noted.\n\nlower start\nmore\n\nNo newline after this header"

	got := splitPseudoSections(text)

	assert.Equal(t, []string{
		"Intro para.",
		"Police Report\nThe officer noted.\n\nlower start\nmore\n\nNo newline after this header",
	}, got)
}

func TestOverlapTokens(t *testing.T) {
	assert.Equal(t, 3, overlapTokens(15, 0.2))
	assert.Equal(t, 4, overlapTokens(18, 0.2))
	assert.Equal(t, 1, overlapTokens(1, 0.2))
	assert.Equal(t, 0, overlapTokens(0, 0.2))
	assert.Equal(t, 0, overlapTokens(10, 0))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("medium")
	require.NoError(t, err)
	assert.Equal(t, Medium, l)

	_, err = ParseLevel("huge")
	assert.Error(t, err)
}

// ============================================================================
// Segmenter
// ============================================================================

func TestSegment_SmallClosesAtTargetAndSeedsOverlap(t *testing.T) {
	// Given: a small budget of 10..20 (target 15) and four 9-token sentences
	seg := newTestSegmenter(t, map[Level]Budget{Small: {Min: 10, Max: 20}})
	text := strings.Join([]string{sentence(1), sentence(2), sentence(3), sentence(4)}, " ")

	// When: segmenting at the small level
	chunks, err := seg.Segment(text, Small, map[string]any{"section_id": "section_1"})

	// Then: chunks close at target, before overflow, and carry the tail
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, sentence(1)+" "+sentence(2), chunks[0].Text)
	assert.Equal(t, "event in detail. "+sentence(3), chunks[1].Text)
	assert.Equal(t, "in detail. "+sentence(4), chunks[2].Text)

	assert.Equal(t, []int{18, 13, 12}, []int{chunks[0].Tokens, chunks[1].Tokens, chunks[2].Tokens})
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, Small, c.Level)
		assert.Equal(t, "section_1", c.Metadata["section_id"])
	}
}

func TestSegment_MediumJoinsWithBlankLineAndFallsBackToSentences(t *testing.T) {
	// Given: one paragraph of three sentences (27 tokens) over a max of 20
	seg := newTestSegmenter(t, map[Level]Budget{Medium: {Min: 10, Max: 20}})
	text := strings.Join([]string{sentence(1), sentence(2), sentence(3)}, " ")

	chunks, err := seg.Segment(text, Medium, nil)

	// Then: the paragraph is split into sentences joined by blank lines
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, sentence(1)+"\n\n"+sentence(2), chunks[0].Text)
	assert.Equal(t, "event in detail.\n\n"+sentence(3), chunks[1].Text)
	assert.NotNil(t, chunks[0].Metadata)
}

func TestSegment_LargeSplitsOnPseudoSections(t *testing.T) {
	seg := newTestSegmenter(t, map[Level]Budget{Large: {Min: 10, Max: 20}})
	text := "Opening Notes\n" + sentence(1) + "\n\nPolice Report\n" + sentence(2)

	chunks, err := seg.Segment(text, Large, nil)

	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "Opening Notes\n"+sentence(1)))
	assert.Contains(t, chunks[len(chunks)-1].Text, "Police Report\n"+sentence(2))
}

func TestSegment_EmptyTextYieldsNoChunks(t *testing.T) {
	seg := newTestSegmenter(t, nil)

	for _, level := range Levels {
		chunks, err := seg.Segment(" \n\n\t ", level, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks, level)
	}
}

func TestSegment_InvalidLevel(t *testing.T) {
	seg := newTestSegmenter(t, nil)

	_, err := seg.Segment("text", Level("huge"), nil)
	assert.Error(t, err)
}

func TestSegment_EmitsLeftoverOverlapSeed(t *testing.T) {
	// Given: two sentences that close exactly at target
	seg := newTestSegmenter(t, map[Level]Budget{Small: {Min: 10, Max: 20}})

	chunks, err := seg.Segment(sentence(1)+" "+sentence(2), Small, nil)

	// Then: the leftover overlap seed is still emitted as the final chunk
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, sentence(1)+" "+sentence(2), chunks[0].Text)
	assert.Equal(t, "event in detail.", chunks[1].Text)
	assert.Equal(t, 4, chunks[1].Tokens)
}

func TestSegment_SeedOnlyBufferAbsorbsNextSegment(t *testing.T) {
	// Given: a closed chunk followed by an 18-token sentence that does not
	// fit beside the 4-token overlap seed under a max of 20
	seg := newTestSegmenter(t, map[Level]Budget{Small: {Min: 10, Max: 20}})
	long := strings.Repeat("word ", 16) + "end."
	text := sentence(1) + " " + sentence(2) + " " + long

	chunks, err := seg.Segment(text, Small, nil)

	// Then: the seed is not emitted on its own mid-section; it opens the
	// chunk holding the long sentence
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "event in detail. "+long, chunks[1].Text)
	assert.Equal(t, 22, chunks[1].Tokens)
	assert.Equal(t, seg.OverlapTail(chunks[1].Text), chunks[2].Text)
}

// Budget property: chunks stay within max, except the ones that absorbed a
// single segment larger than max on its own, or a segment that only fits
// once the previous chunk's overlap seed is set aside.
func TestSegment_BudgetProperty(t *testing.T) {
	seg := newTestSegmenter(t, nil)
	oversized := strings.Repeat("word ", 260) + "end."
	text := paragraphs(60, 6) + "\n\n" + oversized + "\n\n" + paragraphs(10, 6)

	for _, level := range Levels {
		chunks, err := seg.Segment(text, level, nil)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		max := seg.Budget(level).Max
		for i, c := range chunks {
			if c.Tokens <= max || strings.Contains(c.Text, oversized) {
				continue
			}
			require.Positive(t, i, "level %s: first chunk is over budget", level)
			tail := seg.OverlapTail(chunks[i-1].Text)
			require.True(t, strings.HasPrefix(c.Text, tail))
			rest := strings.TrimSpace(strings.TrimPrefix(c.Text, tail))
			assert.LessOrEqual(t, seg.Tokenizer().Count(rest), max,
				"level %s chunk %d is over budget beyond its overlap seed", level, c.Index)
		}
	}
}

// Overlap property: chunk i+1 starts with the decoded tail of chunk i.
func TestSegment_OverlapProperty(t *testing.T) {
	seg := newTestSegmenter(t, nil)
	text := paragraphs(80, 5)

	for _, level := range Levels {
		chunks, err := seg.Segment(text, level, nil)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1, level)

		for i := 0; i+1 < len(chunks); i++ {
			tail := seg.OverlapTail(chunks[i].Text)
			require.NotEmpty(t, tail)
			assert.True(t, strings.HasPrefix(chunks[i+1].Text, tail),
				"level %s: chunk %d does not start with tail %q of chunk %d", level, i+1, tail, i)
		}
	}
}

// Coverage property: removing each chunk's leading overlap and joining
// rebuilds the normalized text.
func TestSegment_CoverageProperty(t *testing.T) {
	seg := newTestSegmenter(t, nil)
	text := paragraphs(50, 7)

	for _, level := range Levels {
		chunks, err := seg.Segment(text, level, nil)
		require.NoError(t, err)

		rebuilt := []string{chunks[0].Text}
		for i := 1; i < len(chunks); i++ {
			tail := seg.OverlapTail(chunks[i-1].Text)
			rebuilt = append(rebuilt, strings.TrimPrefix(chunks[i].Text, tail))
		}

		assert.Equal(t,
			strings.Fields(NormalizeText(text)),
			strings.Fields(strings.Join(rebuilt, " ")),
			"level %s", level)
	}
}

func TestNewSegmenter_Validates(t *testing.T) {
	_, err := NewSegmenter(nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Budgets[Small] = Budget{Min: 300, Max: 200}
	_, err = NewSegmenter(tokenize.NewWordTokenizer(), opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.OverlapRatio = 1
	_, err = NewSegmenter(tokenize.NewWordTokenizer(), opts)
	assert.Error(t, err)
}

// ============================================================================
// Assembler
// ============================================================================

func testDocument() *document.Document {
	return &document.Document{
		ID:      "doc-7",
		ClaimID: "88231",
		Sections: []document.Section{
			{ID: "section_1", Number: 1, Header: "Section 1 – Overview", Text: paragraphs(3, 4)},
			{ID: "section_2", Number: 2, Header: "Section 2 – Blank", Text: "  \n\n\t "},
			{ID: "section_3", Number: 3, Header: "Section 3 – Timeline", Text: "On 3 March 2025 at 08:20:05 the collision occurred.\n\n" + paragraphs(2, 3)},
		},
	}
}

func TestAssemble_StampsIdentityAndSkipsEmptySections(t *testing.T) {
	asm := NewAssembler(newTestSegmenter(t, nil))

	h, err := asm.Assemble(context.Background(), testDocument(), "", "")

	require.NoError(t, err)
	assert.Equal(t, "doc-7", h.DocumentID)
	assert.Equal(t, "88231", h.ClaimID)

	// Empty section_2 is absent and does not advance the counter
	require.Len(t, h.Sections, 2)
	assert.Equal(t, "section_1", h.Sections[0].SectionID)
	assert.Equal(t, 1, h.Sections[0].SectionNumber)
	assert.Equal(t, "section_3", h.Sections[1].SectionID)
	assert.Equal(t, 2, h.Sections[1].SectionNumber)
	assert.Equal(t, "doc-7", h.Sections[1].ParentID)
	assert.Empty(t, h.SectionChunks("section_2", Small))

	for _, level := range Levels {
		for _, c := range h.Level(level) {
			assert.Equal(t, fmt.Sprintf("%s_%s_%d", c.SectionID, level, c.Index), c.ID)
			assert.Equal(t, c.SectionID, c.ParentID)
			assert.Equal(t, "doc-7", c.DocumentID)
			assert.Equal(t, "88231", c.ClaimID)
			assert.Equal(t, c.SectionID, c.Metadata["section_id"])
			assert.Equal(t, "doc-7", c.Metadata["parent_id"])
		}
	}

	for _, s := range h.Sections {
		for _, level := range Levels {
			assert.Equal(t, len(h.SectionChunks(s.SectionID, level)), s.ChunkCounts[level])
		}
	}
	assert.Equal(t, "Section 3 – Timeline", h.Header("section_3"))
}

func TestAssemble_StampsChunkTimestamp(t *testing.T) {
	asm := NewAssembler(newTestSegmenter(t, nil))

	h, err := asm.Assemble(context.Background(), testDocument(), "", "")

	require.NoError(t, err)
	first := h.SectionChunks("section_3", Small)[0]
	assert.Equal(t, "2025-03-03T08:20:05Z", first.Metadata["timestamp"])
	_, has := h.SectionChunks("section_1", Small)[0].Metadata["timestamp"]
	assert.False(t, has)
}

func TestAssemble_DefaultsAndOverrides(t *testing.T) {
	asm := NewAssembler(newTestSegmenter(t, nil))
	doc := &document.Document{Text: "Plain text without sections."}

	h, err := asm.Assemble(context.Background(), doc, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultDocumentID, h.DocumentID)
	assert.Equal(t, DefaultClaimID, h.ClaimID)
	require.Len(t, h.Sections, 1)
	assert.Equal(t, "section_1_small_0", h.Level(Small)[0].ID)

	h, err = asm.Assemble(context.Background(), testDocument(), "override-doc", "override-claim")
	require.NoError(t, err)
	assert.Equal(t, "override-doc", h.Level(Medium)[0].DocumentID)
	assert.Equal(t, "override-claim", h.Level(Large)[0].ClaimID)
}

type panickyTokenizer struct{ tokenize.Tokenizer }

func (panickyTokenizer) Count(string) int { panic("tokenizer backend crashed") }

func TestAssemble_FailureAbortsWholeDocument(t *testing.T) {
	seg, err := NewSegmenter(panickyTokenizer{tokenize.NewWordTokenizer()}, DefaultOptions())
	require.NoError(t, err)

	h, err := NewAssembler(seg).Assemble(context.Background(), testDocument(), "", "")

	require.Error(t, err)
	assert.Nil(t, h)
	assert.Equal(t, ragerrors.ErrCodeChunkingFailed, ragerrors.GetCode(err))
	assert.Contains(t, err.Error(), "section_1")
}

func TestAssemble_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAssembler(newTestSegmenter(t, nil)).Assemble(ctx, testDocument(), "", "")

	assert.Equal(t, ragerrors.ErrCodeChunkingFailed, ragerrors.GetCode(err))
}
