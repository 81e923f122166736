package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

const claimReport = `INSURANCE CLAIM REPORT

Claim #88231 filed by Jane Roe (jane.roe@example.com, 555-123-4567).

Section 1 – Incident Overview
The insured vehicle was struck at an intersection.
Police attended the scene.

A tow truck removed the vehicle.

Section 3 – Detailed Chronological Timeline of Events
3 March 2025 at 08:20:05 the collision occurred.
2025-03-04 09:15:00 adjuster assigned.
Estimate received: $4,250.00.
`

// ============================================================================
// ParseSections
// ============================================================================

func TestParseSections_ExplicitAndTitleHeaders(t *testing.T) {
	sections := ParseSections(claimReport)

	require.Len(t, sections, 3)

	// First-line header becomes section_0
	assert.Equal(t, "section_0", sections[0].ID)
	assert.Equal(t, "INSURANCE CLAIM REPORT", sections[0].Header)
	assert.Contains(t, sections[0].Text, "Claim #88231")

	// Explicit numbers are kept, including gaps
	assert.Equal(t, "section_1", sections[1].ID)
	assert.Equal(t, 1, sections[1].Number)
	assert.Equal(t, "Section 1 – Incident Overview", sections[1].Header)
	assert.Equal(t, "section_3", sections[2].ID)
	assert.Equal(t, 3, sections[2].Number)
}

func TestParseSections_PreservesParagraphBreaks(t *testing.T) {
	sections := ParseSections(claimReport)

	assert.Equal(t,
		"The insured vehicle was struck at an intersection.\nPolice attended the scene.\n\nA tow truck removed the vehicle.",
		sections[1].Text)
}

func TestParseSections_NumberedHeadersAreSequential(t *testing.T) {
	text := "Intro line that is ordinary prose.\n\n1. Parties\nThe insurer and the insured.\n2) Coverage\nComprehensive.\nsection 9: Notes\nNone."

	sections := ParseSections(text)

	require.Len(t, sections, 4)
	assert.Equal(t, "section_0", sections[0].ID)
	assert.Equal(t, "Preamble", sections[0].Header)
	assert.Equal(t, []string{"section_1", "section_2", "section_3"},
		[]string{sections[1].ID, sections[2].ID, sections[3].ID})
	assert.Equal(t, "section 9: Notes", sections[3].Header)
}

func TestParseSections_NoHeaders(t *testing.T) {
	sections := ParseSections("just some lower case prose.\nand another line.")

	require.Len(t, sections, 1)
	assert.Equal(t, "section_1", sections[0].ID)
	assert.Equal(t, "Main Content", sections[0].Header)
	assert.Equal(t, "just some lower case prose.\nand another line.", sections[0].Text)
}

func TestParseSections_HeaderWithoutBodyIsDropped(t *testing.T) {
	sections := ParseSections("Section 1 – Empty\n\nSection 2 – Full\nBody text here.")

	require.Len(t, sections, 1)
	assert.Equal(t, "section_2", sections[0].ID)
}

func TestIsTitleAndIsUpper(t *testing.T) {
	assert.True(t, isTitle("Claim Summary"))
	assert.True(t, isTitle("Section 3: Timeline"))
	assert.False(t, isTitle("Claim summary"))
	assert.False(t, isTitle("McDonald Report"))
	assert.False(t, isTitle("1234"))

	assert.True(t, isUpper("POLICY DETAILS 2025"))
	assert.False(t, isUpper("Policy"))
	assert.False(t, isUpper("2025"))
}

// ============================================================================
// Metadata
// ============================================================================

func TestExtractMetadata(t *testing.T) {
	meta := ExtractMetadata(claimReport)

	assert.Equal(t, "88231", meta.ClaimID)
	require.Len(t, meta.Timestamps, 2)
	assert.Equal(t, "2025-03-03T08:20:05Z", meta.FirstTimestamp)
	assert.Equal(t, "2025-03-04T09:15:00Z", meta.LastTimestamp)

	require.NotNil(t, meta.Entities)
	assert.Equal(t, []string{"$4,250.00"}, meta.Entities.Money)
	assert.Equal(t, []string{"jane.roe@example.com"}, meta.Entities.Emails)
	assert.Equal(t, []string{"555-123-4567"}, meta.Entities.Phones)
}

func TestParseTimestamp_Formats(t *testing.T) {
	tests := []struct {
		line string
		want time.Time
	}{
		{"logged 2024-12-10 14:30:00 by agent", time.Date(2024, 12, 10, 14, 30, 0, 0, time.UTC)},
		{"due 2024-12-10", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC)},
		{"signed 12/10/2024", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC)},
		{"on 3 March 2025, 08:20 the call", time.Date(2025, 3, 3, 8, 20, 0, 0, time.UTC)},
		{"on 14 Feb 2025", time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.line)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, ok := ParseTimestamp("no dates here")
	assert.False(t, ok)
}

func TestExtractClaimID_Patterns(t *testing.T) {
	assert.Equal(t, "42", ExtractClaimID("Case: 42 reopened"))
	assert.Equal(t, "7", ExtractClaimID("policy ID: 7"))
	assert.Equal(t, "", ExtractClaimID("nothing"))
}

// ============================================================================
// Loading
// ============================================================================

func TestNew_UsesDetectedClaimID(t *testing.T) {
	doc := New("doc-1", "", claimReport)
	assert.Equal(t, "88231", doc.ClaimID)

	doc = New("doc-1", "override", claimReport)
	assert.Equal(t, "override", doc.ClaimID)

	s, ok := doc.Section("section_3")
	require.True(t, ok)
	assert.Contains(t, s.Header, "Timeline")
}

func TestLoadFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claim.txt")
	require.NoError(t, os.WriteFile(path, []byte(claimReport), 0o644))

	doc, err := LoadFile(path, "doc-1", "")

	require.NoError(t, err)
	assert.Equal(t, "claim.txt", doc.Metadata.FileName)
	assert.Len(t, doc.Sections, 3)
}

func TestLoadFile_Markdown(t *testing.T) {
	md := "Claim #99 intake notes.\n\n# Incident\n\nThe car was hit.\n\nA second paragraph.\n\n## Payments\n\n- $100.00 deductible\n- $900.00 payout\n"
	path := filepath.Join(t.TempDir(), "claim.md")
	require.NoError(t, os.WriteFile(path, []byte(md), 0o644))

	doc, err := LoadFile(path, "doc-md", "")

	require.NoError(t, err)
	assert.Equal(t, "99", doc.ClaimID)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "section_0", doc.Sections[0].ID)
	assert.Equal(t, "Incident", doc.Sections[1].Header)
	assert.Equal(t, "The car was hit.\n\nA second paragraph.", doc.Sections[1].Text)
	assert.Equal(t, "section_2", doc.Sections[2].ID)
	assert.Equal(t, "$100.00 deductible\n$900.00 payout", doc.Sections[2].Text)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"), "d", "")
	assert.Equal(t, ragerrors.ErrCodeFileNotFound, ragerrors.GetCode(err))

	path := filepath.Join(t.TempDir(), "claim.docx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = LoadFile(path, "d", "")
	assert.Equal(t, ragerrors.ErrCodeUnsupportedFormat, ragerrors.GetCode(err))
}

func TestParseMarkdown_ExplicitSectionHeadingsKeepTheirNumber(t *testing.T) {
	// Given: Markdown headings that carry their own section numbers
	md := "# Section 3 – Detailed Chronological Timeline of Events\n\nAt 08:20 the car was hit.\n\n" +
		"# Section 7 - Payments\n\nPayout approved.\n\n# Notes\n\nNone.\n"

	// When: parsing
	doc := ParseMarkdown("doc-md", "", []byte(md))

	// Then: explicit headings map to their own ids, others are numbered in order
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, "section_3", doc.Sections[0].ID)
	assert.Equal(t, 3, doc.Sections[0].Number)
	assert.Equal(t, "section_7", doc.Sections[1].ID)
	assert.Equal(t, "section_1", doc.Sections[2].ID)
}

// ============================================================================
// PDF page extraction
// ============================================================================

func TestCollectPages_SkipsUnreadablePages(t *testing.T) {
	// Given: three pages, the second of which fails to extract
	pages := map[int]string{1: "first page", 3: "third page"}
	text := func(i int) (string, bool, error) {
		if i == 2 {
			return "", true, errors.New("malformed content stream")
		}
		return pages[i], true, nil
	}

	// When: collecting the text
	content, n, err := collectPages("claim.pdf", 3, text)

	// Then: readable pages are kept and the broken one is skipped
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "first page\nthird page\n", content)
}

func TestCollectPages_AllPagesFailing(t *testing.T) {
	// Given: a PDF where no page can be extracted
	text := func(int) (string, bool, error) { return "", true, errors.New("bad font") }

	// When: collecting the text
	_, _, err := collectPages("claim.pdf", 2, text)

	// Then: the failure surfaces as a loader error
	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeUnsupportedFormat, ragerrors.GetCode(err))
	assert.Contains(t, err.Error(), "page 1")
}

func TestValidate_DuplicateSectionIDs(t *testing.T) {
	doc := &Document{Sections: []Section{{ID: "section_1"}, {ID: "section_1"}}}
	assert.Error(t, doc.Validate())
}
