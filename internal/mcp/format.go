package mcp

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as markdown for clients that show
// text rather than structured output.
func FormatResults(title, query string, results []ResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s for \"%s\"\n\n", title, query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r ResultOutput) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f", num, r.ID, r.Score)
	if r.RankScore != r.Score {
		fmt.Fprintf(sb, ", rank: %.2f", r.RankScore)
	}
	sb.WriteString(")\n")

	var facts []string
	if r.SectionID != "" {
		facts = append(facts, "**Section:** "+r.SectionID)
	}
	if r.Level != "" {
		facts = append(facts, "**Level:** "+r.Level)
	}
	if r.Timestamp != "" {
		facts = append(facts, "**Time:** "+r.Timestamp)
	}
	if len(facts) > 0 {
		sb.WriteString(strings.Join(facts, " | "))
		sb.WriteString("\n")
	}
	if r.MatchReason != "" {
		fmt.Fprintf(sb, "*%s*\n", r.MatchReason)
	}
	fmt.Fprintf(sb, "\n%s\n\n", quote(r.Text))
}

// quote renders text as a markdown blockquote so section headers inside
// chunks do not become document headings.
func quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// FormatStatus renders index_status as markdown.
func FormatStatus(st IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Claim Index Status\n\n")
	fmt.Fprintf(&sb, "- **Documents:** %s\n", strings.Join(st.Documents, ", "))
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", st.Chunks)
	fmt.Fprintf(&sb, "- **Summaries:** %d\n", st.Summaries)
	fmt.Fprintf(&sb, "- **Keyword documents:** %d\n", st.KeywordDocs)
	fmt.Fprintf(&sb, "- **Embeddings:** %s (%d dims)\n", st.EmbeddingModel, st.Dimensions)
	if st.LastBuild != "" {
		fmt.Fprintf(&sb, "- **Last build:** %s\n", st.LastBuild)
	}
	if st.IsStaticEmbedder {
		sb.WriteString("\nStatic embeddings are active; semantic matching is approximate. " +
			"Prefer `keyword: true` for exact terms.\n")
	}
	return sb.String()
}
