package retrieve

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/Aman-CERP/claimrag/internal/store"
)

// Default boosts: per matched time token, and once for a referenced
// section.
const (
	DefaultTimeBoost    = 1.0
	DefaultSectionBoost = 2.0
)

var (
	timeTokenRegex  = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	dateTokenRegex  = regexp.MustCompile(`\b\d{1,2}\s+[A-Za-z]{3,9}\s+\d{4}\b`)
	sectionRefRegex = regexp.MustCompile(`(?i)\bsection\s+(\d+)\b`)
)

// ExtractTimeTokens returns the distinct clock times (H:MM, H:MM:SS) and
// "D Month YYYY" dates in query, times first.
func ExtractTimeTokens(query string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{timeTokenRegex, dateTokenRegex} {
		for _, t := range re.FindAllString(query, -1) {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ExtractSectionIDs maps "section N" references in query to section_N ids,
// deduplicated in order of first mention.
func ExtractSectionIDs(query string) []string {
	var ids []string
	for _, m := range sectionRefRegex.FindAllStringSubmatch(query, -1) {
		id := "section_" + m[1]
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// NormalizeSectionID accepts "3", "section 3" and "section_3" and returns
// the section_N form used in metadata.
func NormalizeSectionID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "section")
	s = strings.TrimLeft(s, " _-")
	return "section_" + s
}

// Reranker reorders candidates for a query. Implementations never mutate
// their input.
type Reranker interface {
	Rerank(query string, candidates []Candidate) []Candidate
}

// TimeReranker promotes candidates whose text contains the clock times or
// dates mentioned in the query.
type TimeReranker struct {
	Boost float64
}

var _ Reranker = TimeReranker{}

// Rerank sets each candidate's time boost to Boost times the number of
// query tokens found verbatim in its text or its chunk_text metadata, then
// stable-sorts by score plus time boost. When the query has no tokens or
// nothing matches, the order and scores are left as they were.
func (r TimeReranker) Rerank(query string, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	tokens := ExtractTimeTokens(query)
	if len(tokens) == 0 {
		slog.Debug("time_rerank_skipped", slog.String("reason", "no time tokens"))
		return candidates
	}
	slog.Debug("time_rerank", slog.Any("tokens", tokens))

	out := make([]Candidate, len(candidates))
	matched := false
	for i, c := range candidates {
		c = c.clone()
		combined := c.Text + " " + store.StringValue(c.Metadata, keyChunkText)
		c.TimeMatches = 0
		for _, t := range tokens {
			if strings.Contains(combined, t) {
				c.TimeMatches++
			}
		}
		c.TimeBoost = r.Boost * float64(c.TimeMatches)
		matched = matched || c.TimeMatches > 0
		out[i] = c
	}
	if !matched {
		return out
	}
	sortDesc(out, func(c Candidate) float64 { return c.Score + c.TimeBoost })
	return out
}

// SectionReranker promotes candidates from sections the query names.
type SectionReranker struct {
	Boost float64
}

var _ Reranker = SectionReranker{}

// Rerank sets the section boost to Boost for candidates whose section_id
// (or section) metadata is one of the referenced sections, then
// stable-sorts by score plus section boost. A time boost from an earlier
// pass does not count here. When the query names no section or no
// candidate is in one, the order and scores are left as they were.
func (r SectionReranker) Rerank(query string, candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	ids := ExtractSectionIDs(query)
	if len(ids) == 0 {
		slog.Debug("section_rerank_skipped", slog.String("reason", "no section references"))
		return candidates
	}
	slog.Debug("section_rerank", slog.Any("sections", ids))

	out := make([]Candidate, len(candidates))
	matched := false
	for i, c := range candidates {
		c = c.clone()
		sid := c.SectionID()
		if sid == "" {
			sid = store.StringValue(c.Metadata, keySection)
		}
		c.SectionMatch = slices.Contains(ids, sid)
		c.SectionBoost = 0
		if c.SectionMatch {
			c.SectionBoost = r.Boost
		}
		matched = matched || c.SectionMatch
		out[i] = c
	}
	if !matched {
		return out
	}
	sortDesc(out, func(c Candidate) float64 { return c.Score + c.SectionBoost })
	return out
}

// sortDesc orders by key descending, keeping the relative order of ties.
func sortDesc(cs []Candidate, key func(Candidate) float64) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		ka, kb := key(a), key(b)
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		}
		return 0
	})
}
