package retrieve

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// AutoMerger joins candidates that sit next to each other in the same
// section into one result.
type AutoMerger struct{}

// Merge groups candidates by section, orders each group by position, and
// merges runs whose positions advance by at most one. A run of one is
// returned as is. A merged result takes its id and metadata from the
// lowest-position constituent and averages scores and boosts. Results are
// sorted by score, ignoring rerank boosts, and cut to maxResults when it
// is positive.
func (AutoMerger) Merge(candidates []Candidate, maxResults int) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]Candidate)
	for _, c := range candidates {
		key := c.SectionID()
		if _, ok := c.Metadata[keySectionID]; !ok {
			key = unknownSection
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	var out []Candidate
	for _, key := range order {
		group := groups[key]
		slices.SortStableFunc(group, func(a, b Candidate) int {
			return a.Position() - b.Position()
		})
		out = append(out, mergeAdjacent(group)...)
	}

	sortDesc(out, func(c Candidate) float64 { return c.Score })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}

	slog.Debug("auto_merge",
		slog.Int("input", len(candidates)),
		slog.Int("output", len(out)))
	return out
}

// mergeAdjacent walks a position-sorted group and absorbs each next
// candidate while it shares the section and its position is at most one
// past the running maximum.
func mergeAdjacent(group []Candidate) []Candidate {
	var out []Candidate
	for i := 0; i < len(group); {
		run := []Candidate{group[i]}
		pos := group[i].Position()
		j := i + 1
		for ; j < len(group); j++ {
			next := group[j]
			if next.Position()-pos > 1 || next.SectionID() != group[i].SectionID() {
				break
			}
			run = append(run, next)
			pos = next.Position()
		}

		if len(run) == 1 {
			out = append(out, run[0])
		} else {
			out = append(out, combine(run))
		}
		i = j
	}
	return out
}

func combine(run []Candidate) Candidate {
	var (
		texts, ids   []string
		score        float64
		timeBoost    float64
		sectBoost    float64
		timeMatches  int
		sectionMatch bool
	)
	for _, c := range run {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
		ids = append(ids, c.ID)
		score += c.Score
		timeBoost += c.TimeBoost
		sectBoost += c.SectionBoost
		timeMatches = max(timeMatches, c.TimeMatches)
		sectionMatch = sectionMatch || c.SectionMatch
	}
	n := float64(len(run))
	return Candidate{
		ID:           run[0].ID,
		Text:         strings.Join(texts, "\n\n"),
		Metadata:     maps.Clone(run[0].Metadata),
		Score:        score / n,
		TimeMatches:  timeMatches,
		TimeBoost:    timeBoost / n,
		SectionMatch: sectionMatch,
		SectionBoost: sectBoost / n,
		Merged:       true,
		MergedCount:  len(run),
		MergedIDs:    ids,
	}
}
