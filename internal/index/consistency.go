package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/claimrag/internal/store"
)

// InconsistencyType categorizes a drift between the chunk collection and
// the keyword index.
type InconsistencyType int

const (
	// InconsistencyOrphanKeyword is a keyword entry with no chunk record.
	InconsistencyOrphanKeyword InconsistencyType = iota
	// InconsistencyMissingKeyword is a chunk record absent from the
	// keyword index.
	InconsistencyMissingKeyword
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanKeyword:
		return "orphan_keyword"
	case InconsistencyMissingKeyword:
		return "missing_keyword"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected drift.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunk records compared.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no drift was found.
func (r *CheckResult) Consistent() bool { return len(r.Inconsistencies) == 0 }

// ConsistencyChecker compares the chunk collection, which is the source
// of truth, with its keyword mirror. The two drift apart when a build is
// interrupted between the vector write and the keyword write.
type ConsistencyChecker struct {
	collection store.Collection
	keyword    *store.KeywordIndex
}

func NewConsistencyChecker(coll store.Collection, keyword *store.KeywordIndex) *ConsistencyChecker {
	return &ConsistencyChecker{collection: coll, keyword: keyword}
}

// Check lists every drift. Results are sorted by chunk id.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	records, err := c.collection.Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	keywordIDs, err := c.keyword.AllIDs(ctx)
	if err != nil {
		return nil, err
	}

	inCollection := make(map[string]bool, len(records))
	for _, r := range records {
		inCollection[r.ID] = true
	}
	inKeyword := make(map[string]bool, len(keywordIDs))
	for _, id := range keywordIDs {
		inKeyword[id] = true
	}

	var issues []Inconsistency
	for _, id := range keywordIDs {
		if !inCollection[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanKeyword, ChunkID: id})
		}
	}
	for _, r := range records {
		if !inKeyword[r.ID] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingKeyword, ChunkID: r.ID})
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ChunkID < issues[j].ChunkID })

	return &CheckResult{
		Checked:         len(records),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphan keyword entries and re-indexes missing ones from
// the collection's records.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphans []string
	missing := make(map[string]bool)
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanKeyword:
			orphans = append(orphans, issue.ChunkID)
		case InconsistencyMissingKeyword:
			missing[issue.ChunkID] = true
		}
	}

	if len(orphans) > 0 {
		if err := c.keyword.Delete(ctx, orphans); err != nil {
			return err
		}
		slog.Info("keyword_orphans_deleted", slog.Int("count", len(orphans)))
	}

	if len(missing) == 0 {
		return nil
	}
	records, err := c.collection.Get(ctx, nil)
	if err != nil {
		return err
	}
	var docs []store.KeywordDoc
	for _, r := range records {
		if !missing[r.ID] {
			continue
		}
		docs = append(docs, store.KeywordDoc{
			ID:        r.ID,
			Text:      r.Document,
			Level:     store.StringValue(r.Metadata, KeyLevel),
			SectionID: store.StringValue(r.Metadata, KeySectionID),
		})
	}
	if err := c.keyword.Index(ctx, docs); err != nil {
		return err
	}
	slog.Info("keyword_missing_reindexed", slog.Int("count", len(docs)))
	return nil
}

// QuickCheck compares counts only.
func (c *ConsistencyChecker) QuickCheck() bool {
	records, keyword := c.collection.Count(), c.keyword.Count()
	if records != keyword {
		slog.Debug("index_counts_mismatch",
			slog.Int("records", records),
			slog.Int("keyword", keyword))
		return false
	}
	return true
}
