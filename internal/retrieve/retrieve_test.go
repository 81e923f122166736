package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// fakeEmbedder returns a fixed vector and can be told to fail.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                  { return 3 }
func (f *fakeEmbedder) ModelName() string                { return "fake" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }

// fakeCollection returns canned matches filtered by Where and records the
// last request.
type fakeCollection struct {
	matches []store.Match
	last    store.QueryRequest
	calls   int
}

func (f *fakeCollection) Name() string { return "fake_index" }

func (f *fakeCollection) Add(_ context.Context, _ []store.Record) error { return nil }

func (f *fakeCollection) Query(_ context.Context, req store.QueryRequest) ([]store.Match, error) {
	f.last = req
	f.calls++
	var out []store.Match
	for _, m := range f.matches {
		if !req.Where.Matches(m.Metadata) {
			continue
		}
		out = append(out, m)
		if len(out) == req.N {
			break
		}
	}
	return out, nil
}

func (f *fakeCollection) Get(_ context.Context, where store.Where) ([]store.Record, error) {
	var out []store.Record
	for _, m := range f.matches {
		if where.Matches(m.Metadata) {
			out = append(out, store.Record{ID: m.ID, Document: m.Document, Metadata: m.Metadata})
		}
	}
	return out, nil
}

func (f *fakeCollection) Count() int                    { return len(f.matches) }
func (f *fakeCollection) Reset(_ context.Context) error { return nil }
func (f *fakeCollection) Close() error                  { return nil }

func match(id, text, section string, pos int, score float32) store.Match {
	return store.Match{
		ID:       id,
		Document: text,
		Distance: 1 - score,
		Metadata: map[string]any{
			"chunk_id":       id,
			"level":          "small",
			"section_id":     section,
			"position_index": pos,
			"chunk_text":     text,
		},
	}
}

func cand(id, section string, pos int, score float64) Candidate {
	return Candidate{
		ID:       id,
		Text:     id + " text",
		Score:    score,
		Metadata: map[string]any{"section_id": section, "position_index": pos},
	}
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// ============================================================================
// Token extraction
// ============================================================================

func TestExtractTimeTokens(t *testing.T) {
	tokens := ExtractTimeTokens("what happened at 08:20:05 on 3 March 2025, and again at 9:15?")
	assert.Equal(t, []string{"08:20:05", "9:15", "3 March 2025"}, tokens)

	assert.Empty(t, ExtractTimeTokens("no times here"))
	assert.Equal(t, []string{"10:00"}, ExtractTimeTokens("10:00 then 10:00 again"))
}

func TestExtractSectionIDs(t *testing.T) {
	assert.Equal(t, []string{"section_3"}, ExtractSectionIDs("Summarize Section 3"))
	assert.Equal(t, []string{"section_2", "section_4"},
		ExtractSectionIDs("compare section 2 with SECTION 4 and section 2"))
	assert.Empty(t, ExtractSectionIDs("the sections are long"))
}

func TestNormalizeSectionID(t *testing.T) {
	tests := map[string]string{
		"3":          "section_3",
		"section 3":  "section_3",
		"Section_12": "section_12",
		" section-4": "section_4",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSectionID(in), in)
	}
}

// ============================================================================
// Reranking
// ============================================================================

func TestTimeReranker_PromotesMatchingChunks(t *testing.T) {
	// Given three candidates where only the weakest names the queried time
	candidates := []Candidate{
		{ID: "a", Text: "vehicle towed later that day", Score: 0.9},
		{ID: "b", Text: "driver statement recorded", Score: 0.8},
		{ID: "c", Text: "At 08:20:05 on 3 March 2025 the collision occurred", Score: 0.5},
	}

	// When reranking on a query naming that time and date
	got := TimeReranker{Boost: DefaultTimeBoost}.Rerank("What happened at 08:20:05 on 3 March 2025?", candidates)

	// Then the matching chunk is first with one boost per matched token
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, 2, got[0].TimeMatches)
	assert.InDelta(t, 2.0, got[0].TimeBoost, 1e-9)
	assert.InDelta(t, 2.5, got[0].RankScore(), 1e-9)
	assert.InDelta(t, 0.5, got[0].Score, 1e-9, "base score is untouched")
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))

	// And the input is not mutated
	assert.Zero(t, candidates[2].TimeBoost)
}

func TestTimeReranker_MatchesChunkTextMetadata(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Text: "", Score: 0.9},
		{ID: "b", Text: "", Score: 0.1, Metadata: map[string]any{"chunk_text": "logged at 14:30"}},
	}

	got := TimeReranker{Boost: 1}.Rerank("anything at 14:30", candidates)

	assert.Equal(t, "b", got[0].ID)
}

func TestTimeReranker_NoTokensReturnsInput(t *testing.T) {
	candidates := []Candidate{{ID: "a", Score: 0.1}, {ID: "b", Score: 0.9}}

	got := TimeReranker{Boost: 1}.Rerank("no time at all", candidates)

	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestRerank_Idempotent(t *testing.T) {
	candidates := []Candidate{
		cand("a", "section_1", 0, 0.9),
		cand("b", "section_3", 0, 0.2),
		cand("c", "section_3", 1, 0.4),
	}
	query := "section 3 at 10:00"
	section := SectionReranker{Boost: DefaultSectionBoost}
	timed := TimeReranker{Boost: DefaultTimeBoost}

	once := section.Rerank(query, timed.Rerank(query, candidates))
	twice := section.Rerank(query, timed.Rerank(query, once))

	assert.Equal(t, ids(once), ids(twice))
	for i := range once {
		assert.InDelta(t, once[i].RankScore(), twice[i].RankScore(), 1e-9)
	}
}

func TestSectionReranker_PromotesReferencedSection(t *testing.T) {
	candidates := []Candidate{
		cand("s1", "section_1", 0, 0.95),
		cand("s3", "section_3", 0, 0.3),
		{ID: "legacy", Score: 0.2, Metadata: map[string]any{"section": "section_3"}},
	}

	got := SectionReranker{Boost: 2}.Rerank("summarize section 3", candidates)

	assert.Equal(t, []string{"s3", "legacy", "s1"}, ids(got))
	assert.True(t, got[0].SectionMatch)
	assert.InDelta(t, 2.0, got[0].SectionBoost, 1e-9)
	assert.False(t, got[2].SectionMatch)
}

func TestRerank_SectionPassIgnoresTimeBoost(t *testing.T) {
	// Given a section match, a time-only match and a strong plain candidate
	candidates := []Candidate{
		{ID: "sec", Text: "repair estimate", Score: 0.3, Metadata: map[string]any{"section_id": "section_2"}},
		{ID: "time_only", Text: "logged at 10:00", Score: 0.5, Metadata: map[string]any{"section_id": "section_1"}},
		{ID: "plain", Text: "vehicle towed", Score: 0.95, Metadata: map[string]any{"section_id": "section_1"}},
	}
	query := "section 2 at 10:00"

	// When the time pass runs before the section pass
	timed := TimeReranker{Boost: 1}.Rerank(query, candidates)
	got := SectionReranker{Boost: 2}.Rerank(query, timed)

	// Then the time pass promoted its match, but the section pass orders
	// by base score plus section boost alone
	assert.Equal(t, []string{"time_only", "plain", "sec"}, ids(timed))
	assert.Equal(t, []string{"sec", "plain", "time_only"}, ids(got))
	assert.InDelta(t, 1.0, got[2].TimeBoost, 1e-9, "time boost is still recorded")
	assert.InDelta(t, 1.5, got[2].RankScore(), 1e-9)
}

func TestRerank_TokensWithoutMatchesKeepOrderAndScores(t *testing.T) {
	// Given candidates in store order and a query whose time and section
	// tokens appear nowhere
	candidates := []Candidate{
		cand("a", "section_1", 0, 0.4),
		cand("b", "section_1", 1, 0.9),
		cand("c", "section_2", 0, 0.6),
	}
	query := "what happened in section 7 at 23:59 on 9 July 2024"

	// When both passes run
	timed := TimeReranker{Boost: DefaultTimeBoost}.Rerank(query, candidates)
	got := SectionReranker{Boost: DefaultSectionBoost}.Rerank(query, timed)

	// Then the order and every score are unchanged
	require.NotEmpty(t, ExtractTimeTokens(query))
	require.NotEmpty(t, ExtractSectionIDs(query))
	assert.Equal(t, ids(candidates), ids(got))
	for i := range candidates {
		assert.InDelta(t, candidates[i].Score, got[i].Score, 1e-12)
		assert.InDelta(t, candidates[i].RankScore(), got[i].RankScore(), 1e-12)
		assert.Zero(t, got[i].TimeMatches)
		assert.False(t, got[i].SectionMatch)
	}
}

// ============================================================================
// Auto-merge
// ============================================================================

func TestAutoMerger_MergesAdjacentRun(t *testing.T) {
	// Given three consecutive chunks of one section
	candidates := []Candidate{
		cand("section_1_small_0", "section_1", 0, 0.9),
		cand("section_1_small_1", "section_1", 1, 0.4),
		cand("section_1_small_2", "section_1", 2, 0.95),
	}

	// When merging
	got := AutoMerger{}.Merge(candidates, 5)

	// Then one merged result averages the scores
	require.Len(t, got, 1)
	m := got[0]
	assert.True(t, m.Merged)
	assert.Equal(t, 3, m.MergedCount)
	assert.Equal(t, "section_1_small_0", m.ID)
	assert.Equal(t, []string{"section_1_small_0", "section_1_small_1", "section_1_small_2"}, m.MergedIDs)
	assert.InDelta(t, 0.75, m.Score, 1e-9)
	assert.Equal(t, "section_1_small_0 text\n\nsection_1_small_1 text\n\nsection_1_small_2 text", m.Text)
}

func TestAutoMerger_OrdersByScoreNotBoost(t *testing.T) {
	// Given a boosted weak candidate ahead of an unboosted strong one
	boosted := cand("c", "section_1", 0, 0.3)
	boosted.TimeBoost = 1
	candidates := []Candidate{boosted, cand("a", "section_2", 0, 0.9)}

	got := AutoMerger{}.Merge(candidates, 5)

	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestAutoMerger_RespectsGapsAndSections(t *testing.T) {
	candidates := []Candidate{
		cand("a0", "section_1", 0, 0.5),
		cand("a3", "section_1", 3, 0.9),
		cand("b1", "section_2", 1, 0.8),
		cand("a1", "section_1", 1, 0.4),
	}

	got := AutoMerger{}.Merge(candidates, 0)

	// a0+a1 merge; a3 is two positions past; b1 is another section
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a3", "b1", "a0"}, ids(got))
	assert.Equal(t, 2, got[2].MergedCount)
	assert.False(t, got[0].Merged)
	for _, c := range got {
		for _, id := range c.MergedIDs {
			assert.NotEqual(t, "b1", id, "never merged across sections")
		}
	}
}

func TestAutoMerger_SamePositionAbsorbed(t *testing.T) {
	candidates := []Candidate{
		cand("x", "section_1", 2, 0.6),
		cand("y", "section_1", 2, 0.2),
	}

	got := AutoMerger{}.Merge(candidates, 5)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].MergedCount)
}

func TestAutoMerger_MissingSectionGroupsAsUnknown(t *testing.T) {
	candidates := []Candidate{
		{ID: "u0", Text: "one", Score: 0.3, Metadata: map[string]any{"position_index": 0}},
		{ID: "u1", Text: "", Score: 0.5, Metadata: map[string]any{"position_index": 1}},
	}

	got := AutoMerger{}.Merge(candidates, 5)

	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Text, "empty texts are skipped when joining")
	assert.InDelta(t, 0.4, got[0].Score, 1e-9)
}

func TestAutoMerger_TruncatesAndHandlesEmpty(t *testing.T) {
	assert.Nil(t, AutoMerger{}.Merge(nil, 5))

	candidates := []Candidate{
		cand("a", "section_1", 0, 0.1),
		cand("b", "section_2", 0, 0.9),
		cand("c", "section_3", 0, 0.5),
	}
	got := AutoMerger{}.Merge(candidates, 2)
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

// ============================================================================
// HierarchicalRetriever
// ============================================================================

func newHierarchical(t *testing.T, coll *fakeCollection, opts ...Option) *HierarchicalRetriever {
	t.Helper()
	r, err := NewHierarchicalRetriever(coll, &fakeEmbedder{}, opts...)
	require.NoError(t, err)
	return r
}

func TestNewHierarchicalRetriever_NilDependencies(t *testing.T) {
	_, err := NewHierarchicalRetriever(nil, &fakeEmbedder{})
	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeConfigInvalid, ragerrors.GetCode(err))

	_, err = NewHierarchicalRetriever(&fakeCollection{}, nil)
	require.Error(t, err)
}

func TestHierarchicalRetriever_EmptyQuery(t *testing.T) {
	r := newHierarchical(t, &fakeCollection{})

	_, err := r.Retrieve(context.Background(), "   ", Options{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ragerrors.New(ragerrors.ErrCodeQueryEmpty, "", nil)))
}

func TestHierarchicalRetriever_PoolAndLevelFilter(t *testing.T) {
	coll := &fakeCollection{}
	r := newHierarchical(t, coll, WithTopK(3))
	ctx := context.Background()

	_, err := r.Retrieve(ctx, "collision", Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, coll.last.N)
	assert.Equal(t, "small", coll.last.Where["level"])

	_, err = r.Retrieve(ctx, "collision", Options{TimeRerank: true, StartLevel: "medium"})
	require.NoError(t, err)
	assert.Equal(t, 12, coll.last.N)
	assert.Equal(t, "medium", coll.last.Where["level"])

	_, err = r.Retrieve(ctx, "collision", Options{
		StartLevel: "medium",
		Filters:    store.Where{"level": "large", "claim_id": "C-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "large", coll.last.Where["level"], "caller filter wins")
	assert.Equal(t, "C-1", coll.last.Where["claim_id"])
}

func TestHierarchicalRetriever_TimeRerankThenMerge(t *testing.T) {
	// Given a collection where the timestamped chunk scores lowest
	coll := &fakeCollection{matches: []store.Match{
		match("section_1_small_0", "The adjuster visited the site", "section_1", 0, 0.9),
		match("section_2_small_4", "Invoice received for repairs", "section_2", 4, 0.85),
		match("section_1_small_1", "At 08:20:05 the vehicle struck the barrier", "section_1", 1, 0.4),
	}}
	r := newHierarchical(t, coll, WithTopK(3))

	// When retrieving with time rerank and auto-merge on
	got, err := r.Retrieve(context.Background(), "What happened at 08:20:05?", Options{TimeRerank: true})
	require.NoError(t, err)

	// Then the adjacent section_1 chunks merge with the averaged boost, and
	// the merged results are ordered by score
	require.Len(t, got, 2)
	assert.Equal(t, "section_2_small_4", got[0].ID)
	assert.Equal(t, "section_1_small_0", got[1].ID)
	assert.True(t, got[1].Merged)
	assert.InDelta(t, 0.65, got[1].Score, 1e-6)
	assert.InDelta(t, 0.5, got[1].TimeBoost, 1e-9)
	assert.Contains(t, got[1].Text, "08:20:05")
}

func TestHierarchicalRetriever_NoMerge(t *testing.T) {
	coll := &fakeCollection{matches: []store.Match{
		match("a", "one", "section_1", 0, 0.9),
		match("b", "two", "section_1", 1, 0.8),
	}}
	r := newHierarchical(t, coll, WithAutoMerge(false))

	got, err := r.Retrieve(context.Background(), "q", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.False(t, r.Metadata().AutoMerge)
	assert.Contains(t, r.Metadata().Capabilities, "no_auto_merging")
}

func TestHierarchicalRetriever_EmbedFailure(t *testing.T) {
	r, err := NewHierarchicalRetriever(&fakeCollection{}, &fakeEmbedder{err: errors.New("ollama down")})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "q", Options{})

	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeRetrievalFailed, ragerrors.GetCode(err))
}

func TestHierarchicalRetriever_NoMatchesIsEmpty(t *testing.T) {
	r := newHierarchical(t, &fakeCollection{})

	got, err := r.Retrieve(context.Background(), "nothing", Options{})

	require.NoError(t, err)
	assert.Empty(t, got)
}

// ============================================================================
// SummaryRetriever
// ============================================================================

func summaryMatch(id, level, section string, score float32) store.Match {
	return store.Match{
		ID:       id,
		Document: id + " summary",
		Distance: 1 - score,
		Metadata: map[string]any{"summary_level": level, "section_id": section},
	}
}

func TestSummaryRetriever_SingleSectionNarrowsQuery(t *testing.T) {
	// Given summaries of several sections
	coll := &fakeCollection{matches: []store.Match{
		summaryMatch("section_1_summary", "section", "section_1", 0.9),
		summaryMatch("section_3_summary", "section", "section_3", 0.5),
		summaryMatch("section_3_small_0_summary", "chunk", "section_3", 0.4),
	}}
	r, err := NewSummaryRetriever(coll, &fakeEmbedder{}, WithTopK(2))
	require.NoError(t, err)

	// When the query names exactly one section
	got, err := r.Retrieve(context.Background(), "summarize section 3", SummaryOptions{SectionRerank: true})
	require.NoError(t, err)

	// Then the store is queried for that section only, with no widened pool
	assert.Equal(t, "section_3", coll.last.Where["section_id"])
	assert.Equal(t, 2, coll.last.N)
	assert.Equal(t, []string{"section_3_summary", "section_3_small_0_summary"}, ids(got))
	assert.Zero(t, got[0].SectionBoost)
}

func TestSummaryRetriever_SeveralSectionsBoost(t *testing.T) {
	coll := &fakeCollection{matches: []store.Match{
		summaryMatch("section_1_summary", "section", "section_1", 0.9),
		summaryMatch("section_2_summary", "section", "section_2", 0.3),
		summaryMatch("section_4_summary", "section", "section_4", 0.2),
	}}
	r, err := NewSummaryRetriever(coll, &fakeEmbedder{}, WithTopK(2))
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "compare section 2 and section 4", SummaryOptions{SectionRerank: true})
	require.NoError(t, err)

	assert.Equal(t, 8, coll.last.N)
	assert.NotContains(t, coll.last.Where, "section_id")
	assert.Equal(t, []string{"section_2_summary", "section_4_summary"}, ids(got))
}

func TestSummaryRetriever_LevelFilter(t *testing.T) {
	coll := &fakeCollection{matches: []store.Match{
		summaryMatch("doc_summary", "document", "", 0.2),
		summaryMatch("section_1_summary", "section", "section_1", 0.9),
	}}
	r, err := NewSummaryRetriever(coll, &fakeEmbedder{})
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "overview",
		SummaryOptions{Filters: store.Where{"summary_level": "document"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"doc_summary"}, ids(got))
	assert.False(t, got[0].Merged)
}

// ============================================================================
// KeywordRetriever
// ============================================================================

type fakeSearcher struct {
	hits  []store.KeywordHit
	limit int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ store.Where, limit int) ([]store.KeywordHit, error) {
	f.limit = limit
	return f.hits, nil
}

func TestKeywordRetriever_NormalizesAndHydrates(t *testing.T) {
	coll := &fakeCollection{matches: []store.Match{
		match("a", "windscreen cracked", "section_1", 0, 0),
		match("b", "windscreen replaced", "section_2", 0, 0),
	}}
	searcher := &fakeSearcher{hits: []store.KeywordHit{
		{ID: "a", Score: 4},
		{ID: "missing", Score: 3},
		{ID: "b", Score: 2},
	}}
	r, err := NewKeywordRetriever(searcher, coll, WithTopK(2))
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "windscreen", Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, searcher.limit)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "windscreen replaced", got[1].Text)
	assert.InDelta(t, 0.5, got[1].Score, 1e-9)
}

func TestKeywordRetriever_PostFilters(t *testing.T) {
	coll := &fakeCollection{matches: []store.Match{
		match("a", "windscreen", "section_1", 0, 0),
		match("b", "windscreen", "section_2", 0, 0),
	}}
	searcher := &fakeSearcher{hits: []store.KeywordHit{{ID: "a", Score: 2}, {ID: "b", Score: 1}}}
	r, err := NewKeywordRetriever(searcher, coll)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), "windscreen",
		Options{Filters: store.Where{"section_id": "section_2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, ids(got))
	// the first surviving hit anchors normalization
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestKeywordRetriever_RerankSeesWiderPoolThenTruncates(t *testing.T) {
	// Given: the time-matching chunk is only the third keyword hit
	coll := &fakeCollection{matches: []store.Match{
		match("a", "windscreen cracked", "section_1", 0, 0),
		match("b", "windscreen chipped", "section_1", 1, 0),
		match("c", "windscreen logged at 10:00", "section_2", 0, 0),
	}}
	searcher := &fakeSearcher{hits: []store.KeywordHit{
		{ID: "a", Score: 8},
		{ID: "b", Score: 6},
		{ID: "c", Score: 2},
	}}
	r, err := NewKeywordRetriever(searcher, coll, WithTopK(1))
	require.NoError(t, err)

	// When: retrieving one result with the time pass on
	got, err := r.Retrieve(context.Background(), "windscreen at 10:00", Options{TimeRerank: true})
	require.NoError(t, err)

	// Then: the pool was widened for reranking, the boosted hit wins, and
	// the result is cut to top-k only after the pass
	assert.Equal(t, DefaultRerankPoolMultiplier, searcher.limit)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.InDelta(t, 0.25, got[0].Score, 1e-9)
	assert.InDelta(t, 1.0, got[0].TimeBoost, 1e-9)
}

func TestKeywordRetriever_NilDependencies(t *testing.T) {
	_, err := NewKeywordRetriever(nil, &fakeCollection{})
	require.Error(t, err)
	_, err = NewKeywordRetriever(&fakeSearcher{}, nil)
	require.Error(t, err)
}
