package mcp

// SearchClaimInput defines the input schema for the search_claim tool.
type SearchClaimInput struct {
	Query         string `json:"query" jsonschema:"the question to answer from the claim documents"`
	Level         string `json:"level,omitempty" jsonschema:"chunk level: small, medium or large; default small"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
	Section       string `json:"section,omitempty" jsonschema:"restrict to one section id, e.g. section_3"`
	TimeRerank    bool   `json:"time_rerank,omitempty" jsonschema:"boost chunks that mention times or dates named in the query"`
	SectionRerank bool   `json:"section_rerank,omitempty" jsonschema:"boost chunks in sections the query names"`
	NoMerge       bool   `json:"no_merge,omitempty" jsonschema:"return adjacent chunks separately instead of merging them"`
	Keyword       bool   `json:"keyword,omitempty" jsonschema:"use full-text search instead of vector search"`
}

// SearchSummariesInput defines the input schema for the search_summaries tool.
type SearchSummariesInput struct {
	Query         string `json:"query" jsonschema:"the question to answer from claim summaries"`
	SummaryLevel  string `json:"summary_level,omitempty" jsonschema:"chunk, section or document; default all"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
	SectionRerank bool   `json:"section_rerank,omitempty" jsonschema:"restrict or boost to sections the query names"`
}

// SearchOutput defines the output schema for both search tools.
type SearchOutput struct {
	Results []ResultOutput `json:"results" jsonschema:"ranked results"`
}

// ResultOutput is one retrieved chunk or summary.
type ResultOutput struct {
	ID          string   `json:"id" jsonschema:"chunk or summary id"`
	Text        string   `json:"text" jsonschema:"retrieved text"`
	Score       float64  `json:"score" jsonschema:"similarity score"`
	RankScore   float64  `json:"rank_score" jsonschema:"score plus the rerank boosts the result earned"`
	SectionID   string   `json:"section_id,omitempty" jsonschema:"section the text belongs to"`
	Level       string   `json:"level,omitempty" jsonschema:"chunk level or summary level"`
	Timestamp   string   `json:"timestamp,omitempty" jsonschema:"first timestamp found in the text"`
	MatchReason string   `json:"match_reason,omitempty" jsonschema:"why the result was boosted or merged"`
	MergedIDs   []string `json:"merged_ids,omitempty" jsonschema:"chunks merged into this result"`
	DocumentID  string   `json:"document_id,omitempty" jsonschema:"source document"`
	ClaimID     string   `json:"claim_id,omitempty" jsonschema:"claim the document belongs to"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Documents      []string `json:"documents"`
	Chunks         int      `json:"chunks"`
	Summaries      int      `json:"summaries"`
	KeywordDocs    int      `json:"keyword_documents"`
	EmbeddingModel string   `json:"embedding_model"`
	Dimensions     int      `json:"dimensions"`
	LastBuild      string   `json:"last_build,omitempty"`
	// IsStaticEmbedder tells clients semantic quality is low and keyword
	// search may serve better.
	IsStaticEmbedder bool `json:"is_static_embedder"`
}
