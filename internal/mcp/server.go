package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/config"
	"github.com/Aman-CERP/claimrag/internal/embed"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/retrieve"
	"github.com/Aman-CERP/claimrag/internal/store"
	"github.com/Aman-CERP/claimrag/pkg/version"
)

const (
	serverName = "claimrag"
	maxTopK    = 50
)

// Index is the part of index.Manager the server queries.
type Index interface {
	HierarchicalRetriever(opts ...retrieve.Option) (*retrieve.HierarchicalRetriever, error)
	SummaryRetriever(opts ...retrieve.Option) (*retrieve.SummaryRetriever, error)
	KeywordRetriever(opts ...retrieve.Option) (*retrieve.KeywordRetriever, error)
	Stats(ctx context.Context) (*index.Stats, error)
}

// Server exposes claim retrieval as MCP tools.
type Server struct {
	mcp    *mcp.Server
	index  Index
	cfg    config.RetrievalConfig
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: "search_claim",
		Description: "Search the indexed claim documents. Returns chunks ranked by similarity, " +
			"boosted when they mention times or sections named in the query, with adjacent " +
			"chunks merged. Use level=medium or large for more context per result.",
	},
	{
		Name: "search_summaries",
		Description: "Search summaries of the claim at chunk, section or document level. " +
			"Use summary_level=document for an overview and section for a per-section digest.",
	},
	{
		Name:        "index_status",
		Description: "Report which documents are indexed, record counts and the embedding model in use.",
	},
}

// NewServer creates an MCP server backed by idx. Zero fields in cfg take
// the defaults of config.NewConfig.
func NewServer(idx Index, cfg config.RetrievalConfig) (*Server, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = config.NewConfig().Retrieval.TopK
	}

	s := &Server{
		index:  idx,
		cfg:    cfg,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchClaimHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSearchSummariesHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name and renders its result as markdown.
// Arguments use the same names as the tool input schemas.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_claim":
		var in SearchClaimInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.searchClaim(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatResults("Claim results", in.Query, out.Results), nil
	case "search_summaries":
		var in SearchSummariesInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		out, err := s.searchSummaries(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatResults("Summary results", in.Query, out.Results), nil
	case "index_status":
		out, err := s.indexStatus(ctx)
		if err != nil {
			return "", err
		}
		return FormatStatus(out), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

// decodeArgs maps loosely typed arguments onto a tool input struct.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) mcpSearchClaimHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchClaimInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.searchClaim(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpSearchSummariesHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchSummariesInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.searchSummaries(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) searchClaim(ctx context.Context, in SearchClaimInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if in.Level != "" {
		if _, err := chunk.ParseLevel(in.Level); err != nil {
			return SearchOutput{}, NewInvalidParamsError(err.Error())
		}
	}

	opts := retrieve.Options{
		TopK:          s.clampTopK(in.TopK),
		StartLevel:    in.Level,
		TimeRerank:    in.TimeRerank || s.cfg.TimeRerank,
		SectionRerank: in.SectionRerank || s.cfg.SectionRerank,
	}
	if in.Section != "" {
		opts.Filters = store.Where{index.KeySectionID: retrieve.NormalizeSectionID(in.Section)}
	}

	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("search_claim started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("top_k", opts.TopK),
		slog.Bool("keyword", in.Keyword))

	var (
		results []retrieve.Candidate
		err     error
	)
	if in.Keyword {
		var kr *retrieve.KeywordRetriever
		if kr, err = s.index.KeywordRetriever(); err == nil {
			results, err = kr.Retrieve(ctx, in.Query, opts)
		}
	} else {
		var hr *retrieve.HierarchicalRetriever
		if hr, err = s.index.HierarchicalRetriever(retrieve.WithAutoMerge(s.cfg.AutoMerge && !in.NoMerge)); err == nil {
			results, err = hr.Retrieve(ctx, in.Query, opts)
		}
	}
	return s.finish("search_claim", requestID, start, results, err)
}

func (s *Server) searchSummaries(ctx context.Context, in SearchSummariesInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	opts := retrieve.SummaryOptions{
		TopK:          s.clampTopK(in.TopK),
		SectionRerank: in.SectionRerank || s.cfg.SectionRerank,
	}
	if in.SummaryLevel != "" {
		if !index.SummaryLevel(in.SummaryLevel).Valid() {
			return SearchOutput{}, NewInvalidParamsError(
				fmt.Sprintf("invalid summary_level %q (want chunk, section or document)", in.SummaryLevel))
		}
		opts.Filters = store.Where{index.KeySummaryLevel: in.SummaryLevel}
	}

	requestID := generateRequestID()
	start := time.Now()
	s.logger.Info("search_summaries started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("top_k", opts.TopK))

	var results []retrieve.Candidate
	sr, err := s.index.SummaryRetriever()
	if err == nil {
		results, err = sr.Retrieve(ctx, in.Query, opts)
	}
	return s.finish("search_summaries", requestID, start, results, err)
}

// finish logs the outcome of a search and converts it for the client.
func (s *Server) finish(tool, requestID string, start time.Time, results []retrieve.Candidate, err error) (SearchOutput, error) {
	duration := time.Since(start)
	if err != nil {
		attrs := append([]any{
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
		}, ragerrors.LogAttrs(err)...)
		s.logger.Error(tool+" failed", attrs...)
		return SearchOutput{}, MapError(err)
	}
	s.logger.Info(tool+" completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	out := SearchOutput{Results: make([]ResultOutput, 0, len(results))}
	for _, c := range results {
		out.Results = append(out.Results, toResultOutput(c))
	}
	return out, nil
}

func (s *Server) indexStatus(ctx context.Context) (IndexStatusOutput, error) {
	st, err := s.index.Stats(ctx)
	if err != nil {
		return IndexStatusOutput{}, MapError(err)
	}
	docs := st.Documents
	if docs == nil {
		docs = []string{}
	}
	return IndexStatusOutput{
		Documents:        docs,
		Chunks:           st.Hierarchical,
		Summaries:        st.Summary,
		KeywordDocs:      st.Keyword,
		EmbeddingModel:   st.EmbeddingModel,
		Dimensions:       st.Dimensions,
		LastBuild:        st.LastBuild,
		IsStaticEmbedder: st.EmbeddingModel == "static" || st.Dimensions == embed.StaticDimensions,
	}, nil
}

// Serve runs the server over stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

func toResultOutput(c retrieve.Candidate) ResultOutput {
	level := store.StringValue(c.Metadata, index.KeyLevel)
	if sl := store.StringValue(c.Metadata, index.KeySummaryLevel); sl != "" {
		level = sl + " summary"
	}
	return ResultOutput{
		ID:          c.ID,
		Text:        c.Text,
		Score:       c.Score,
		RankScore:   c.RankScore(),
		SectionID:   c.SectionID(),
		Level:       level,
		Timestamp:   store.StringValue(c.Metadata, index.KeyTimestamp),
		MatchReason: matchReason(c),
		MergedIDs:   c.MergedIDs,
		DocumentID:  store.StringValue(c.Metadata, index.KeyDocumentID),
		ClaimID:     store.StringValue(c.Metadata, index.KeyClaimID),
	}
}

func matchReason(c retrieve.Candidate) string {
	var parts []string
	if c.TimeMatches > 0 {
		parts = append(parts, fmt.Sprintf("mentions %d queried time(s)", c.TimeMatches))
	}
	if c.SectionMatch {
		parts = append(parts, "in a queried section")
	}
	if c.Merged {
		parts = append(parts, fmt.Sprintf("merged from %d adjacent chunks", c.MergedCount))
	}
	return strings.Join(parts, "; ")
}

// clampTopK applies the configured default and caps large requests.
func (s *Server) clampTopK(k int) int {
	switch {
	case k <= 0:
		return min(s.cfg.TopK, maxTopK)
	case k > maxTopK:
		return maxTopK
	default:
		return k
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
