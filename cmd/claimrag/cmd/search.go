package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/output"
	"github.com/Aman-CERP/claimrag/internal/retrieve"
	"github.com/Aman-CERP/claimrag/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	level         string
	topK          int
	sections      []string
	claimID       string
	timeRerank    bool
	sectionRerank bool
	noMerge       bool
	keyword       bool
	format        string
	snippetLines  int
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the hierarchical chunk index",
		Long: `Search indexed chunks at one level.

A larger candidate pool is fetched when a rerank pass is enabled. The
time pass boosts chunks that mention times or dates named in the query;
the section pass boosts chunks whose section the query names
("section 3", "section_2"). Adjacent chunks of one section are then
merged into a single result unless --no-merge is given.

--keyword runs a full-text search instead of a vector search.`,
		Example: `  claimrag search "when was the vehicle towed"
  claimrag search "damage at 14:30 on 3 March 2025" --time-rerank
  claimrag search "repair estimate in section 4" --section-rerank --no-merge
  claimrag search "windscreen" --keyword --level medium --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, flags, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.level, "level", "", "Chunk level: small, medium, large (default: retrieval.start_level)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default: retrieval.top_k)")
	cmd.Flags().StringSliceVar(&opts.sections, "section", nil, "Restrict to a section id, e.g. section_2")
	cmd.Flags().StringVar(&opts.claimID, "claim-id", "", "Restrict to one claim")
	cmd.Flags().BoolVar(&opts.timeRerank, "time-rerank", false, "Boost chunks matching times in the query")
	cmd.Flags().BoolVar(&opts.sectionRerank, "section-rerank", false, "Boost chunks in sections named by the query")
	cmd.Flags().BoolVar(&opts.noMerge, "no-merge", false, "Do not merge adjacent chunks")
	cmd.Flags().BoolVar(&opts.keyword, "keyword", false, "Use full-text search instead of vectors")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVar(&opts.snippetLines, "lines", 4, "Lines of text shown per result")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, flags *globalFlags, query string, opts searchOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if opts.level != "" {
		if _, err := chunk.ParseLevel(opts.level); err != nil {
			return err
		}
	}
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}
	if err := e.requireIndex(); err != nil {
		return err
	}

	s, err := e.openSession(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	filters, err := searchFilters(opts)
	if err != nil {
		return err
	}
	rOpts := retrieve.Options{
		TopK:          opts.topK,
		Filters:       filters,
		StartLevel:    opts.level,
		TimeRerank:    opts.timeRerank || e.cfg.Retrieval.TimeRerank,
		SectionRerank: opts.sectionRerank || e.cfg.Retrieval.SectionRerank,
	}

	slog.Info("search_started",
		slog.String("query", query),
		slog.Bool("keyword", opts.keyword),
		slog.Int("top_k", opts.topK))

	var results []retrieve.Candidate
	if opts.keyword {
		kr, err := s.manager.KeywordRetriever()
		if err != nil {
			return err
		}
		results, err = kr.Retrieve(ctx, query, rOpts)
		if err != nil {
			return err
		}
	} else {
		hr, err := s.manager.HierarchicalRetriever(retrieve.WithAutoMerge(e.cfg.Retrieval.AutoMerge && !opts.noMerge))
		if err != nil {
			return err
		}
		results, err = hr.Retrieve(ctx, query, rOpts)
		if err != nil {
			return err
		}
	}

	slog.Info("search_complete", slog.Int("results", len(results)))
	return printCandidates(cmd, query, results, opts.format, opts.snippetLines)
}

// searchFilters builds metadata filters from flags. Only one section can
// be filtered on, since filters are equality matches.
func searchFilters(opts searchOptions) (store.Where, error) {
	where := store.Where{}
	switch len(opts.sections) {
	case 0:
	case 1:
		where[index.KeySectionID] = retrieve.NormalizeSectionID(opts.sections[0])
	default:
		return nil, fmt.Errorf("--section accepts one section; use --section-rerank to favour several")
	}
	if opts.claimID != "" {
		where[index.KeyClaimID] = opts.claimID
	}
	if len(where) == 0 {
		return nil, nil
	}
	return where, nil
}

// printCandidates writes results as JSON or as a ranked list.
func printCandidates(cmd *cobra.Command, query string, results []retrieve.Candidate, format string, lines int) error {
	out := output.New(cmd.OutOrStdout())
	if format == "json" {
		if results == nil {
			results = []retrieve.Candidate{}
		}
		return out.JSON(struct {
			Query   string               `json:"query"`
			Results []retrieve.Candidate `json:"results"`
		}{query, results})
	}

	if len(results) == 0 {
		out.Warningf("No results for %q", query)
		return nil
	}

	rows := make([]output.Result, 0, len(results))
	for _, c := range results {
		rows = append(rows, output.Result{
			ID:    c.ID,
			Score: c.Score,
			Rank:  c.RankScore(),
			Tags:  candidateTags(c),
			Text:  c.Text,
		})
	}
	out.Results(fmt.Sprintf("%d results for %q", len(results), query), rows, lines)
	return nil
}

func candidateTags(c retrieve.Candidate) []string {
	var tags []string
	if level := store.StringValue(c.Metadata, index.KeyLevel); level != "" {
		tags = append(tags, level)
	}
	if level := store.StringValue(c.Metadata, index.KeySummaryLevel); level != "" {
		tags = append(tags, level+" summary")
	}
	if section := c.SectionID(); section != "" {
		tags = append(tags, section)
	}
	if c.TimeMatches > 0 {
		tags = append(tags, fmt.Sprintf("time x%d", c.TimeMatches))
	}
	if c.SectionMatch {
		tags = append(tags, "section match")
	}
	if c.Merged {
		tags = append(tags, fmt.Sprintf("merged x%d", c.MergedCount))
	}
	return tags
}
