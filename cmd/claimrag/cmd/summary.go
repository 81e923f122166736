package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/retrieve"
	"github.com/Aman-CERP/claimrag/internal/store"
)

type summaryOptions struct {
	level         string
	topK          int
	sectionRerank bool
	format        string
	snippetLines  int
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var opts summaryOptions

	cmd := &cobra.Command{
		Use:   "summary <query>",
		Short: "Search the summary index",
		Long: `Search chunk, section and document summaries.

With --section-rerank, a query naming exactly one section is restricted
to that section, and a query naming several boosts summaries of those
sections instead. Summaries are never merged.`,
		Example: `  claimrag summary "what happened"
  claimrag summary "overview of the claim" --summary-level document
  claimrag summary "what does section 2 say" --section-rerank`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), cmd, flags, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.level, "summary-level", "", "Summary level: chunk, section, document (default: all)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default: retrieval.top_k)")
	cmd.Flags().BoolVar(&opts.sectionRerank, "section-rerank", false, "Boost summaries of sections named by the query")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVar(&opts.snippetLines, "lines", 6, "Lines of text shown per result")

	return cmd
}

func runSummary(ctx context.Context, cmd *cobra.Command, flags *globalFlags, query string, opts summaryOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	var filters store.Where
	if opts.level != "" {
		if !index.SummaryLevel(opts.level).Valid() {
			return fmt.Errorf("invalid summary level %q (want chunk, section or document)", opts.level)
		}
		filters = store.Where{index.KeySummaryLevel: opts.level}
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

	sr, err := s.manager.SummaryRetriever()
	if err != nil {
		return err
	}
	results, err := sr.Retrieve(ctx, query, retrieve.SummaryOptions{
		TopK:          opts.topK,
		Filters:       filters,
		SectionRerank: opts.sectionRerank || e.cfg.Retrieval.SectionRerank,
	})
	if err != nil {
		return err
	}
	return printCandidates(cmd, query, results, opts.format, opts.snippetLines)
}
