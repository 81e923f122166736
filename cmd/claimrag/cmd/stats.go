package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/output"
	"github.com/Aman-CERP/claimrag/internal/profiling"
	"github.com/Aman-CERP/claimrag/internal/retrieve"
)

type statsOptions struct {
	check  bool
	repair bool
	format string
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show record counts for the hierarchical, summary and keyword indices,
the embedding model that built them and the retrievers available.

--check compares the chunk collection with the keyword index; --repair
also fixes what it finds.`,
		Example: `  claimrag stats
  claimrag stats --check
  claimrag stats --check --repair --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, flags, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.check, "check", false, "Check keyword index consistency")
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "Repair inconsistencies found by --check")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// statsReport is the JSON form of the stats command.
type statsReport struct {
	*index.Stats
	Retrievers  []retrieve.Info    `json:"retrievers"`
	Consistency *consistencyReport `json:"consistency,omitempty"`
	HeapInUse   string             `json:"heap_in_use"`
}

type consistencyReport struct {
	Checked         int      `json:"checked"`
	Consistent      bool     `json:"consistent"`
	Inconsistencies []string `json:"inconsistencies,omitempty"`
	Repaired        bool     `json:"repaired"`
}

func runStats(ctx context.Context, cmd *cobra.Command, flags *globalFlags, opts statsOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
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

	st, err := s.manager.Stats(ctx)
	if err != nil {
		return err
	}
	report := statsReport{Stats: st}

	hr, err := s.manager.HierarchicalRetriever()
	if err != nil {
		return err
	}
	sr, err := s.manager.SummaryRetriever()
	if err != nil {
		return err
	}
	report.Retrievers = append(report.Retrievers, hr.Metadata(), sr.Metadata())
	if kr, err := s.manager.KeywordRetriever(); err == nil {
		report.Retrievers = append(report.Retrievers, kr.Metadata())
	}

	if opts.check || opts.repair {
		result, err := s.manager.CheckConsistency(ctx, opts.repair)
		if err != nil {
			return err
		}
		cr := &consistencyReport{
			Checked:    result.Checked,
			Consistent: result.Consistent(),
			Repaired:   opts.repair && !result.Consistent(),
		}
		for _, inc := range result.Inconsistencies {
			cr.Inconsistencies = append(cr.Inconsistencies, fmt.Sprintf("%s %s", inc.Type, inc.ChunkID))
		}
		report.Consistency = cr
	}
	report.HeapInUse = profiling.FormatBytes(profiling.HeapInUse())

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(report)
	}
	printStats(out, report)
	return nil
}

func printStats(out *output.Writer, r statsReport) {
	out.Header("Index")
	out.KeyValues([]output.KV{
		{Key: "data dir", Value: r.DataDir},
		{Key: "documents", Value: strings.Join(r.Documents, ", ")},
		{Key: "chunks", Value: fmt.Sprintf("%d (%d graph nodes)", r.Hierarchical, r.HierarchicalNodes)},
		{Key: "summaries", Value: fmt.Sprint(r.Summary)},
		{Key: "keyword docs", Value: fmt.Sprint(r.Keyword)},
		{Key: "embeddings", Value: fmt.Sprintf("%s (%d dims)", r.EmbeddingModel, r.Dimensions)},
		{Key: "last build", Value: r.LastBuild},
		{Key: "heap in use", Value: r.HeapInUse},
	})

	out.Newline()
	out.Header("Retrievers")
	for _, info := range r.Retrievers {
		out.Statusf("🔍", "%s (%s)", info.RetrieverType, info.CollectionName)
		out.Status("", strings.Join(info.Capabilities, ", "))
	}

	if r.Consistency == nil {
		return
	}
	out.Newline()
	c := r.Consistency
	switch {
	case c.Consistent:
		out.Successf("Keyword index consistent (%d chunks checked)", c.Checked)
	case c.Repaired:
		out.Successf("Repaired %d inconsistencies", len(c.Inconsistencies))
	default:
		out.Warningf("%d inconsistencies found; run with --repair to fix", len(c.Inconsistencies))
	}
	for _, inc := range c.Inconsistencies {
		out.Status("", inc)
	}
}
