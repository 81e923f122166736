package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/document"
	"github.com/Aman-CERP/claimrag/internal/index"
	"github.com/Aman-CERP/claimrag/internal/output"
	"github.com/Aman-CERP/claimrag/internal/ui"
)

type indexOptions struct {
	claimID    string
	documentID string
	noSummary  bool
	rebuild    bool
	noTUI      bool
	format     string
}

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Chunk a claim document and build its indices",
		Long: `Load a claim document (.txt, .md or .pdf), split it into sections and
small, medium and large chunks, embed every chunk and store it in the
hierarchical index. Unless disabled, a MapReduce summary index is built
on top: one summary per small chunk, one per section and one for the
whole document.

Indexing into an existing data directory adds the document. Use
--rebuild to start from an empty index.`,
		Example: `  # Index a claim file
  claimrag index claims/CLM-2025-001.txt

  # Replace the current index, skipping summaries
  claimrag index report.md --rebuild --no-summary

  # Set identifiers explicitly
  claimrag index report.pdf --claim-id CLM-2025-001 --document-id police-report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, flags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.claimID, "claim-id", "", "Claim ID (default: detected from the text)")
	cmd.Flags().StringVar(&opts.documentID, "document-id", "", "Document ID (default: random UUID)")
	cmd.Flags().BoolVar(&opts.noSummary, "no-summary", false, "Skip the summary index")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Clear the index before building")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Print plain progress lines instead of the interactive view")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, flags *globalFlags, path string, opts indexOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}
	if opts.noSummary {
		e.cfg.Summary.Enabled = false
	}
	if opts.documentID == "" {
		opts.documentID = uuid.NewString()
	}

	slog.Info("index_command_started",
		slog.String("path", path),
		slog.String("document_id", opts.documentID))

	// Progress goes to stderr; JSON runs show none.
	var renderer ui.Renderer = nopRenderer{}
	if opts.format != "json" {
		renderer = ui.NewRenderer(ui.Config{
			Output:     cmd.ErrOrStderr(),
			ForcePlain: opts.noTUI,
			Title:      path,
		})
	}
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageChunking, Message: path})
	h, err := assemble(ctx, e, path, opts.documentID, opts.claimID)
	if err != nil {
		return err
	}

	e.progress = func(p index.Progress) {
		stage := ui.StageEmbedding
		if p.Stage == index.StageSummaries {
			stage = ui.StageSummarizing
		}
		renderer.UpdateProgress(ui.ProgressEvent{Stage: stage, Current: p.Current, Total: p.Total})
	}
	s, err := e.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	build := s.manager.Build
	if opts.rebuild {
		build = s.manager.Rebuild
	}
	res, err := build(ctx, h)
	if err != nil {
		return err
	}
	renderer.Complete(ui.CompletionStats{
		DocumentID:     res.DocumentID,
		Sections:       len(h.Sections),
		Chunks:         res.Chunks,
		Summaries:      res.Summaries,
		SummaryModel:   res.SummaryModel,
		EmbeddingModel: s.embedder.ModelName(),
		Duration:       res.Duration,
	})
	_ = renderer.Stop()

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(struct {
			*index.BuildResult
			ClaimID  string                 `json:"claim_id"`
			Sections []chunk.SectionSummary `json:"sections"`
			DataDir  string                 `json:"data_dir"`
		}{res, h.ClaimID, h.Sections, e.dataDir()})
	}

	out.Successf("Indexed %s", path)
	out.KeyValues([]output.KV{
		{Key: "document", Value: res.DocumentID},
		{Key: "claim", Value: h.ClaimID},
		{Key: "sections", Value: fmt.Sprint(len(h.Sections))},
		{Key: "chunks", Value: levelCounts(h)},
		{Key: "summaries", Value: summaryValue(res)},
		{Key: "duration", Value: res.Duration.Round(time.Millisecond).String()},
		{Key: "data dir", Value: e.dataDir()},
	})
	return nil
}

// assemble loads path and chunks it with the project's settings.
func assemble(ctx context.Context, e *env, path, documentID, claimID string) (*chunk.Hierarchy, error) {
	doc, err := document.LoadFile(path, documentID, claimID)
	if err != nil {
		return nil, err
	}
	seg, err := e.segmenter()
	if err != nil {
		return nil, err
	}
	return chunk.NewAssembler(seg).Assemble(ctx, doc, documentID, claimID)
}

func levelCounts(h *chunk.Hierarchy) string {
	return fmt.Sprintf("%d (%d small, %d medium, %d large)", h.TotalChunks(),
		len(h.Level(chunk.Small)), len(h.Level(chunk.Medium)), len(h.Level(chunk.Large)))
}

func summaryValue(res *index.BuildResult) string {
	if res.Summaries == 0 {
		return "disabled"
	}
	return fmt.Sprintf("%d via %s", res.Summaries, res.SummaryModel)
}

// nopRenderer discards progress.
type nopRenderer struct{}

func (nopRenderer) Start(context.Context) error     { return nil }
func (nopRenderer) UpdateProgress(ui.ProgressEvent) {}
func (nopRenderer) Complete(ui.CompletionStats)     {}
func (nopRenderer) Stop() error                     { return nil }
