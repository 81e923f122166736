package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/chunk"
	"github.com/Aman-CERP/claimrag/internal/output"
)

type chunkOptions struct {
	claimID string
	level   string
	show    bool
	format  string
}

func newChunkCmd(flags *globalFlags) *cobra.Command {
	var opts chunkOptions

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Show how a document would be chunked, without indexing",
		Long: `Split a document into sections and hierarchical chunks using the
current chunking settings and print the result. Nothing is embedded or
stored, and no model is contacted.`,
		Example: `  # Per-section chunk counts
  claimrag chunk claim.txt

  # Print every medium chunk
  claimrag chunk claim.txt --show --level medium

  # Full hierarchy as JSON
  claimrag chunk claim.md --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd.Context(), cmd, flags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.claimID, "claim-id", "", "Claim ID (default: detected from the text)")
	cmd.Flags().StringVar(&opts.level, "level", "small", "Level printed by --show: small, medium, large")
	cmd.Flags().BoolVar(&opts.show, "show", false, "Print chunk text")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runChunk(ctx context.Context, cmd *cobra.Command, flags *globalFlags, path string, opts chunkOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	level, err := chunk.ParseLevel(opts.level)
	if err != nil {
		return err
	}
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}

	h, err := assemble(ctx, e, path, "", opts.claimID)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(h)
	}

	out.Header(fmt.Sprintf("%s: %d sections, %s", path, len(h.Sections), levelCounts(h)))
	out.Newline()
	for _, s := range h.Sections {
		out.Statusf("📄", "%s  %s", s.SectionID, s.Header)
		out.Statusf("", "small %d  medium %d  large %d",
			s.ChunkCounts[chunk.Small], s.ChunkCounts[chunk.Medium], s.ChunkCounts[chunk.Large])
	}

	if !opts.show {
		return nil
	}
	out.Newline()
	out.Header(fmt.Sprintf("%s chunks", level))
	for _, c := range h.Level(level) {
		out.Statusf("🧩", "%s (%d tokens)", c.ID, c.Tokens)
		out.Code(c.Text)
	}
	return nil
}
