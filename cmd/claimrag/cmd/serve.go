package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/mcp"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve claim retrieval to AI clients over MCP",
		Long: `Start a Model Context Protocol server on stdin/stdout.

The server exposes three tools: search_claim, search_summaries and
index_status. Logs go to stderr so they never mix with the protocol.`,
		Example: `  claimrag serve --dir ./claims/CLM-2025-001`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
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

	srv, err := mcp.NewServer(s.manager, e.cfg.Retrieval)
	if err != nil {
		return err
	}
	slog.Info("serve_started", slog.String("data_dir", e.dataDir()))
	return srv.Serve(ctx)
}
