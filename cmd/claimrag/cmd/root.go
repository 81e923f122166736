// Package cmd provides the CLI commands for claimrag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/config"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
	"github.com/Aman-CERP/claimrag/internal/logging"
	"github.com/Aman-CERP/claimrag/internal/profiling"
	"github.com/Aman-CERP/claimrag/pkg/version"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	dir      string
	debug    bool
	profiles profiling.Paths
}

// NewRootCmd creates the root command for the claimrag CLI.
func NewRootCmd() *cobra.Command {
	var (
		flags          globalFlags
		profiler       *profiling.Session
		loggingCleanup func()
	)

	cmd := &cobra.Command{
		Use:   "claimrag",
		Short: "Hierarchical chunking and retrieval for insurance claim documents",
		Long: `claimrag splits claim documents into small, medium and large chunks,
indexes them with an optional MapReduce summary index, and answers
queries with time-aware and section-aware reranking plus auto-merging
of adjacent chunks.

Everything runs locally. Ollama is used for embeddings and summaries
when it is reachable; otherwise claimrag falls back to static
embeddings and truncated summaries.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("claimrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.dir, "dir", ".", "Project directory holding .claimrag.yaml and the index")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging to ~/.claimrag/logs/")
	cmd.PersistentFlags().StringVar(&flags.profiles.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&flags.profiles.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&flags.profiles.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cleanup, err := setupLogging(flags)
		if err != nil {
			return err
		}
		loggingCleanup = cleanup

		if flags.profiles.Enabled() {
			profiler = profiling.NewSession(flags.profiles)
			if err := profiler.Start(); err != nil {
				return err
			}
		}
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		var err error
		if profiler != nil {
			err = profiler.Stop()
			profiler = nil
		}
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
		return err
	}

	cmd.AddCommand(newIndexCmd(&flags))
	cmd.AddCommand(newChunkCmd(&flags))
	cmd.AddCommand(newSearchCmd(&flags))
	cmd.AddCommand(newSummaryCmd(&flags))
	cmd.AddCommand(newStatsCmd(&flags))
	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newDoctorCmd(&flags))
	cmd.AddCommand(newConfigCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default slog logger. --debug writes JSON to
// the rotating log file; otherwise records at the configured level go to
// stderr as text. A config that fails to load is reported by the
// subcommand, not here.
func setupLogging(flags globalFlags) (func(), error) {
	logCfg := logging.DefaultConfig()
	if flags.debug {
		logCfg = logging.DebugConfig()
	} else if cfg, err := config.Load(flags.dir); err == nil {
		logCfg.Level = cfg.Logging.Level
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	if flags.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return cleanup, nil
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM, and
// prints failures with their hint and code.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, ragerrors.FormatForCLI(err))
	}
	return err
}
