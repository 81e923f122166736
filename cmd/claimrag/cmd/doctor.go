package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimrag/internal/output"
	"github.com/Aman-CERP/claimrag/internal/preflight"
)

type doctorOptions struct {
	verbose bool
	format  string
}

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this project can be indexed and searched",
		Long: `Check the data directory, the tokenizer and the configured embedding and
summary providers. Exits non-zero when a required check fails.`,
		Example: `  claimrag doctor
  claimrag doctor --verbose
  claimrag doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, flags, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show details for each check")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(ctx context.Context, cmd *cobra.Command, flags *globalFlags, opts doctorOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(opts.verbose),
	)
	results := checker.RunAll(ctx, preflight.Target{DataDir: e.dataDir(), Config: e.cfg})

	if opts.format == "json" {
		report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
		if err := output.New(cmd.OutOrStdout()).JSON(report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("doctor: required checks failed")
	}
	return nil
}
