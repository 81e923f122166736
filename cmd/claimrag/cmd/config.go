package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/claimrag/configs"
	"github.com/Aman-CERP/claimrag/internal/config"
	"github.com/Aman-CERP/claimrag/internal/output"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage claimrag configuration files.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/claimrag/config.yaml)
  3. Project config (.claimrag.yaml in --dir)
  4. Environment variables (CLAIMRAG_*)`,
		Example: `  # Create the user config from the template
  claimrag config init

  # Create .claimrag.yaml in the current project
  claimrag config init --project

  # Show effective configuration
  claimrag config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(flags))
	cmd.AddCommand(newConfigShowCmd(flags))
	cmd.AddCommand(newConfigPathCmd(flags))

	return cmd
}

func newConfigInitCmd(flags *globalFlags) *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Create a configuration file from the commented template.

Without --project the user config is written. An existing file is left
alone unless --force is given; then it is backed up and rewritten with
the effective settings, keeping your values and adding new keys.`,
		Example: `  claimrag config init
  claimrag config init --project --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				path = filepath.Join(flags.dir, config.ProjectConfigNames[0])
			}
			return runConfigInit(cmd, flags, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and rewrite an existing file")
	cmd.Flags().BoolVar(&project, "project", false, "Write .claimrag.yaml in the project directory")

	return cmd
}

func runConfigInit(cmd *cobra.Command, flags *globalFlags, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to rewrite it (a backup is kept)")
			return nil
		}
		return runConfigUpgrade(out, flags, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("📋", "Run 'claimrag config show' to verify")
	return nil
}

// runConfigUpgrade backs up path and rewrites it with the effective
// configuration.
func runConfigUpgrade(out *output.Writer, flags *globalFlags, path string) error {
	e, err := loadEnv(flags)
	if err != nil {
		return err
	}
	backup, err := config.BackupFile(path)
	if err != nil {
		return err
	}
	if err := e.cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Configuration rewritten")
	out.Statusf("📁", "Location: %s", path)
	out.Statusf("💾", "Backup: %s", backup)
	return nil
}

func newConfigShowCmd(flags *globalFlags) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, config files and
environment variables. --source defaults prints the built-in defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, flags, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, flags *globalFlags, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		e, err := loadEnv(flags)
		if err != nil {
			return err
		}
		cfg = e.cfg
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown config source %q (want merged or defaults)", source)
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newConfigPathCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print config file paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.KeyValues([]output.KV{
				{Key: "user", Value: config.GetUserConfigPath()},
				{Key: "project", Value: filepath.Join(flags.dir, config.ProjectConfigNames[0])},
			})
			return nil
		},
	}
}
