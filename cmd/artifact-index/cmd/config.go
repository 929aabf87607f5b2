package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/store"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
		Long: `Inspect and create configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/artifact-index/config.yaml)
  3. Project config (.artifact-index.yaml)
  4. ~/.claude/.env, then the project .env
  5. Environment variables (ARTIFACT_INDEX_*, CONTINUOUS_CLAUDE_DB_URL)`,
		Example: `  # Write a project config with the defaults
  artifact-index config init

  # Show effective configuration
  artifact-index config show

  # Print user config file path
  artifact-index config path`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := filepath.Join(a.cfg.Root, config.ProjectConfigNames[0])

			if _, err := os.Stat(path); err == nil && !force {
				out.Warningf("Configuration already exists: %s", path)
				out.Println("Use --force to overwrite")
				return nil
			}

			if err := config.NewConfig().WriteYAML(path); err != nil {
				return err
			}
			out.Successf("Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging all sources. Credentials in the database URL are masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			shown := *a.cfg
			if shown.Database.URL != "" {
				shown.Database.URL = store.RedactURL(shown.Database.URL)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(shown)
			}

			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
