// Package cmd provides the CLI commands for artifact-index.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/logging"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/store"
	"github.com/continuity-tools/artifact-index/pkg/version"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	debug          bool
	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd creates the root command for the artifact-index CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "artifact-index",
		Short: "Index handoffs, plans and continuity ledgers for search",
		Long: `artifact-index parses session handoffs, implementation plans and
continuity ledgers and stores them in a searchable database.

The database is SQLite with full-text search by default. When
CONTINUOUS_CLAUDE_DB_URL (or DATABASE_URL) is set, a Postgres server is
used instead, falling back to SQLite if the server cannot be reached.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}

	cmd.SetVersionTemplate("artifact-index version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints a failing command's error.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), errors.FormatForCLI(err))
	}
	return err
}

// setup loads configuration for the project containing the working
// directory and starts logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Resolve(cfg.Logging.File)
	}
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	if a.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is not worth failing a command over.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging disabled: %v\n", err)
		return nil
	}
	a.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("root", root),
		slog.String("version", version.Version))
	return nil
}

func (a *app) teardown() {
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
}

// openBackend resolves and opens the destination database. Fallback from an
// unreachable auto-selected server is reported on stderr.
func (a *app) openBackend(ctx context.Context, cmd *cobra.Command, flags config.BackendFlags) (store.Backend, config.BackendChoice, error) {
	choice, err := a.cfg.ResolveBackend(flags)
	if err != nil {
		return nil, choice, err
	}

	errOut := output.New(cmd.ErrOrStderr())
	b, err := store.Open(ctx, choice, func(cause error) {
		errOut.Warningf("Database server unreachable (%s), falling back to SQLite", errors.Diagnostic(cause))
	})
	if err != nil {
		return nil, choice, err
	}
	return b, choice, nil
}

func closeBackend(b store.Backend) {
	if err := b.Close(); err != nil {
		slog.Warn("backend_close_failed", slog.String("error", err.Error()))
	}
}
