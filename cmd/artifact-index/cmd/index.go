package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/index"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/store"
	"github.com/continuity-tools/artifact-index/internal/ui"
)

type indexOptions struct {
	sel     index.Selection
	all     bool
	file    string
	noTUI   bool
	backend config.BackendFlags
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index handoffs, plans and continuity ledgers",
		Long: `Index artifact documents into the database.

Select what to index with --handoffs, --plans, --continuity or --all, or
index a single document with --file (the kind is detected from its path).
Documents that fail to parse are reported and skipped; the rest of the
run continues.`,
		Example: `  # Index everything
  artifact-index index --all

  # Re-index one handoff after writing it
  artifact-index index --file thoughts/shared/handoffs/auth/task-03.md

  # Index plans into a specific SQLite file
  artifact-index index --plans --db /tmp/context.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.all {
				opts.sel = index.All()
			}
			if opts.file == "" && opts.sel.Empty() {
				return cmd.Help()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, a, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.sel.Handoffs, "handoffs", false, "Index handoffs")
	cmd.Flags().BoolVar(&opts.sel.Plans, "plans", false, "Index plans")
	cmd.Flags().BoolVar(&opts.sel.Continuity, "continuity", false, "Index continuity ledgers")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Index every kind")
	cmd.Flags().StringVar(&opts.file, "file", "", "Index a single document")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Print plain summary lines even on a terminal")
	cmd.Flags().StringVar(&opts.backend.DBPath, "db", "", "SQLite database path (forces the embedded backend)")
	cmd.Flags().StringVar(&opts.backend.Backend, "backend", "", "Backend: auto, embedded or server")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	b, _, err := a.openBackend(ctx, cmd, opts.backend)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	out.Printf("Using database: %s", b.Describe())

	if opts.file != "" {
		ix := index.New(b, a.cfg)
		rec, err := ix.IndexFile(ctx, opts.file)
		if err != nil {
			return err
		}
		out.Successf("Indexed %s: %s", kindNoun(rec.Kind()), rec.Path())
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithErrOutput(cmd.ErrOrStderr()),
		ui.WithForcePlain(opts.noTUI),
		ui.WithProjectDir(a.cfg.Root),
		ui.WithInterrupt(cancel)))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("progress_renderer_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	ixOpts := []index.Option{index.WithProgress(func(p index.Progress) {
		if p.Err != nil {
			renderer.AddError(ui.ErrorEvent{File: p.Path, Err: p.Err})
		}
		renderer.UpdateProgress(ui.ProgressEvent{
			Label:       kindTitle(p.Kind),
			Current:     p.Done,
			Total:       p.Total,
			CurrentFile: p.Path,
		})
	})}
	if s, ok := b.(*store.SQLite); ok {
		ixOpts = append(ixOpts, index.WithBatchLock(s.Path()))
	}
	ix := index.New(b, a.cfg, ixOpts...)

	start := time.Now()
	results, err := ix.Run(ctx, opts.sel)
	renderer.Complete(completionStats(results, time.Since(start), err))
	if err != nil {
		return err
	}

	slog.Info("index_run_complete",
		slog.String("backend", b.Describe()),
		slog.Int("workers", ix.Workers()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func completionStats(results []*index.Result, d time.Duration, err error) ui.CompletionStats {
	stats := ui.CompletionStats{Duration: d, Err: err}
	for _, res := range results {
		stats.Kinds = append(stats.Kinds, ui.KindStats{
			Title:   kindTitle(res.Kind),
			Noun:    kindNoun(res.Kind) + "s",
			Dir:     res.Dir,
			Missing: res.Missing,
			Found:   res.Found,
			Indexed: res.Indexed,
			Skipped: res.Skipped(),
		})
	}
	return stats
}

// kindNoun is the singular noun for k used in progress lines.
func kindNoun(k artifact.Kind) string {
	switch k {
	case artifact.KindHandoff:
		return "handoff"
	case artifact.KindPlan:
		return "plan"
	case artifact.KindContinuity:
		return "continuity ledger"
	}
	return "document"
}

func kindTitle(k artifact.Kind) string {
	s := string(k)
	if s == "" {
		return "Source"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseKind maps a --kind flag value to a Kind. Empty means all kinds.
func parseKind(s string) (artifact.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return artifact.KindUnknown, nil
	case "handoffs", "handoff":
		return artifact.KindHandoff, nil
	case "plans", "plan":
		return artifact.KindPlan, nil
	case "continuity", "ledgers", "ledger":
		return artifact.KindContinuity, nil
	}
	return artifact.KindUnknown, errors.New(errors.ErrCodeUnknownKind,
		fmt.Sprintf("unknown kind %q", s), nil).
		WithSuggestion("use handoffs, plans or continuity")
}
