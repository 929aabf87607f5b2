package cmd

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
	"github.com/continuity-tools/artifact-index/internal/index"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		poll  bool
		flags config.BackendFlags
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index artifacts as they are written",
		Long: `Watch the project for created or modified handoffs, plans and
continuity ledgers and index each one as soon as writes settle.

Deleting a document does not remove it from the index. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, a, flags, poll)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "Poll for changes instead of using filesystem notifications")
	cmd.Flags().StringVar(&flags.DBPath, "db", "", "SQLite database path (forces the embedded backend)")
	cmd.Flags().StringVar(&flags.Backend, "backend", "", "Backend: auto, embedded or server")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, a *app, flags config.BackendFlags, poll bool) error {
	debounce, err := a.cfg.WatchDebounce()
	if err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "invalid index.watch_debounce", err)
	}

	b, _, err := a.openBackend(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	coord := index.NewCoordinator(index.New(b, a.cfg))
	w, err := watcher.New(watcher.Options{
		DebounceWindow: debounce,
		ExcludeDirs:    a.cfg.Paths.ExcludeDirs,
		Filter:         coord.Filter,
		ForcePolling:   poll,
	})
	if err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "invalid watcher options", err)
	}
	defer func() { _ = w.Stop() }()

	out := output.New(cmd.OutOrStdout())
	out.Printf("Using database: %s", b.Describe())
	out.Printf("Watching %s (%s)", a.cfg.Root, w.Mode())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Start(gctx, a.cfg.Root) })
	g.Go(func() error { return coord.Run(gctx, w) })

	err = g.Wait()
	stats := coord.Stats()
	slog.Info("watch_stopped",
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	out.Printf("Indexed %d, skipped %d, failed %d", stats.Indexed, stats.Skipped, stats.Failed)

	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
