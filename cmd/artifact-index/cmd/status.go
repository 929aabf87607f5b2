package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/store"
)

// StatusInfo is what status reports.
type StatusInfo struct {
	Backend string           `json:"backend"`
	Dialect string           `json:"dialect"`
	Root    string           `json:"root"`
	Counts  map[string]int64 `json:"counts"`
	// DatabaseSize is set for the embedded backend only.
	DatabaseSize int64 `json:"database_size,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		flags      config.BackendFlags
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the database in use and what it holds",
		Long: `Display which database would be written to and how many handoffs,
plans, continuity ledgers and logged queries it holds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, a, flags, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&flags.DBPath, "db", "", "SQLite database path (forces the embedded backend)")
	cmd.Flags().StringVar(&flags.Backend, "backend", "", "Backend: auto, embedded or server")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, a *app, flags config.BackendFlags, jsonOutput bool) error {
	b, _, err := a.openBackend(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	counts, err := store.Counts(ctx, b)
	if err != nil {
		return err
	}

	info := StatusInfo{
		Backend: b.Describe(),
		Dialect: string(b.Dialect()),
		Root:    a.cfg.Root,
		Counts:  counts,
	}
	if s, ok := b.(*store.SQLite); ok {
		if fi, err := os.Stat(s.Path()); err == nil {
			info.DatabaseSize = fi.Size()
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header("Artifact Index: " + info.Root)
	out.Newline()
	out.KeyValue("Database", 10, info.Backend)
	if info.DatabaseSize > 0 {
		out.KeyValue("Size", 10, output.FormatBytes(info.DatabaseSize))
	}
	out.Newline()
	out.KeyValue("Handoffs", 10, counts["handoffs"])
	out.KeyValue("Plans", 10, counts["plans"])
	out.KeyValue("Continuity", 10, counts["continuity"])
	out.KeyValue("Queries", 10, counts["queries"])
	return nil
}
