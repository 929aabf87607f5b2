package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/output"
	"github.com/continuity-tools/artifact-index/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	kind    string
	limit   int
	format  string // "text", "json"
	backend config.BackendFlags
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed artifacts",
		Long: `Search handoffs, plans and continuity ledgers.

On SQLite the search is full-text and ranked by relevance; on a database
server it is a case-insensitive substring match. Every search is recorded
in the queries table.`,
		Example: `  artifact-index search "token refresh"
  artifact-index search pgx --kind plans --limit 3
  artifact-index search "auth" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, a, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "", "Limit to one kind: handoffs, plans, continuity")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.backend.DBPath, "db", "", "SQLite database path (forces the embedded backend)")
	cmd.Flags().StringVar(&opts.backend.Backend, "backend", "", "Backend: auto, embedded or server")

	return cmd
}

// searchResult is the JSON shape of one hit.
type searchResult struct {
	Kind     string  `json:"kind"`
	ID       string  `json:"id"`
	FilePath string  `json:"file_path"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}
	kind, err := parseKind(opts.kind)
	if err != nil {
		return err
	}

	b, _, err := a.openBackend(ctx, cmd, opts.backend)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	slog.Info("search_started", slog.String("query", query), slog.String("kind", string(kind)), slog.Int("limit", opts.limit))
	hits, err := store.Search(ctx, b, store.SearchOptions{Query: query, Kind: kind, Limit: opts.limit})
	if err != nil {
		return err
	}
	if err := store.LogQuery(ctx, b, query, kind, len(hits)); err != nil {
		slog.Warn("query_log_failed", slog.String("error", err.Error()))
	}
	slog.Info("search_complete", slog.Int("results", len(hits)))

	if opts.format == "json" {
		results := make([]searchResult, len(hits))
		for i, h := range hits {
			results[i] = searchResult{
				Kind:     string(h.Kind),
				ID:       h.ID,
				FilePath: h.FilePath,
				Title:    h.Title,
				Snippet:  h.Snippet,
				Score:    h.Score,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Printf("No results for %q", query)
		return nil
	}
	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = "(untitled)"
		}
		out.Header(fmt.Sprintf("%d. [%s] %s", i+1, kindNoun(h.Kind), title))
		out.Dim("   " + h.FilePath)
		if h.Snippet != "" && h.Snippet != h.Title {
			out.Println("   " + strings.Join(strings.Fields(h.Snippet), " "))
		}
	}
	return nil
}
