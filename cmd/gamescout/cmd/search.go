package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	platform string
	year     int
	genre    string
	limit    int  // display cap; 0 keeps the intent's own limit
	explain  bool // show how the result was produced
	json     bool
	noCache  bool
}

func (o searchOptions) engineOptions() search.SearchOptions {
	return search.SearchOptions{
		Platform: o.platform,
		Year:     o.year,
		Genre:    o.genre,
		Explain:  o.explain,
		NoCache:  o.noCache,
	}
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the game catalog",
		Long: `Search the game catalog with intent-aware ranking.

The query is classified (exact title, franchise, developer, year, genre,
platform or open discovery), expanded into variants, retrieved from the
catalog, filtered and ranked.

Examples:
  gamescout search "gta 5"
  gamescout search zelda --platform switch
  gamescout search "games from 2017" --limit 5
  gamescout search "witcher 3" --explain
  gamescout search mario --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "Only games released on this platform")
	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "Only games released in this year")
	cmd.Flags().StringVarP(&opts.genre, "genre", "g", "", "Only games tagged with this genre")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Show at most this many results (0 = intent default)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show intent, variants, stage counts and weights")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the response cache")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("search_started", slog.String("query", query))
	res, err := a.engine.Search(ctx, query, opts.engineOptions())
	if err != nil {
		return err
	}
	if opts.limit > 0 && len(res.Candidates) > opts.limit {
		res.Candidates = res.Candidates[:opts.limit]
	}
	slog.Info("search_complete",
		slog.String("intent", res.Intent),
		slog.Int("results", len(res.Candidates)),
		slog.Int64("elapsed_ms", res.ElapsedMs))

	out := output.New(cmd.OutOrStdout())
	if opts.json {
		return out.JSON(res)
	}
	out.Results(query, res)
	out.Explain(res.Explain)
	return nil
}
