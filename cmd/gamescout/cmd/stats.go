package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/store"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

// statsOutput is the JSON output format for stats.
type statsOutput struct {
	Catalog store.Stats         `json:"catalog"`
	Days    int                 `json:"days"`
	Queries *telemetry.Snapshot `json:"queries,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		days       int
		top        int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog size and query telemetry",
		Long: `Display catalog counts and query telemetry including:
  - Intent distribution
  - Zero-result, cache-hit and degraded rates
  - Latency distribution
  - Top query terms and recent zero-result queries`,
		Example: `  gamescout stats
  gamescout stats --days 30
  gamescout stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput, days, top)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")
	cmd.Flags().IntVar(&top, "top", 10, "Number of top terms to show")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool, days, top int) error {
	if days <= 0 {
		return gserrors.InputError(fmt.Sprintf("--days must be positive, got %d", days), nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	result := statsOutput{Days: days}
	if result.Catalog, err = stores.Stats(ctx); err != nil {
		return err
	}

	if !cfg.Telemetry.Disabled {
		ms, err := telemetry.OpenSQLiteStore(cfg.Telemetry.Path)
		if err != nil {
			return gserrors.New(gserrors.ErrCodeCatalogOpen, "failed to open metrics store", err)
		}
		defer func() { _ = ms.Close() }()
		if result.Queries, err = telemetry.Summarize(ms, days, time.Now(), top); err != nil {
			return gserrors.New(gserrors.ErrCodeInternal, "failed to read query metrics", err)
		}
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(result)
	}

	out.Header("Catalog")
	out.KeyValue("records", result.Catalog.Records)
	out.KeyValue("overrides", result.Catalog.Overrides)
	out.Newline()
	if result.Queries == nil {
		out.Warning("Telemetry is disabled")
		return nil
	}
	out.Metrics(result.Queries)
	return nil
}
