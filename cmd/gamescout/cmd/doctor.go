package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/gamescout/internal/config"
	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/preflight"
	"github.com/Aman-CERP/gamescout/internal/provider"
	"github.com/Aman-CERP/gamescout/internal/search"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

// doctorProbeQuery is sent to the provider by doctor --online.
const doctorProbeQuery = "tetris"

// doctorOutput is the JSON output format for doctor.
type doctorOutput struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		online     bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run diagnostics to ensure gamescout can operate correctly.

Checks:
  - Configuration and rules file validity
  - Data directory write access and free disk space (50MB minimum)
  - Open-file limit
  - Catalog backend reachability and record count
  - Telemetry store
  - External provider configuration (and reachability with --online)

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  gamescout doctor

  # Also send one query to the external provider
  gamescout doctor --online

  # JSON output for scripting
  gamescout doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, verbose, jsonOutput, online)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&online, "online", false, "Send a probe query to the external provider")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, verbose, jsonOutput, online bool) error {
	cfg, cfgErr := loadConfig()
	checks := []preflight.Check{configCheck(cfgErr)}
	if cfgErr != nil {
		// Environment checks still run against the default locations.
		cfg = config.NewConfig()
	}

	dataDir := config.DefaultDataDir()
	if cfg.Catalog.Backend != "postgres" && cfg.Catalog.Path != "" {
		dataDir = filepath.Dir(cfg.Catalog.Path)
	}
	checks = append(checks,
		preflight.WritePermissions(dataDir),
		preflight.DiskSpace(dataDir),
		preflight.FileDescriptors(),
	)
	if cfgErr == nil {
		checks = append(checks,
			rulesCheck(cfg),
			catalogCheck(cfg),
			telemetryCheck(cfg),
			providerCheck(cfg, online),
		)
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.Run(ctx, checks...)

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(doctorOutput{
			Status: preflight.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if preflight.HasCriticalFailures(results) {
		return gserrors.New(gserrors.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Fix the failed checks above and run 'gamescout doctor' again")
	}
	return nil
}

func configCheck(err error) preflight.Check {
	return func(context.Context) preflight.CheckResult {
		if err != nil {
			r := preflight.Fail("config", errMessage(err))
			r.Details = "Run 'gamescout config show' to see the merged configuration"
			return r
		}
		source := "defaults"
		switch {
		case configPath != "":
			source = configPath
		case config.UserConfigExists():
			source = config.GetUserConfigPath()
		}
		return preflight.Pass("config", source)
	}
}

func rulesCheck(cfg *config.Config) preflight.Check {
	return func(context.Context) preflight.CheckResult {
		if cfg.RulesPath == "" {
			return preflight.Pass("rules", "built-in")
		}
		rules, err := search.LoadRules(cfg.RulesPath)
		if err != nil {
			return preflight.Fail("rules", errMessage(err))
		}
		return preflight.Pass("rules", fmt.Sprintf("%s (%d franchises)", cfg.RulesPath, len(rules.Franchises)))
	}
}

func catalogCheck(cfg *config.Config) preflight.Check {
	return func(ctx context.Context) preflight.CheckResult {
		const name = "catalog"
		stores, err := openStores(ctx, cfg)
		if err != nil {
			return preflight.Fail(name, errMessage(err))
		}
		defer func() { _ = stores.Close() }()

		stats, err := stores.Stats(ctx)
		if err != nil {
			return preflight.Fail(name, errMessage(err))
		}
		msg := fmt.Sprintf("%s: %d records, %d overrides", cfg.Catalog.Backend, stats.Records, stats.Overrides)
		if stats.Records == 0 {
			r := preflight.Warn(name, msg)
			r.Details = "Run 'gamescout ingest <file.jsonl>' to load games"
			return r
		}
		return preflight.Pass(name, msg)
	}
}

func telemetryCheck(cfg *config.Config) preflight.Check {
	return func(context.Context) preflight.CheckResult {
		const name = "telemetry"
		if cfg.Telemetry.Disabled {
			return preflight.Pass(name, "disabled")
		}
		ms, err := telemetry.OpenSQLiteStore(cfg.Telemetry.Path)
		if err != nil {
			return preflight.Warn(name, fmt.Sprintf("unavailable, queries will not be recorded: %v", err))
		}
		_ = ms.Close()
		return preflight.Pass(name, cfg.Telemetry.Path)
	}
}

func providerCheck(cfg *config.Config, online bool) preflight.Check {
	return func(ctx context.Context) preflight.CheckResult {
		const name = "provider"
		if cfg.Provider.Endpoint == "" {
			return preflight.Pass(name, "not configured, catalog only")
		}
		if !online {
			return preflight.Pass(name, cfg.Provider.Endpoint)
		}

		p, err := provider.NewHTTPProvider(provider.Config{
			Endpoint:      cfg.Provider.Endpoint,
			APIKey:        cfg.Provider.APIKey,
			Timeout:       cfg.Provider.Timeout,
			RatePerSecond: cfg.Provider.RatePerSecond,
			Burst:         cfg.Provider.Burst,
			MaxFailures:   cfg.Provider.MaxFailures,
			ResetTimeout:  cfg.Provider.ResetTimeout,
		})
		if err != nil {
			return preflight.Warn(name, errMessage(err))
		}
		defer func() { _ = p.Close() }()

		start := time.Now()
		records, err := p.Search(ctx, doctorProbeQuery, 1)
		if err != nil {
			// Searches degrade to catalog-only when the provider is down.
			return preflight.Warn(name, fmt.Sprintf("%s unreachable: %s", cfg.Provider.Endpoint, errMessage(err)))
		}
		return preflight.Pass(name, fmt.Sprintf("%s answered in %s (%d records)",
			cfg.Provider.Endpoint, time.Since(start).Round(time.Millisecond), len(records)))
	}
}

// errMessage returns the user-facing message of err without its code prefix.
func errMessage(err error) string {
	var se *gserrors.ScoutError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
