package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/gamescout/internal/config"
	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/provider"
	"github.com/Aman-CERP/gamescout/internal/search"
	"github.com/Aman-CERP/gamescout/internal/store"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

// loadConfig reads --config when given, otherwise the layered config for the
// working directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(cwd)
}

// openStores opens the catalog backend named in cfg.
func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	return store.Open(ctx, store.Options{
		Backend:        store.Backend(cfg.Catalog.Backend),
		Path:           cfg.Catalog.Path,
		BlevePath:      cfg.Catalog.BlevePath,
		DSN:            cfg.Catalog.DSN,
		ConnectTimeout: cfg.Catalog.ConnectTimeout,
	})
}

// app holds everything a search-serving command needs.
type app struct {
	cfg      *config.Config
	stores   *store.Stores
	provider *provider.HTTPProvider
	metrics  *telemetry.QueryMetrics
	cache    *search.ResultCache
	engine   *search.Engine
}

// newApp opens the stores and builds the engine described by cfg. The
// caller must Close the result.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.stores, err = openStores(ctx, cfg); err != nil {
		return nil, err
	}

	retrieverOpts := []search.RetrieverOption{
		search.WithPageSize(cfg.Catalog.PageSize),
		search.WithMaxInFlight(cfg.Search.MaxInFlight),
		search.WithViabilityFloor(cfg.Search.ViabilityFloor),
		search.WithProviderTimeout(cfg.Provider.Timeout),
		search.WithRetries(cfg.Search.Retries),
	}
	if cfg.Provider.Endpoint != "" {
		a.provider, err = provider.NewHTTPProvider(provider.Config{
			Endpoint:      cfg.Provider.Endpoint,
			APIKey:        cfg.Provider.APIKey,
			Timeout:       cfg.Provider.Timeout,
			RatePerSecond: cfg.Provider.RatePerSecond,
			Burst:         cfg.Provider.Burst,
			MaxFailures:   cfg.Provider.MaxFailures,
			ResetTimeout:  cfg.Provider.ResetTimeout,
		})
		if err != nil {
			return nil, err
		}
		retrieverOpts = append(retrieverOpts, search.WithProvider(a.provider))
	}

	rules := search.DefaultRules()
	if cfg.RulesPath != "" {
		if rules, err = search.LoadRules(cfg.RulesPath); err != nil {
			return nil, err
		}
	}

	engineOpts := []search.EngineOption{
		search.WithRules(rules),
		search.WithEngagement(a.stores.Engagement),
		search.WithMaxVariants(cfg.Search.MaxVariants),
		search.WithPipelineTimeout(cfg.Search.PipelineTimeout),
	}
	if cfg.Cache.Size > 0 {
		a.cache = search.NewResultCache(cfg.Cache.Size, cfg.Cache.TTL)
		engineOpts = append(engineOpts, search.WithResultCache(a.cache))
	}
	if !cfg.Telemetry.Disabled {
		// Metrics are optional; a locked or unwritable file only loses them.
		if ms, openErr := telemetry.OpenSQLiteStore(cfg.Telemetry.Path); openErr != nil {
			slog.Warn("telemetry_unavailable",
				slog.String("path", cfg.Telemetry.Path),
				slog.String("error", openErr.Error()))
		} else {
			a.metrics = telemetry.NewQueryMetrics(ms)
			engineOpts = append(engineOpts, search.WithMetrics(a.metrics))
		}
	}

	retriever := search.NewRetriever(a.stores.Catalog, retrieverOpts...)
	if a.engine, err = search.NewEngine(retriever, a.stores.Overrides, engineOpts...); err != nil {
		return nil, gserrors.New(gserrors.ErrCodeInternal, "failed to build search engine", err)
	}
	return a, nil
}

// Close flushes metrics and releases the provider and stores.
func (a *app) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	if a.stores != nil {
		errs = append(errs, a.stores.Close())
	}
	return errors.Join(errs...)
}
