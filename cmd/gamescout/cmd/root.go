// Package cmd provides the CLI commands for gamescout.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/logging"
	"github.com/Aman-CERP/gamescout/internal/profiling"
	"github.com/Aman-CERP/gamescout/pkg/version"
)

// Persistent flags shared by every command.
var (
	configPath  string
	debugMode   bool
	profileOpts profiling.Options
)

// Per-run state started by the pre-run hook.
var (
	profileSession *profiling.Session
	loggingCleanup func()
	previousLogger *slog.Logger
)

// NewRootCmd creates the root command for the gamescout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gamescout",
		Short: "Intent-aware game search over a local catalog",
		Long: `gamescout searches a local game catalog the way a player types:
abbreviations, franchise names, years and studios are understood, fan
content and add-ons are kept out of the way, and results are ranked by
relevance, popularity, metadata quality and community engagement.

When the catalog comes up short, an external metadata provider can be
consulted if one is configured.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("gamescout version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config, then .gamescout.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.gamescout/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newShellCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newModerateCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging sets up file logging from the config and starts
// any requested profiles.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if cfg, err := loadConfig(); err == nil {
		logCfg.Level = cfg.Logging.Level
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		logCfg.MaxFiles = cfg.Logging.MaxFiles
		if cfg.Logging.Path != "" {
			logCfg.FilePath = cfg.Logging.Path
		}
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		if debugMode {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		// A read-only home should not stop searches.
		logger, cleanup = logging.NewStderrLogger("warn"), func() {}
	}
	previousLogger = slog.Default()
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_started",
		slog.String("log_file", logCfg.FilePath),
		slog.String("version", version.Version))

	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profileSession = s
	}
	return nil
}

// stopProfilingAndLogging stops profiles, writes the heap profile and
// restores the previous logger. Safe to call more than once.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		if previousLogger != nil {
			slog.SetDefault(previousLogger)
		}
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command, cancelling on interrupt, and prints any
// error in CLI form.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	_ = stopProfilingAndLogging(root, nil)
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), gserrors.FormatForCLI(err))
	}
	return err
}
