package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/gamescout/internal/config"
	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/store"
)

const (
	defaultIngestBatch = 500
	maxIngestLine      = 1 << 20
	lockRetryDelay     = 100 * time.Millisecond
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	batchSize   int
	lockTimeout time.Duration
}

// ingestLine is one JSON-lines input record. Engagement is optional.
type ingestLine struct {
	store.RawRecord
	Engagement *store.Engagement `json:"engagement,omitempty"`
}

// ingestStats counts what an ingest run did.
type ingestStats struct {
	Imported   int
	Skipped    int
	Engagement int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl|->",
		Short: "Load game records into the catalog",
		Long: `Load game records from a JSON-lines file into the catalog.

Each line is one record with at least "id" and "name". "release_date" is
RFC 3339, e.g. "2017-03-03T00:00:00Z". An optional "engagement" object
({"reviews": n, "list_adds": n}) is stored as first-party engagement. Invalid lines are skipped and logged. Existing
records with the same id are replaced.

Only one ingest may write to a catalog at a time.

Examples:
  gamescout ingest games.jsonl
  cat games.jsonl | gamescout ingest -
  gamescout ingest games.jsonl --batch-size 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", defaultIngestBatch, "Records written per batch")
	cmd.Flags().DurationVar(&opts.lockTimeout, "lock-timeout", 5*time.Second, "How long to wait for another ingest to finish")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, source string, opts ingestOptions) error {
	if opts.batchSize <= 0 {
		return gserrors.InputError("batch size must be positive", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	unlock, err := lockCatalog(ctx, cfg, opts.lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	in, closeIn, err := openIngestSource(cmd.InOrStdin(), source)
	if err != nil {
		return err
	}
	defer closeIn()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	start := time.Now()
	slog.Info("ingest_started", slog.String("source", source), slog.Int("batch_size", opts.batchSize))

	stats, err := ingest(ctx, stores, in, opts.batchSize)
	if err != nil {
		return err
	}

	slog.Info("ingest_complete",
		slog.Int("imported", stats.Imported),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", time.Since(start)))

	out := output.New(cmd.OutOrStdout())
	out.Successf("Imported %d records (%d skipped) in %s",
		stats.Imported, stats.Skipped, time.Since(start).Round(time.Millisecond))
	if stats.Engagement > 0 {
		out.KeyValue("engagement", stats.Engagement)
	}
	return nil
}

// lockCatalog takes the cross-process ingest lock next to the catalog.
func lockCatalog(ctx context.Context, cfg *config.Config, timeout time.Duration) (func(), error) {
	lockPath := cfg.Catalog.Path + ".lock"
	if cfg.Catalog.Path == "" {
		lockPath = filepath.Join(config.DefaultDataDir(), "ingest.lock")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, gserrors.New(gserrors.ErrCodeCatalogWrite, "failed to create lock directory", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		return nil, gserrors.New(gserrors.ErrCodeCatalogLocked,
			fmt.Sprintf("catalog is locked by another ingest (%s)", lockPath), err).
			WithSuggestion("Wait for the other ingest to finish, or remove the lock file if no ingest is running")
	}
	return func() { _ = fl.Unlock() }, nil
}

func openIngestSource(stdin io.Reader, source string) (io.Reader, func(), error) {
	if source == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, gserrors.New(gserrors.ErrCodeInvalidInput,
			fmt.Sprintf("cannot open %s", source), err)
	}
	return f, func() { _ = f.Close() }, nil
}

// ingest reads JSON-lines from r and writes valid records in batches.
func ingest(ctx context.Context, stores *store.Stores, r io.Reader, batchSize int) (ingestStats, error) {
	var (
		stats      ingestStats
		batch      = make([]store.RawRecord, 0, batchSize)
		engagement = make(map[string]store.Engagement)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := stores.Upsert(ctx, batch); err != nil {
			return err
		}
		for _, rec := range batch {
			e, ok := engagement[rec.ID]
			if !ok {
				continue
			}
			if err := stores.Engagement.SetEngagement(ctx, rec.ID, e); err != nil {
				return err
			}
			stats.Engagement++
		}
		stats.Imported += len(batch)
		slog.Debug("ingest_batch_written", slog.Int("records", len(batch)), slog.Int("total", stats.Imported))
		batch = batch[:0]
		clear(engagement)
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxIngestLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line ingestLine
		if err := json.Unmarshal(raw, &line); err != nil {
			stats.Skipped++
			slog.Warn("ingest_line_skipped", slog.Int("line", lineNo), slog.String("error", err.Error()))
			continue
		}
		if err := line.Validate(); err != nil {
			stats.Skipped++
			slog.Warn("ingest_line_skipped", slog.Int("line", lineNo), slog.String("error", err.Error()))
			continue
		}

		batch = append(batch, line.RawRecord)
		if line.Engagement != nil {
			engagement[line.ID] = *line.Engagement
		}
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, gserrors.New(gserrors.ErrCodeInvalidInput,
			fmt.Sprintf("failed to read input at line %d", lineNo+1), err)
	}
	return stats, flush()
}
