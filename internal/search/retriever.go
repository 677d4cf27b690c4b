package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/store"
)

// Retriever defaults.
const (
	DefaultPageSize        = 50
	DefaultMaxInFlight     = 5
	DefaultViabilityFloor  = 10
	DefaultProviderTimeout = 5 * time.Second
)

// Retriever gathers a deduplicated candidate set from the catalog, falling
// back to the external provider when the catalog yields too little.
type Retriever struct {
	catalog         store.Catalog
	provider        Provider
	pageSize        int
	maxInFlight     int
	viabilityFloor  int
	providerTimeout time.Duration
	retry           gserrors.RetryConfig
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithProvider sets the external provider. Without one the catalog is the
// only source.
func WithProvider(p Provider) RetrieverOption {
	return func(r *Retriever) {
		r.provider = p
	}
}

// WithPageSize sets how many records each sub-query asks for.
func WithPageSize(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithMaxInFlight bounds concurrent catalog sub-queries.
func WithMaxInFlight(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.maxInFlight = n
		}
	}
}

// WithViabilityFloor sets the candidate count below which the provider is
// consulted. Zero never consults it.
func WithViabilityFloor(n int) RetrieverOption {
	return func(r *Retriever) {
		if n >= 0 {
			r.viabilityFloor = n
		}
	}
}

// WithProviderTimeout bounds the provider call.
func WithProviderTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.providerTimeout = d
		}
	}
}

// WithRetries sets how often a failed catalog sub-query is retried.
func WithRetries(n int) RetrieverOption {
	return func(r *Retriever) {
		if n >= 0 {
			r.retry.MaxRetries = n
		}
	}
}

// NewRetriever creates a retriever over catalog.
func NewRetriever(catalog store.Catalog, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		catalog:         catalog,
		pageSize:        DefaultPageSize,
		maxInFlight:     DefaultMaxInFlight,
		viabilityFloor:  DefaultViabilityFloor,
		providerTimeout: DefaultProviderTimeout,
		retry:           gserrors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieval is what one Retrieve call gathered.
type Retrieval struct {
	// Records in merge order, at most the early-termination count.
	Records []store.RawRecord

	// Degraded is set when the provider was needed but failed.
	Degraded bool

	// ProviderCalled is set when the catalog yield was below the floor.
	ProviderCalled bool

	// EarlyTerminated is set when the cutoff stopped sub-query dispatch.
	EarlyTerminated bool

	// External counts records merged from the provider.
	External int

	// FailedVariants counts catalog sub-queries that errored.
	FailedVariants int
}

// Retrieve runs every variant against the catalog with bounded parallelism
// and stops once limit candidates are merged. The provider is called with
// original when fewer than the viability floor were found.
//
// An error is returned only when the catalog could not answer at all.
func (r *Retriever) Retrieve(ctx context.Context, variants []string, original string, limit int) (*Retrieval, error) {
	if limit <= 0 {
		limit = 1
	}
	acc := newAccumulator(limit)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(r.maxInFlight)

	for _, variant := range variants {
		// Blocks while maxInFlight sub-queries are running.
		if acc.isDone() {
			break
		}
		g.Go(func() error {
			if subCtx.Err() != nil {
				return nil
			}
			records, err := gserrors.RetryWithResult(subCtx, r.retry, func() ([]store.RawRecord, error) {
				return r.catalog.Search(subCtx, variant, r.pageSize)
			})
			if err != nil {
				if subCtx.Err() != nil {
					// Cut off by early termination or the caller.
					return nil
				}
				acc.fail(variant, err)
				return nil
			}
			if acc.merge(records, store.SourcePrimary) {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, gserrors.SourceUnavailable("search was cancelled before the catalog answered", err)
	}

	out := acc.result()
	if out.FailedVariants > 0 && out.FailedVariants == len(variants) {
		return nil, gserrors.SourceUnavailable("catalog failed every sub-query", acc.lastErr).
			WithDetail("variants", strconv.Itoa(len(variants)))
	}
	if out.FailedVariants > 0 {
		slog.Warn("catalog_subquery_failed",
			slog.Int("failed", out.FailedVariants),
			slog.Int("variants", len(variants)),
			slog.String("error", acc.lastErr.Error()))
	}
	if out.EarlyTerminated {
		slog.Debug("retrieval_early_termination",
			slog.Int("merged", len(out.Records)),
			slog.Int("limit", limit))
	}

	if len(out.Records) < r.viabilityFloor && r.provider != nil && !out.EarlyTerminated {
		out.ProviderCalled = true
		external, err := r.callProvider(ctx, original)
		if err != nil {
			out.Degraded = true
			slog.Warn("provider_degraded",
				slog.String("query", original),
				slog.String("error", err.Error()))
		} else {
			acc.merge(external, store.SourceExternal)
			merged := acc.result()
			out.External = len(merged.Records) - len(out.Records)
			out.Records = merged.Records
			out.EarlyTerminated = merged.EarlyTerminated
		}
	}
	return out, nil
}

// callProvider asks the provider under its own deadline so a slow provider
// cannot hold the search past it.
func (r *Retriever) callProvider(ctx context.Context, query string) ([]store.RawRecord, error) {
	pctx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	records, err := r.provider.Search(pctx, query, r.pageSize)
	if err != nil {
		return nil, err
	}
	if pctx.Err() != nil {
		return nil, gserrors.TimeoutError(fmt.Sprintf("provider did not answer within %s", r.providerTimeout), pctx.Err())
	}
	return records, nil
}

// accumulator merges sub-query results for one retrieval. The first record
// seen for an id wins. Once done, later merges are ignored.
type accumulator struct {
	mu      sync.Mutex
	limit   int
	ids     map[string]struct{}
	titles  map[string]struct{}
	records []store.RawRecord
	done    bool
	failed  int
	lastErr error
}

func newAccumulator(limit int) *accumulator {
	return &accumulator{
		limit:  limit,
		ids:    make(map[string]struct{}),
		titles: make(map[string]struct{}),
	}
}

// merge adds records tagged with src and reports whether the limit is reached.
// External records are also dropped when a merged record has the same title
// and year, since provider ids need not match catalog ids.
func (a *accumulator) merge(records []store.RawRecord, src store.Source) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rec := range records {
		if a.done {
			break
		}
		if _, seen := a.ids[rec.ID]; seen || rec.ID == "" {
			continue
		}
		title := titleKey(rec)
		if _, seen := a.titles[title]; seen && src == store.SourceExternal {
			continue
		}
		rec.Source = src
		a.ids[rec.ID] = struct{}{}
		a.titles[title] = struct{}{}
		a.records = append(a.records, rec)
		if len(a.records) >= a.limit {
			a.done = true
		}
	}
	return a.done
}

func (a *accumulator) fail(variant string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	a.lastErr = err
	slog.Debug("catalog_subquery_error",
		slog.String("variant", variant),
		slog.String("error", err.Error()))
}

func (a *accumulator) isDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

func (a *accumulator) result() *Retrieval {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Retrieval{
		Records:         append([]store.RawRecord(nil), a.records...),
		EarlyTerminated: a.done,
		FailedVariants:  a.failed,
	}
}

func titleKey(r store.RawRecord) string {
	return foldName(r.Name) + "|" + strconv.Itoa(r.Year())
}
