package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/store"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

// MaxQueryLength is the longest query, in runes, the engine will run.
const MaxQueryLength = 256

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs the search pipeline.
type Engine struct {
	retriever       *Retriever
	overrides       store.OverrideStore
	engagement      store.EngagementStore
	cache           *ResultCache
	metrics         *telemetry.QueryMetrics
	rules           atomic.Pointer[Rules]
	maxVariants     int
	pipelineTimeout time.Duration
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithRules sets the rule tables. The built-in rules are used otherwise.
func WithRules(r *Rules) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rules.Store(r)
		}
	}
}

// WithResultCache enables response caching and request coalescing.
func WithResultCache(c *ResultCache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithEngagement sets where community engagement counters come from.
// Without it every candidate has zero engagement.
func WithEngagement(s store.EngagementStore) EngineOption {
	return func(e *Engine) {
		e.engagement = s
	}
}

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxVariants caps the number of sub-queries per search.
func WithMaxVariants(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxVariants = n
		}
	}
}

// WithPipelineTimeout bounds one full pipeline run. Zero means no bound
// beyond the caller's context.
func WithPipelineTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.pipelineTimeout = d
		}
	}
}

// NewEngine creates an engine over retriever and the moderation overrides.
func NewEngine(retriever *Retriever, overrides store.OverrideStore, opts ...EngineOption) (*Engine, error) {
	if retriever == nil || retriever.catalog == nil {
		return nil, fmt.Errorf("%w: retriever with a catalog is required", ErrNilDependency)
	}
	if overrides == nil {
		return nil, fmt.Errorf("%w: moderation overrides are required", ErrNilDependency)
	}

	e := &Engine{
		retriever:   retriever,
		overrides:   overrides,
		maxVariants: DefaultMaxVariants,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules.Load() == nil {
		e.rules.Store(DefaultRules())
	}
	return e, nil
}

// Rules returns the rules snapshot in use.
func (e *Engine) Rules() *Rules {
	return e.rules.Load()
}

// SetRules swaps in r for subsequent searches and drops cached results
// computed under the old rules. Searches already running finish on the
// snapshot they started with.
func (e *Engine) SetRules(r *Rules) {
	if r == nil {
		return
	}
	e.rules.Store(r)
	if e.cache != nil {
		e.cache.Purge()
	}
}

// ReloadRules loads path and swaps it in. On error the running rules stay.
func (e *Engine) ReloadRules(path string) error {
	var (
		r   *Rules
		err error
	)
	if path == "" {
		r = DefaultRules()
	} else if r, err = LoadRules(path); err != nil {
		slog.Warn("rules_reload_failed", gserrors.LogAttrs(err)...)
		return err
	}
	e.SetRules(r)
	slog.Info("rules_reloaded", slog.String("path", path))
	return nil
}

// Search runs raw through the pipeline. An empty query returns an empty
// result without touching any store. An error is returned only when the
// catalog or the moderation overrides could not be read.
func (e *Engine) Search(ctx context.Context, raw string, opts SearchOptions) (*SearchResult, error) {
	start := time.Now()

	q := Normalize(raw)
	if q.Empty() {
		return &SearchResult{Candidates: []Candidate{}}, nil
	}
	if utf8.RuneCountInString(q.Text) > MaxQueryLength {
		slog.Warn("search_query_too_long",
			slog.Int("runes", utf8.RuneCountInString(q.Text)),
			slog.Int("max", MaxQueryLength))
		return &SearchResult{Candidates: []Candidate{}}, nil
	}

	compute := func(ctx context.Context) (*SearchResult, error) {
		return e.execute(ctx, q, opts)
	}

	var (
		res *SearchResult
		err error
	)
	if e.cache == nil || opts.NoCache {
		res, err = compute(ctx)
	} else {
		res, err = e.cache.GetOrCompute(ctx, CacheKey(q, opts), compute)
	}
	if err != nil {
		slog.Error("search_failed",
			append([]any{slog.String("query", q.Text)}, gserrors.LogAttrs(err)...)...)
		return nil, err
	}

	res.ElapsedMs = time.Since(start).Milliseconds()
	if e.metrics != nil {
		e.metrics.Record(telemetry.QueryEvent{
			Query:       q.Text,
			Intent:      res.Intent,
			ResultCount: len(res.Candidates),
			Considered:  res.TotalConsidered,
			Latency:     time.Since(start),
			CacheHit:    res.CacheHit,
			Degraded:    res.DegradedSource,
		})
	}
	return res, nil
}

// execute runs one uncached pipeline pass.
func (e *Engine) execute(ctx context.Context, q Query, opts SearchOptions) (*SearchResult, error) {
	start := time.Now()
	rules := e.Rules()

	if e.pipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.pipelineTimeout)
		defer cancel()
	}

	class := Classify(q, opts, rules)
	variants := NewExpander(rules, e.maxVariants).Expand(q, class)

	slog.Debug("search_started",
		slog.String("query", q.Text),
		slog.String("intent", class.Intent.String()),
		slog.Any("variants", variants))

	retrieveStart := time.Now()
	got, err := e.retriever.Retrieve(ctx, variants, q.Text, class.Profile.EarlyTerminationCount)
	if err != nil {
		return nil, err
	}
	retrieveMs := time.Since(retrieveStart).Milliseconds()

	ids := make([]string, len(got.Records))
	for i, r := range got.Records {
		ids[i] = r.ID
	}

	var flags map[string]store.Flag
	if len(ids) > 0 {
		flags, err = e.overrides.LookupFlags(ctx, ids)
		if err != nil {
			return nil, gserrors.New(gserrors.ErrCodeModerationUnavailable,
				"cannot read moderation overrides", err)
		}
	}

	var counts map[string]store.Engagement
	if e.engagement != nil && len(ids) > 0 {
		counts, err = e.engagement.Counts(ctx, ids)
		if err != nil {
			slog.Warn("engagement_unavailable", slog.String("error", err.Error()))
			counts = nil
		}
	}

	candidates := make([]Candidate, len(got.Records))
	for i, r := range got.Records {
		c := newCandidate(r)
		if f, ok := flags[r.ID]; ok {
			c.ModerationFlag = f
		}
		c.Engagement = counts[r.ID]
		candidates[i] = c
	}

	filtered, stages := NewPipeline(rules, class, opts).Run(candidates)
	scored := ScoreCandidates(filtered, ScoreContext{Intent: class.Intent, Variants: variants, Year: class.Year}, rules)
	ranked, dropped := Rank(scored, class.Profile)

	res := &SearchResult{
		Intent:          class.Intent.String(),
		Candidates:      ranked,
		TotalConsidered: len(got.Records),
		ElapsedMs:       time.Since(start).Milliseconds(),
		DegradedSource:  got.Degraded,
	}
	if opts.Explain {
		ex := &Explain{
			Intent:          class.Intent.String(),
			Variants:        variants,
			Retrieved:       len(got.Records),
			External:        got.External,
			EarlyTerminated: got.EarlyTerminated,
			ProviderCalled:  got.ProviderCalled,
			Stages:          stages,
			RankDropped:     dropped,
			Weights:         rules.Weights,
			Profile:         class.Profile,
			Timings: map[string]int{
				"retrieve": int(retrieveMs),
				"total":    int(time.Since(start).Milliseconds()),
			},
		}
		if class.Franchise != nil {
			ex.Franchise = class.Franchise.Key
		}
		res.Explain = ex
	}

	slog.Info("search_completed",
		slog.String("query", q.Text),
		slog.String("intent", class.Intent.String()),
		slog.Int("considered", res.TotalConsidered),
		slog.Int("results", len(ranked)),
		slog.Bool("degraded", res.DegradedSource),
		slog.Duration("duration", time.Since(start)))

	return res, nil
}
