// Package telemetry records local search telemetry: how queries are
// classified, how fast they run, which come back empty and how often the
// external provider degrades. Nothing is reported anywhere; data stays in a
// local SQLite file.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyBuckets lists the buckets in ascending order.
var LatencyBuckets = []LatencyBucket{BucketP10, BucketP50, BucketP100, BucketP500, BucketP1000}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Outcome counters tracked alongside intents.
const (
	OutcomeCacheHit   = "cache_hit"
	OutcomeDegraded   = "degraded"
	OutcomeZeroResult = "zero_result"
)

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one completed search.
type QueryEvent struct {
	Query       string
	Intent      string
	ResultCount int
	Considered  int
	Latency     time.Duration
	CacheHit    bool
	Degraded    bool
	Timestamp   time.Time
}

// IsZeroResult reports whether the search returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Terms
// =============================================================================

// ExtractTerms returns the lowercased words of query that are at least three
// bytes long.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	IntentCounts        map[string]int64        `json:"intent_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHits           int64                   `json:"cache_hits"`
	DegradedCount       int64                   `json:"degraded_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of empty results as a percentage.
func (s *Snapshot) ZeroResultPercentage() float64 {
	return percent(s.ZeroResultCount, s.TotalQueries)
}

// CacheHitPercentage returns the share of cache hits as a percentage.
func (s *Snapshot) CacheHitPercentage() float64 {
	return percent(s.CacheHits, s.TotalQueries)
}

// RepetitionSummary returns a one-line summary of repeated queries.
func (s *Snapshot) RepetitionSummary() string {
	if s.TotalQueries == 0 {
		return "No queries recorded"
	}
	return fmt.Sprintf("exact=%.1f%%, unique=%d", percent(s.ExactRepeatCount, s.TotalQueries), s.UniqueQueryCount)
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// =============================================================================
// Store
// =============================================================================

// Store persists flushed metrics.
type Store interface {
	// AddIntentCounts adds to the daily per-intent counters.
	AddIntentCounts(date string, counts map[string]int64) error

	// GetIntentCounts sums per-intent counters over a date range.
	GetIntentCounts(from, to string) (map[string]int64, error)

	// AddOutcomeCounts adds to the daily cache-hit and degraded counters.
	AddOutcomeCounts(date string, counts map[string]int64) error

	// GetOutcomeCounts sums outcome counters over a date range.
	GetOutcomeCounts(from, to string) (map[string]int64, error)

	// AddTermCounts adds to the term frequency counters.
	AddTermCounts(terms map[string]int64) error

	// GetTopTerms returns the n most searched terms.
	GetTopTerms(n int) ([]TermCount, error)

	// AddZeroResultQuery records a query that returned nothing.
	AddZeroResultQuery(query string, at time.Time) error

	// GetZeroResultQueries returns the most recent empty queries.
	GetZeroResultQueries(n int) ([]string, error)

	// AddLatencyCounts adds to the daily latency histogram.
	AddLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums the latency histogram over a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// =============================================================================
// Query Metrics
// =============================================================================

// Config configures a QueryMetrics collector.
type Config struct {
	TopTermsCapacity      int           // default 100
	ZeroResultsCapacity   int           // default 100
	RecentQueriesCapacity int           // default 500
	FlushInterval         time.Duration // 0 disables the background flush
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// pending holds what has been recorded since the last flush.
type pending struct {
	intents   map[string]int64
	outcomes  map[string]int64
	terms     map[string]int64
	latencies map[LatencyBucket]int64
	zero      []QueryEvent
}

func newPending() pending {
	return pending{
		intents:   make(map[string]int64),
		outcomes:  make(map[string]int64),
		terms:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// QueryMetrics collects search telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	intents         map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	degraded        int64
	startTime       time.Time

	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	unflushed pending
	store     Store
	ticker    *time.Ticker
	stopCh    chan struct{}
	closed    bool
}

// NewQueryMetrics creates a collector with the default configuration. A nil
// store keeps metrics in memory only.
func NewQueryMetrics(store Store) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with cfg.
func NewQueryMetricsWithConfig(store Store, cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		intents:       make(map[string]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recent,
		unflushed:     newPending(),
		store:         store,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.ticker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.ticker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record adds one search to the metrics.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.totalQueries++
	m.intents[event.Intent]++
	m.unflushed.intents[event.Intent]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.unflushed.terms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResultCount++
		m.zeroResults.Add(event.Query)
		m.unflushed.zero = append(m.unflushed.zero, event)
		m.unflushed.outcomes[OutcomeZeroResult]++
	}
	if event.CacheHit {
		m.cacheHits++
		m.unflushed.outcomes[OutcomeCacheHit]++
	}
	if event.Degraded {
		m.degraded++
		m.unflushed.outcomes[OutcomeDegraded]++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.latencies[bucket]++

	hash := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(hash); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(hash, struct{}{})
}

// hashQuery returns a short hash of the normalised query.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the metrics collected by this process.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	intents := make(map[string]int64, len(m.intents))
	for k, v := range m.intents {
		intents[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var terms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	sortTerms(terms)

	return &Snapshot{
		IntentCounts:        intents,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		CacheHits:           m.cacheHits,
		DegradedCount:       m.degraded,
		ExactRepeatCount:    m.exactRepeatCount,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
		Since:               m.startTime,
	}
}

func sortTerms(terms []TermCount) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}

// Flush writes what was recorded since the last flush to the store. Without
// a store it does nothing. On failure the unflushed counts are kept for the
// next attempt.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = newPending()
	m.mu.Unlock()

	if err := m.write(batch); err != nil {
		m.mu.Lock()
		m.unflushed.merge(batch)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *QueryMetrics) write(batch pending) error {
	today := time.Now().Format(dateLayout)
	if len(batch.intents) > 0 {
		if err := m.store.AddIntentCounts(today, batch.intents); err != nil {
			return err
		}
	}
	if len(batch.outcomes) > 0 {
		if err := m.store.AddOutcomeCounts(today, batch.outcomes); err != nil {
			return err
		}
	}
	if len(batch.terms) > 0 {
		if err := m.store.AddTermCounts(batch.terms); err != nil {
			return err
		}
	}
	if len(batch.latencies) > 0 {
		if err := m.store.AddLatencyCounts(today, batch.latencies); err != nil {
			return err
		}
	}
	for _, ev := range batch.zero {
		if err := m.store.AddZeroResultQuery(ev.Query, ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// merge folds other back into p after a failed flush. Part of a failed batch
// may already be stored, so a retry can count it twice.
func (p *pending) merge(other pending) {
	for k, v := range other.intents {
		p.intents[k] += v
	}
	for k, v := range other.outcomes {
		p.outcomes[k] += v
	}
	for k, v := range other.terms {
		p.terms[k] += v
	}
	for k, v := range other.latencies {
		p.latencies[k] += v
	}
	p.zero = append(other.zero, p.zero...)
}

// Close stops the background flush, flushes once more and closes the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stopCh)
	}

	err := m.Flush()
	if m.store != nil {
		if cerr := m.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
