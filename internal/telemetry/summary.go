package telemetry

import (
	"fmt"
	"time"
)

// dateLayout is the day key used by the daily counters.
const dateLayout = "2006-01-02"

// Summarize rebuilds a Snapshot from what store holds for the days ending
// at now. Exact-repeat and unique-query counts are per process and stay zero.
func Summarize(store Store, days int, now time.Time, topN int) (*Snapshot, error) {
	if days <= 0 {
		days = 1
	}
	to := now.Format(dateLayout)
	from := now.AddDate(0, 0, -(days - 1)).Format(dateLayout)

	intents, err := store.GetIntentCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("read intent counts: %w", err)
	}
	outcomes, err := store.GetOutcomeCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("read outcome counts: %w", err)
	}
	latencies, err := store.GetLatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("read latency counts: %w", err)
	}
	terms, err := store.GetTopTerms(topN)
	if err != nil {
		return nil, fmt.Errorf("read top terms: %w", err)
	}
	zero, err := store.GetZeroResultQueries(topN)
	if err != nil {
		return nil, fmt.Errorf("read zero-result queries: %w", err)
	}

	var total int64
	for _, n := range intents {
		total += n
	}
	since, _ := time.ParseInLocation(dateLayout, from, now.Location())

	return &Snapshot{
		IntentCounts:        intents,
		TopTerms:            terms,
		ZeroResultQueries:   zero,
		LatencyDistribution: latencies,
		TotalQueries:        total,
		ZeroResultCount:     outcomes[OutcomeZeroResult],
		CacheHits:           outcomes[OutcomeCacheHit],
		DegradedCount:       outcomes[OutcomeDegraded],
		Since:               since,
	}, nil
}
