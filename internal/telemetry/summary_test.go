package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_RebuildsFromStore(t *testing.T) {
	// Given: flushed metrics for today
	s := newTestStore(t)
	m := NewQueryMetricsWithConfig(s, Config{})
	m.Record(QueryEvent{Query: "zelda", Intent: "franchise_browse", ResultCount: 12, Latency: 30 * time.Millisecond})
	m.Record(QueryEvent{Query: "zelda", Intent: "franchise_browse", ResultCount: 12, CacheHit: true})
	m.Record(QueryEvent{Query: "qwzx", Intent: "specific_game", ResultCount: 0, Degraded: true})
	require.NoError(t, m.Flush())

	// When: summarizing the last week
	snap, err := Summarize(s, 7, time.Now(), 5)

	// Then: totals and outcomes match what was recorded
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.IntentCounts["franchise_browse"])
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.DegradedCount)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"qwzx"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, "zelda", snap.TopTerms[0].Term)
}

func TestSummarize_WindowExcludesOlderDays(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.AddIntentCounts("2026-03-01", map[string]int64{"year_search": 4}))
	require.NoError(t, s.AddIntentCounts("2026-03-09", map[string]int64{"year_search": 1}))

	snap, err := Summarize(s, 2, now, 5)

	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, "2026-03-09", snap.Since.Format(dateLayout))
}
