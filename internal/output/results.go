package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/gamescout/internal/search"
	"github.com/Aman-CERP/gamescout/internal/store"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

const nameWidth = 40

// Results prints a ranked listing of res for query.
func (w *Writer) Results(query string, res *search.SearchResult) {
	if res == nil || len(res.Candidates) == 0 {
		w.Warningf("No games found for %q", query)
		if res != nil && res.DegradedSource {
			w.Status("", "external source unavailable, results may be incomplete")
		}
		return
	}

	heading := fmt.Sprintf("%d results for %q", len(res.Candidates), query)
	if res.Intent != "" {
		heading += " (" + res.Intent + ")"
	}
	w.Header(heading)

	var tags []string
	tags = append(tags, fmt.Sprintf("%d considered", res.TotalConsidered))
	tags = append(tags, fmt.Sprintf("%dms", res.ElapsedMs))
	if res.CacheHit {
		tags = append(tags, "cached")
	}
	if res.DegradedSource {
		tags = append(tags, w.styles.Warning.Render("degraded"))
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(strings.Join(tags, " · ")))
	w.Newline()

	for i, c := range res.Candidates {
		w.candidate(i+1, c)
	}
}

func (w *Writer) candidate(rank int, c search.Candidate) {
	year := "    "
	if c.ReleaseYear > 0 {
		year = fmt.Sprintf("%4d", c.ReleaseYear)
	}
	score := ""
	if c.Scores != nil {
		score = fmt.Sprintf("%.3f", c.Scores.Composite)
	}

	_, _ = fmt.Fprintf(w.out, "%s %s %s %s %s\n",
		w.styles.Rank.Render(fmt.Sprintf("%3d.", rank)),
		w.styles.Title.Render(pad(c.CanonicalName, nameWidth)),
		w.styles.Meta.Render(year),
		w.styles.Meta.Render(pad(string(c.Category), 12)),
		w.styles.Score.Render(score))

	var meta []string
	if c.Developer != "" {
		meta = append(meta, c.Developer)
	}
	if c.Publisher != "" && c.Publisher != c.Developer {
		meta = append(meta, c.Publisher)
	}
	if len(c.Platforms) > 0 {
		meta = append(meta, strings.Join(c.Platforms, ", "))
	}
	if c.Source == store.SourceExternal {
		meta = append(meta, "via "+string(c.Source))
	}
	if len(meta) > 0 {
		_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Dim.Render(strings.Join(meta, " · ")))
	}
}

// Explain prints how a result was produced.
func (w *Writer) Explain(ex *search.Explain) {
	if ex == nil {
		return
	}
	w.Newline()
	w.Header("Explain")
	w.KeyValue("intent", ex.Intent)
	if ex.Franchise != "" {
		w.KeyValue("franchise", ex.Franchise)
	}
	w.KeyValue("variants", strings.Join(ex.Variants, " | "))
	w.KeyValue("retrieved", fmt.Sprintf("%d (external %d, early stop %t, provider called %t)",
		ex.Retrieved, ex.External, ex.EarlyTerminated, ex.ProviderCalled))
	for _, st := range ex.Stages {
		w.KeyValue("stage "+st.Stage, fmt.Sprintf("%d in, %d removed", st.In, st.Removed))
	}
	w.KeyValue("rank dropped", ex.RankDropped)
	w.KeyValue("weights", fmt.Sprintf("relevance %.2f, popularity %.2f, quality %.2f, engagement %.2f",
		ex.Weights.Relevance, ex.Weights.Popularity, ex.Weights.Quality, ex.Weights.Engagement))
	w.KeyValue("profile", fmt.Sprintf("limit %d, early stop %d, quality >= %.2f, relevance >= %.2f",
		ex.Profile.FinalResultLimit, ex.Profile.EarlyTerminationCount,
		ex.Profile.QualityThreshold, ex.Profile.RelevanceFloor))
	if len(ex.Timings) > 0 {
		keys := make([]string, 0, len(ex.Timings))
		for k := range ex.Timings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %dms", k, ex.Timings[k]))
		}
		w.KeyValue("timings", strings.Join(parts, ", "))
	}
}

// Metrics prints a telemetry summary.
func (w *Writer) Metrics(snap *telemetry.Snapshot) {
	if snap == nil || snap.TotalQueries == 0 {
		w.Status("", "No queries recorded")
		return
	}
	w.Header(fmt.Sprintf("Queries since %s", snap.Since.Format("2006-01-02")))
	w.KeyValue("total", snap.TotalQueries)
	w.KeyValue("zero results", fmt.Sprintf("%d (%.1f%%)", snap.ZeroResultCount, snap.ZeroResultPercentage()))
	w.KeyValue("cache hits", fmt.Sprintf("%d (%.1f%%)", snap.CacheHits, snap.CacheHitPercentage()))
	w.KeyValue("degraded", snap.DegradedCount)

	intents := make([]string, 0, len(snap.IntentCounts))
	for k := range snap.IntentCounts {
		intents = append(intents, k)
	}
	sort.Strings(intents)
	for _, k := range intents {
		w.KeyValue("intent "+k, snap.IntentCounts[k])
	}

	var latency []string
	for _, b := range telemetry.LatencyBuckets {
		if n := snap.LatencyDistribution[b]; n > 0 {
			latency = append(latency, fmt.Sprintf("%s=%d", b, n))
		}
	}
	if len(latency) > 0 {
		w.KeyValue("latency", strings.Join(latency, " "))
	}

	if len(snap.TopTerms) > 0 {
		terms := make([]string, 0, len(snap.TopTerms))
		for _, t := range snap.TopTerms {
			terms = append(terms, fmt.Sprintf("%s(%d)", t.Term, t.Count))
		}
		w.KeyValue("top terms", strings.Join(terms, " "))
	}
	if len(snap.ZeroResultQueries) > 0 {
		w.KeyValue("recent misses", strings.Join(snap.ZeroResultQueries, ", "))
	}
}

// pad truncates or right-pads s to width runes.
func pad(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}
