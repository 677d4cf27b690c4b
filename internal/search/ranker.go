package search

import (
	"sort"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// Rank drops candidates under the profile's relevance floor or quality
// threshold, sorts the rest and truncates to the profile's limit. Allowed
// candidates skip both thresholds; denied ones never survive. The returned
// count is how many were dropped by the thresholds.
//
// Order is by composite score, then rating sample size, then name, then id,
// so equal inputs always rank identically.
func Rank(scored []Candidate, profile IntentProfile) ([]Candidate, int) {
	out := make([]Candidate, 0, len(scored))
	dropped := 0
	for _, c := range scored {
		if c.ModerationFlag == store.FlagDeny || c.Scores == nil {
			dropped++
			continue
		}
		if c.ModerationFlag != store.FlagAllow &&
			(c.Scores.Relevance < profile.RelevanceFloor || c.Scores.Quality < profile.QualityThreshold) {
			dropped++
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Scores.Composite != b.Scores.Composite {
			return a.Scores.Composite > b.Scores.Composite
		}
		if a.sampleSize() != b.sampleSize() {
			return a.sampleSize() > b.sampleSize()
		}
		if a.CanonicalName != b.CanonicalName {
			return a.CanonicalName < b.CanonicalName
		}
		return a.ID < b.ID
	})

	if profile.FinalResultLimit > 0 && len(out) > profile.FinalResultLimit {
		out = out[:profile.FinalResultLimit]
	}
	return out, dropped
}
