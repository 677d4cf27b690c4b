package search

import (
	"math"
	"strings"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// Quality weights. They sum to 1 with the primary-release bonus.
const (
	summaryWeight   = 0.30
	developerWeight = 0.20
	publisherWeight = 0.15
	coverWeight     = 0.20
	primaryBonus    = 0.15
)

// Popularity mix between tier bonus, adjusted rating and followers.
const (
	tierShare     = 0.4
	ratingShare   = 0.4
	followerShare = 0.2
)

// Relevance mix between token overlap and edit distance.
const (
	overlapShare = 0.6
	editShare    = 0.4

	// maxPartialRelevance keeps anything short of an exact name below 1.
	maxPartialRelevance = 0.99

	// yearMatchBase is the relevance a release-year match alone earns when
	// the query also has words to match.
	yearMatchBase = 0.5
)

// ScoreContext is what scoring needs to know about the query.
type ScoreContext struct {
	Intent SearchIntent

	// Variants are the normalised query variants, the query itself first.
	Variants []string

	// Year is the release year searched for, 0 when none.
	Year int
}

// ScoreCandidates returns a copy of in with Scores set on every candidate.
// It does no I/O and the same input always yields the same scores.
func ScoreCandidates(in []Candidate, sc ScoreContext, rules *Rules) []Candidate {
	targets, worded := relevanceQueries(sc, rules)
	out := make([]Candidate, len(in))
	for i, c := range in {
		s := Scores{
			Relevance:  relevance(c, targets, sc, worded),
			Quality:    quality(c, rules),
			Popularity: popularity(c, rules),
			Engagement: engagement(c.Engagement, rules.Scoring.EngagementReference),
		}
		w := rules.Weights
		s.Composite = clamp01(w.Relevance*s.Relevance +
			w.Popularity*s.Popularity +
			w.Quality*s.Quality +
			w.Engagement*s.Engagement)
		c.Scores = &s
		out[i] = c
	}
	return out
}

// relevanceQueries folds the variants, dropping year and generic words for
// year searches since titles rarely carry their release year. worded is false
// when a year search had nothing else; the raw query is then the only target.
func relevanceQueries(sc ScoreContext, rules *Rules) (queries []string, worded bool) {
	out := make([]string, 0, len(sc.Variants))
	for _, v := range sc.Variants {
		q := Fold(v)
		if sc.Intent == YearSearch {
			q = joinWithout(strings.Fields(q), func(w string) bool {
				return isYearWord(w) || rules.generic[w]
			})
		}
		if q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 && len(sc.Variants) > 0 {
		if q := Fold(sc.Variants[0]); q != "" {
			return []string{q}, false
		}
	}
	return out, len(out) > 0
}

// relevance is the best similarity between any query and the candidate's
// name, or its studios and genres for the intents that search those. A year
// search also credits a candidate released in the searched year.
func relevance(c Candidate, queries []string, sc ScoreContext, worded bool) float64 {
	targets := []string{foldName(c.CanonicalName)}
	switch sc.Intent {
	case DeveloperSearch:
		targets = append(targets, foldName(c.Developer), foldName(c.Publisher))
	case GenreDiscovery:
		for _, g := range c.Genres {
			targets = append(targets, foldName(g))
		}
	}

	best := 0.0
	for _, q := range queries {
		for _, t := range targets {
			if s := Similarity(q, t); s > best {
				best = s
			}
		}
	}

	if sc.Intent == YearSearch && sc.Year != 0 && c.ReleaseYear == sc.Year {
		if !worded {
			return 1
		}
		best = yearMatchBase + (1-yearMatchBase)*best
	}
	return best
}

// Similarity scores how well query matches a folded name. An exact match is
// 1; anything else blends token overlap with edit-distance proximity and
// stays below 1.
func Similarity(query, name string) float64 {
	if query == "" || name == "" {
		return 0
	}
	qt, nt := tokenize(query), tokenize(name)
	if query == name || (len(qt) > 0 && equalTokens(qt, nt)) {
		return 1
	}
	s := overlapShare*tokenOverlap(qt, nt) +
		editShare*editSimilarity(strings.Join(qt, " "), strings.Join(nt, " "))
	return math.Min(maxPartialRelevance, clamp01(s))
}

// tokenOverlap favours names that contain every query token, with a smaller
// penalty for extra name tokens.
func tokenOverlap(query, name []string) float64 {
	if len(query) == 0 || len(name) == 0 {
		return 0
	}
	qset := make(map[string]bool, len(query))
	for _, t := range query {
		qset[t] = true
	}
	nset := make(map[string]bool, len(name))
	for _, t := range name {
		nset[t] = true
	}
	shared := 0
	for t := range qset {
		if nset[t] {
			shared++
		}
	}
	union := len(qset) + len(nset) - shared
	coverage := float64(shared) / float64(len(qset))
	jaccard := float64(shared) / float64(union)
	return 0.75*coverage + 0.25*jaccard
}

// editSimilarity is 1 minus the normalised Levenshtein distance.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// quality rewards complete metadata and primary releases.
func quality(c Candidate, rules *Rules) float64 {
	q := 0.0
	if c.HasSummary {
		q += summaryWeight
	}
	if c.HasDeveloper {
		q += developerWeight
	}
	if c.HasPublisher {
		q += publisherWeight
	}
	if c.HasCoverArt {
		q += coverWeight
	}
	if rules.primary[store.ParseCategory(string(c.Category))] {
		q += primaryBonus
	}
	return clamp01(q)
}

func popularity(c Candidate, rules *Rules) float64 {
	s := rules.Scoring
	tier := rules.tierBonus(rules.FranchiseFor(c.CanonicalName))

	adjusted := s.PriorMean
	if c.RatingValue != nil {
		adjusted = BayesianRating(*c.RatingValue, c.sampleSize(), s.PriorMean, s.PriorWeight)
	}

	followers := 0
	if c.FollowerCount != nil {
		followers = *c.FollowerCount
	}

	return clamp01(tierShare*tier +
		ratingShare*clamp01(adjusted/100) +
		followerShare*LogScale(followers, s.FollowerReference))
}

// BayesianRating shrinks rating toward priorMean in proportion to how small
// sampleSize is relative to priorWeight.
func BayesianRating(rating float64, sampleSize int, priorMean, priorWeight float64) float64 {
	n := float64(max(sampleSize, 0))
	if n+priorWeight == 0 {
		return priorMean
	}
	return (rating*n + priorMean*priorWeight) / (n + priorWeight)
}

// LogScale maps a counter onto [0,1], saturating at reference.
func LogScale(count int, reference float64) float64 {
	if count <= 0 || reference <= 1 {
		return 0
	}
	return math.Min(1, math.Log10(float64(count)+1)/math.Log10(reference))
}

func engagement(e store.Engagement, reference float64) float64 {
	return clamp01(0.5*LogScale(e.Reviews, reference) + 0.5*LogScale(e.ListAdds, reference))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
