// Package search turns a free-text game query into a ranked, filtered list of
// catalog records. A query is normalised, classified into an intent, expanded
// into variants, retrieved from the catalog (and the external provider when
// the catalog comes up short), filtered, scored and ranked.
package search

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// SearchIntent is what the caller is most likely looking for. It selects the
// thresholds and limits the rest of the pipeline runs with.
type SearchIntent int

const (
	// SpecificGame looks for one title. It is the default intent.
	SpecificGame SearchIntent = iota
	// FranchiseBrowse lists the games of a known franchise.
	FranchiseBrowse
	// GenreDiscovery explores a genre without naming a game.
	GenreDiscovery
	// YearSearch looks for games from a particular year.
	YearSearch
	// DeveloperSearch lists games by a known developer or publisher.
	DeveloperSearch
)

var intentNames = map[SearchIntent]string{
	SpecificGame:    "specific_game",
	FranchiseBrowse: "franchise_browse",
	GenreDiscovery:  "genre_discovery",
	YearSearch:      "year_search",
	DeveloperSearch: "developer_search",
}

// AllIntents lists every intent in classification priority order.
var AllIntents = []SearchIntent{FranchiseBrowse, YearSearch, DeveloperSearch, GenreDiscovery, SpecificGame}

// String returns the snake_case name used in rules files and logs.
func (i SearchIntent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "unknown"
}

// ParseIntent maps a snake_case name back to its intent.
func ParseIntent(name string) (SearchIntent, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for intent, n := range intentNames {
		if n == name {
			return intent, true
		}
	}
	return SpecificGame, false
}

// IntentProfile holds the per-intent knobs of the pipeline.
type IntentProfile struct {
	// EarlyTerminationCount stops retrieval once this many candidates are merged.
	EarlyTerminationCount int `yaml:"early_termination_count" json:"early_termination_count"`

	// QualityThreshold is the minimum quality score a candidate needs to be ranked.
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`

	// FinalResultLimit caps the ranked output.
	FinalResultLimit int `yaml:"final_result_limit" json:"final_result_limit"`

	// RelevanceFloor is the minimum relevance score a candidate needs to be ranked.
	RelevanceFloor float64 `yaml:"relevance_floor" json:"relevance_floor"`

	// PermittedCategories are protected categories this intent lets through.
	PermittedCategories []store.Category `yaml:"permitted_categories,omitempty" json:"permitted_categories,omitempty"`
}

// Classification is the outcome of intent classification.
type Classification struct {
	Intent  SearchIntent
	Profile IntentProfile

	// Franchise is the franchise the query names, nil when none.
	Franchise *Franchise

	// Year is the release year the query names, else the year filter, else 0.
	Year int
}

// Scores are the derived scores of a candidate, all in [0,1].
type Scores struct {
	Relevance  float64 `json:"relevance"`
	Quality    float64 `json:"quality"`
	Popularity float64 `json:"popularity"`
	Engagement float64 `json:"engagement"`
	Composite  float64 `json:"composite"`
}

// Candidate is one game record as it flows through the pipeline.
type Candidate struct {
	ID            string         `json:"id"`
	CanonicalName string         `json:"name"`
	Category      store.Category `json:"category"`
	Platforms     []string       `json:"platforms,omitempty"`
	Genres        []string       `json:"genres,omitempty"`
	Developer     string         `json:"developer,omitempty"`
	Publisher     string         `json:"publisher,omitempty"`
	ReleaseYear   int            `json:"release_year,omitempty"`

	Source         store.Source `json:"source"`
	ModerationFlag store.Flag   `json:"moderation_flag"`

	HasSummary       bool     `json:"has_summary"`
	HasDeveloper     bool     `json:"has_developer"`
	HasPublisher     bool     `json:"has_publisher"`
	HasCoverArt      bool     `json:"has_cover_art"`
	RatingValue      *float64 `json:"rating,omitempty"`
	RatingSampleSize *int     `json:"rating_count,omitempty"`
	FollowerCount    *int     `json:"follower_count,omitempty"`

	Engagement store.Engagement `json:"engagement"`

	// Hint is the store's own relevance signal, kept for explain output.
	Hint float64 `json:"hint,omitempty"`

	// Scores is nil until the scoring stage runs.
	Scores *Scores `json:"scores,omitempty"`

	// exempt marks an allow-listed candidate that removal stages must skip.
	exempt bool
}

// Exempt reports whether removal stages skip this candidate.
func (c Candidate) Exempt() bool {
	return c.exempt
}

// sampleSize returns the rating sample size, 0 when unknown.
func (c Candidate) sampleSize() int {
	if c.RatingSampleSize == nil {
		return 0
	}
	return *c.RatingSampleSize
}

// newCandidate builds a fresh candidate from a catalog or provider record.
func newCandidate(r store.RawRecord) Candidate {
	return Candidate{
		ID:               r.ID,
		CanonicalName:    r.Name,
		Category:         store.ParseCategory(string(r.Category)),
		Platforms:        r.Platforms,
		Genres:           r.Genres,
		Developer:        r.Developer,
		Publisher:        r.Publisher,
		ReleaseYear:      r.Year(),
		Source:           r.Source,
		ModerationFlag:   store.FlagNone,
		HasSummary:       r.SummaryPresent,
		HasDeveloper:     strings.TrimSpace(r.Developer) != "",
		HasPublisher:     strings.TrimSpace(r.Publisher) != "",
		HasCoverArt:      r.CoverPresent,
		RatingValue:      r.RatingValue,
		RatingSampleSize: r.RatingSampleSize,
		FollowerCount:    r.FollowerCount,
		Hint:             r.Hint,
	}
}

// SearchOptions are the caller's optional filters and switches.
type SearchOptions struct {
	// Platform keeps only candidates released on this platform.
	Platform string

	// Year keeps only candidates released in this year.
	Year int

	// Genre keeps only candidates tagged with this genre.
	Genre string

	// Explain attaches pipeline details to the result.
	Explain bool

	// NoCache bypasses the response cache for this call.
	NoCache bool
}

// hasCallerFilters reports whether any caller filter is set.
func (o SearchOptions) hasCallerFilters() bool {
	return o.Platform != "" || o.Year != 0 || o.Genre != ""
}

// SearchResult is the ranked output of one query.
type SearchResult struct {
	Intent          string      `json:"intent,omitempty"`
	Candidates      []Candidate `json:"candidates"`
	TotalConsidered int         `json:"total_considered"`
	ElapsedMs       int64       `json:"elapsed_ms"`
	CacheHit        bool        `json:"cache_hit"`
	DegradedSource  bool        `json:"degraded_source"`
	Explain         *Explain    `json:"explain,omitempty"`
}

// Explain describes how a result was produced.
type Explain struct {
	Intent          string         `json:"intent"`
	Franchise       string         `json:"franchise,omitempty"`
	Variants        []string       `json:"variants"`
	Retrieved       int            `json:"retrieved"`
	External        int            `json:"external"`
	EarlyTerminated bool           `json:"early_terminated"`
	ProviderCalled  bool           `json:"provider_called"`
	Stages          []StageReport  `json:"stages"`
	RankDropped     int            `json:"rank_dropped"`
	Weights         Weights        `json:"weights"`
	Profile         IntentProfile  `json:"profile"`
	Timings         map[string]int `json:"timings_ms,omitempty"`
}

// StageReport counts what one filter stage removed.
type StageReport struct {
	Stage   string `json:"stage"`
	In      int    `json:"in"`
	Removed int    `json:"removed"`
}

// clone returns a deep copy of r: nothing reachable from the copy is shared
// with r.
func (r *SearchResult) clone() *SearchResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Candidates = make([]Candidate, len(r.Candidates))
	for i, c := range r.Candidates {
		out.Candidates[i] = c.clone()
	}
	if r.Explain != nil {
		ex := *r.Explain
		ex.Variants = slices.Clone(r.Explain.Variants)
		ex.Stages = slices.Clone(r.Explain.Stages)
		ex.Profile.PermittedCategories = slices.Clone(r.Explain.Profile.PermittedCategories)
		ex.Timings = maps.Clone(r.Explain.Timings)
		out.Explain = &ex
	}
	return &out
}

func (c Candidate) clone() Candidate {
	c.Platforms = slices.Clone(c.Platforms)
	c.Genres = slices.Clone(c.Genres)
	c.RatingValue = clonePtr(c.RatingValue)
	c.RatingSampleSize = clonePtr(c.RatingSampleSize)
	c.FollowerCount = clonePtr(c.FollowerCount)
	c.Scores = clonePtr(c.Scores)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Provider is the external metadata source consulted when the catalog
// returns too few candidates.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]store.RawRecord, error)
}
