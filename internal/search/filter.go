package search

import (
	"strings"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// Filter is one stage of the content filter pipeline. Apply must be
// deterministic and must not modify its input slice.
type Filter interface {
	Name() string
	Apply(candidates []Candidate) []Candidate
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc struct {
	name string
	fn   func([]Candidate) []Candidate
}

// NewFilter wraps fn as a named Filter.
func NewFilter(name string, fn func([]Candidate) []Candidate) FilterFunc {
	return FilterFunc{name: name, fn: fn}
}

// Name returns the stage name.
func (f FilterFunc) Name() string { return f.name }

// Apply runs the stage.
func (f FilterFunc) Apply(candidates []Candidate) []Candidate { return f.fn(candidates) }

// Pipeline runs filters in order.
type Pipeline []Filter

// Run applies every stage and reports how many candidates each removed.
func (p Pipeline) Run(candidates []Candidate) ([]Candidate, []StageReport) {
	reports := make([]StageReport, 0, len(p))
	for _, f := range p {
		in := len(candidates)
		candidates = f.Apply(candidates)
		reports = append(reports, StageReport{Stage: f.Name(), In: in, Removed: in - len(candidates)})
	}
	return candidates, reports
}

// NewPipeline builds the standard stage order for one query: moderation,
// non-canonical content, fan content, then the caller's own filters.
func NewPipeline(rules *Rules, c Classification, opts SearchOptions) Pipeline {
	p := Pipeline{
		ModerationStage(),
		CategoryStage(rules.protect, permittedCategories(c)),
		FanContentStage(rules),
	}
	if opts.hasCallerFilters() {
		p = append(p, CallerFilterStage(opts))
	}
	return p
}

// permittedCategories merges what the intent and the query's franchise allow.
func permittedCategories(c Classification) map[store.Category]bool {
	permitted := categorySet(c.Profile.PermittedCategories)
	if c.Franchise != nil {
		for _, cat := range c.Franchise.ExemptCategories {
			permitted[store.ParseCategory(string(cat))] = true
		}
	}
	return permitted
}

// ModerationStage drops denied candidates and marks allowed ones exempt from
// the removal stages that follow.
func ModerationStage() Filter {
	return NewFilter("moderation", func(in []Candidate) []Candidate {
		out := make([]Candidate, 0, len(in))
		for _, c := range in {
			switch c.ModerationFlag {
			case store.FlagDeny:
				continue
			case store.FlagAllow:
				c.exempt = true
			}
			out = append(out, c)
		}
		return out
	})
}

// CategoryStage drops candidates in a protected category unless permitted
// or exempt. Unknown categories are always kept.
func CategoryStage(protected, permitted map[store.Category]bool) Filter {
	return NewFilter("category", func(in []Candidate) []Candidate {
		out := make([]Candidate, 0, len(in))
		for _, c := range in {
			cat := store.ParseCategory(string(c.Category))
			if !c.exempt && cat != store.CategoryUnknown && protected[cat] && !permitted[cat] {
				continue
			}
			out = append(out, c)
		}
		return out
	})
}

// FanContentStage drops candidates that look unofficial: names matching a
// fan-content pattern, or a developer or publisher carrying a
// non-commercial token.
func FanContentStage(rules *Rules) Filter {
	return NewFilter("fan_content", func(in []Candidate) []Candidate {
		out := make([]Candidate, 0, len(in))
		for _, c := range in {
			if !c.exempt && rules.looksFanMade(c) {
				continue
			}
			out = append(out, c)
		}
		return out
	})
}

func (r *Rules) looksFanMade(c Candidate) bool {
	for _, re := range r.fanNames {
		if re.MatchString(c.CanonicalName) {
			return true
		}
	}
	for _, who := range []string{c.Publisher, c.Developer} {
		if who == "" {
			continue
		}
		tokens := tokenize(foldName(who))
		for _, pub := range r.fanPubs {
			if containsTokens(tokens, pub) {
				return true
			}
		}
	}
	return false
}

// CallerFilterStage keeps candidates matching the caller's platform, year
// and genre filters. Platform and genre match as folded substrings ("switch"
// matches "Nintendo Switch"). It applies to exempt candidates too, and a
// candidate missing the filtered field does not match.
func CallerFilterStage(opts SearchOptions) Filter {
	platform := foldName(opts.Platform)
	genre := foldName(opts.Genre)
	return NewFilter("caller", func(in []Candidate) []Candidate {
		out := make([]Candidate, 0, len(in))
		for _, c := range in {
			if opts.Year != 0 && c.ReleaseYear != opts.Year {
				continue
			}
			if platform != "" && !hasFolded(c.Platforms, platform) {
				continue
			}
			if genre != "" && !hasFolded(c.Genres, genre) {
				continue
			}
			out = append(out, c)
		}
		return out
	})
}

func hasFolded(values []string, want string) bool {
	for _, v := range values {
		if strings.Contains(foldName(v), want) {
			return true
		}
	}
	return false
}
