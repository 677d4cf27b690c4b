package search

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/store"
)

// Franchise is one entry of the curated franchise table.
type Franchise struct {
	// Key is the canonical franchise identifier.
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`

	// Tier is 1 for the biggest franchises, up to 3.
	Tier int `yaml:"tier" json:"tier"`

	// Roots are the names a query or title uses for the franchise.
	Roots []string `yaml:"roots" json:"roots"`

	// SupplementalTerms are extra sub-queries issued when browsing it.
	SupplementalTerms []string `yaml:"supplemental_terms,omitempty" json:"supplemental_terms,omitempty"`

	// ExemptCategories are protected categories kept for this franchise,
	// e.g. mods for mod-friendly catalogs.
	ExemptCategories []store.Category `yaml:"exempt_categories,omitempty" json:"exempt_categories,omitempty"`
}

// Weights are the composite score weights. They must sum to 1.
type Weights struct {
	Relevance  float64 `yaml:"relevance" json:"relevance"`
	Popularity float64 `yaml:"popularity" json:"popularity"`
	Quality    float64 `yaml:"quality" json:"quality"`
	Engagement float64 `yaml:"engagement" json:"engagement"`
}

func (w Weights) sum() float64 {
	return w.Relevance + w.Popularity + w.Quality + w.Engagement
}

// ScoringConstants tune the popularity and engagement sub-scores.
type ScoringConstants struct {
	// PriorMean and PriorWeight shrink ratings with few votes toward the mean.
	PriorMean   float64 `yaml:"prior_mean"`
	PriorWeight float64 `yaml:"prior_weight"`

	// FollowerReference is the follower count that saturates the follower term.
	FollowerReference float64 `yaml:"follower_reference"`

	// EngagementReference is the counter value that saturates an engagement term.
	EngagementReference float64 `yaml:"engagement_reference"`

	// TierBonus holds the franchise bonus for tiers 1, 2 and 3.
	TierBonus []float64 `yaml:"tier_bonus"`
}

// FanContentRules drive the fan-content filter stage.
type FanContentRules struct {
	// NamePatterns are case-insensitive regular expressions matched on names.
	NamePatterns []string `yaml:"name_patterns"`

	// PublisherTokens are word sequences that mark non-commercial publishers.
	PublisherTokens []string `yaml:"publisher_tokens"`
}

// Rules are the hot-reloadable tables the pipeline runs on. Use DefaultRules
// or LoadRules; a Rules value is read-only once compiled.
type Rules struct {
	Franchises          []Franchise              `yaml:"franchises"`
	Abbreviations       map[string]string        `yaml:"abbreviations"`
	AccentForms         map[string]string        `yaml:"accent_forms"`
	Developers          []string                 `yaml:"developers"`
	GenreKeywords       []string                 `yaml:"genre_keywords"`
	GenericWords        []string                 `yaml:"generic_words"`
	ProtectedCategories []store.Category         `yaml:"protected_categories"`
	PrimaryCategories   []store.Category         `yaml:"primary_categories"`
	FanContent          FanContentRules          `yaml:"fan_content"`
	Intents             map[string]IntentProfile `yaml:"intents"`
	Weights             Weights                  `yaml:"weights"`
	Scoring             ScoringConstants         `yaml:"scoring"`

	compiled bool
	roots    []franchiseRoot
	devs     [][]string
	genres   [][]string
	generic  map[string]bool
	abbrev   map[string][]string
	accents  map[string]string
	profiles map[SearchIntent]IntentProfile
	protect  map[store.Category]bool
	primary  map[store.Category]bool
	fanNames []*regexp.Regexp
	fanPubs  [][]string
}

type franchiseRoot struct {
	tokens    []string
	franchise *Franchise
}

// LoadRules reads a YAML rules file over the built-in defaults. Tables
// present in the file (lists, abbreviations, accent_forms) replace the default
// table wholesale. Intent profiles are replaced per intent, and weights,
// scoring and fan_content are merged field by field.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gserrors.New(gserrors.ErrCodeRulesNotFound,
			fmt.Sprintf("cannot read rules file %s", path), err).
			WithSuggestion("Check rules_path in your config or remove it to use the built-in rules")
	}

	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, gserrors.RulesError(fmt.Sprintf("malformed rules file %s", path), err)
	}

	rules := defaultRules()
	// yaml.v3 decodes into an existing map entry by entry.
	if _, ok := top["abbreviations"]; ok {
		rules.Abbreviations = nil
	}
	if _, ok := top["accent_forms"]; ok {
		rules.AccentForms = nil
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, gserrors.RulesError(fmt.Sprintf("malformed rules file %s", path), err)
	}
	if err := rules.Compile(); err != nil {
		return nil, err
	}
	return rules, nil
}

// DefaultRules returns the compiled built-in rules.
func DefaultRules() *Rules {
	rules := defaultRules()
	if err := rules.Compile(); err != nil {
		panic(fmt.Sprintf("built-in rules are invalid: %v", err))
	}
	return rules
}

// Compile validates the tables and builds the lookup indexes.
func (r *Rules) Compile() error {
	if err := r.Validate(); err != nil {
		return err
	}

	r.roots = r.roots[:0]
	for i := range r.Franchises {
		f := &r.Franchises[i]
		for _, root := range f.Roots {
			r.roots = append(r.roots, franchiseRoot{tokens: tokenize(foldName(root)), franchise: f})
		}
	}
	// Longest roots first so "super mario" wins over "mario".
	sort.SliceStable(r.roots, func(i, j int) bool {
		return len(r.roots[i].tokens) > len(r.roots[j].tokens)
	})

	r.devs = tokenSeqs(r.Developers)
	r.genres = tokenSeqs(r.GenreKeywords)
	r.fanPubs = tokenSeqs(r.FanContent.PublisherTokens)
	r.generic = make(map[string]bool, len(r.GenericWords))
	for _, w := range r.GenericWords {
		r.generic[foldName(w)] = true
	}

	r.abbrev = make(map[string][]string, len(r.Abbreviations))
	for k, v := range r.Abbreviations {
		r.abbrev[foldName(k)] = strings.Fields(strings.ToLower(v))
	}
	r.accents = make(map[string]string, len(r.AccentForms))
	for k, v := range r.AccentForms {
		r.accents[foldName(k)] = strings.ToLower(strings.TrimSpace(v))
	}

	r.profiles = make(map[SearchIntent]IntentProfile, len(r.Intents))
	for name, p := range r.Intents {
		intent, _ := ParseIntent(name)
		r.profiles[intent] = p
	}

	r.protect = categorySet(r.ProtectedCategories)
	delete(r.protect, store.CategoryUnknown)
	r.primary = categorySet(r.PrimaryCategories)

	r.fanNames = r.fanNames[:0]
	for _, p := range r.FanContent.NamePatterns {
		r.fanNames = append(r.fanNames, regexp.MustCompile("(?i)"+p))
	}

	r.compiled = true
	return nil
}

// Validate checks the tables for values the pipeline cannot run with.
func (r *Rules) Validate() error {
	w := r.Weights
	for name, v := range map[string]float64{
		"relevance":  w.Relevance,
		"popularity": w.Popularity,
		"quality":    w.Quality,
		"engagement": w.Engagement,
	} {
		if v < 0 || v > 1 {
			return rulesInvalid("weights."+name, fmt.Sprintf("must be within [0,1], got %g", v))
		}
	}
	if math.Abs(w.sum()-1) > 1e-6 {
		return rulesInvalid("weights", fmt.Sprintf("must sum to 1, got %g", w.sum()))
	}

	s := r.Scoring
	if s.PriorMean < 0 || s.PriorMean > 100 {
		return rulesInvalid("scoring.prior_mean", "must be within [0,100]")
	}
	if s.PriorWeight <= 0 {
		return rulesInvalid("scoring.prior_weight", "must be positive")
	}
	if s.FollowerReference <= 1 || s.EngagementReference <= 1 {
		return rulesInvalid("scoring", "reference maxima must be greater than 1")
	}
	if len(s.TierBonus) != 3 {
		return rulesInvalid("scoring.tier_bonus", "must list a bonus for tiers 1, 2 and 3")
	}
	for _, b := range s.TierBonus {
		if b < 0 || b > 1 {
			return rulesInvalid("scoring.tier_bonus", "bonuses must be within [0,1]")
		}
	}

	for name := range r.Intents {
		if _, ok := ParseIntent(name); !ok {
			return rulesInvalid("intents."+name, "unknown intent")
		}
	}
	for _, intent := range AllIntents {
		p, ok := r.Intents[intent.String()]
		if !ok {
			return rulesInvalid("intents."+intent.String(), "profile is missing")
		}
		if err := validateProfile(intent.String(), p); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(r.Franchises))
	for _, f := range r.Franchises {
		field := "franchises." + f.Key
		if f.Key == "" {
			return rulesInvalid("franchises", "every franchise needs a key")
		}
		if seen[f.Key] {
			return rulesInvalid(field, "duplicate franchise key")
		}
		seen[f.Key] = true
		if f.Tier < 1 || f.Tier > 3 {
			return rulesInvalid(field+".tier", "must be 1, 2 or 3")
		}
		if len(f.Roots) == 0 {
			return rulesInvalid(field+".roots", "at least one root is required")
		}
		if err := validateCategories(field+".exempt_categories", f.ExemptCategories); err != nil {
			return err
		}
	}

	if err := validateCategories("protected_categories", r.ProtectedCategories); err != nil {
		return err
	}
	if err := validateCategories("primary_categories", r.PrimaryCategories); err != nil {
		return err
	}
	for _, p := range r.FanContent.NamePatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return gserrors.RulesError(fmt.Sprintf("fan_content.name_patterns: bad pattern %q", p), err).
				WithDetail("field", "fan_content.name_patterns")
		}
	}
	return nil
}

func validateProfile(name string, p IntentProfile) error {
	field := "intents." + name
	switch {
	case p.EarlyTerminationCount <= 0:
		return rulesInvalid(field+".early_termination_count", "must be positive")
	case p.FinalResultLimit <= 0:
		return rulesInvalid(field+".final_result_limit", "must be positive")
	case p.QualityThreshold < 0 || p.QualityThreshold > 1:
		return rulesInvalid(field+".quality_threshold", "must be within [0,1]")
	case p.RelevanceFloor < 0 || p.RelevanceFloor > 1:
		return rulesInvalid(field+".relevance_floor", "must be within [0,1]")
	}
	return validateCategories(field+".permitted_categories", p.PermittedCategories)
}

func validateCategories(field string, cats []store.Category) error {
	for _, c := range cats {
		if store.ParseCategory(string(c)) == store.CategoryUnknown {
			return rulesInvalid(field, fmt.Sprintf("unknown category %q", c))
		}
	}
	return nil
}

func rulesInvalid(field, msg string) error {
	return gserrors.RulesError(field+": "+msg, nil).WithDetail("field", field)
}

// Profile returns the profile for intent.
func (r *Rules) Profile(intent SearchIntent) IntentProfile {
	return r.profiles[intent]
}

// FranchiseFor returns the franchise whose root appears in name, or nil.
func (r *Rules) FranchiseFor(name string) *Franchise {
	return r.franchiseForTokens(tokenize(foldName(name)))
}

func (r *Rules) franchiseForTokens(tokens []string) *Franchise {
	for _, root := range r.roots {
		if containsTokens(tokens, root.tokens) {
			return root.franchise
		}
	}
	return nil
}

// exactFranchise returns the franchise one of whose roots equals the query.
func (r *Rules) exactFranchise(tokens []string) *Franchise {
	for _, root := range r.roots {
		if equalTokens(tokens, root.tokens) {
			return root.franchise
		}
	}
	return nil
}

// tierBonus returns the franchise tier bonus, 0 for unlisted franchises.
func (r *Rules) tierBonus(f *Franchise) float64 {
	if f == nil || f.Tier < 1 || f.Tier > len(r.Scoring.TierBonus) {
		return 0
	}
	return r.Scoring.TierBonus[f.Tier-1]
}

func tokenSeqs(words []string) [][]string {
	out := make([][]string, 0, len(words))
	for _, w := range words {
		if toks := tokenize(foldName(w)); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

func categorySet(cats []store.Category) map[store.Category]bool {
	set := make(map[store.Category]bool, len(cats))
	for _, c := range cats {
		set[store.ParseCategory(string(c))] = true
	}
	return set
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
