package search

import (
	"strconv"
	"strings"
)

// DefaultMaxVariants bounds how many sub-queries one search issues.
const DefaultMaxVariants = 5

// romanNumerals maps sequence numbers to their lowercase roman form.
var romanNumerals = []string{
	"", "i", "ii", "iii", "iv", "v", "vi", "vii", "viii", "ix", "x",
	"xi", "xii", "xiii", "xiv", "xv", "xvi", "xvii", "xviii", "xix", "xx",
}

// Expander turns a query into the ordered set of sub-queries sent to the
// catalog.
type Expander struct {
	rules       *Rules
	maxVariants int
}

// NewExpander creates an expander emitting at most maxVariants variants.
func NewExpander(rules *Rules, maxVariants int) *Expander {
	if maxVariants <= 0 {
		maxVariants = DefaultMaxVariants
	}
	return &Expander{rules: rules, maxVariants: maxVariants}
}

// Expand returns deduplicated variants of q. The query itself is always
// first; the rest follow in rule order until the cap is reached.
func (e *Expander) Expand(q Query, c Classification) []string {
	vs := variantSet{max: e.maxVariants}
	vs.add(q.Text)
	if q.Empty() {
		return vs.list
	}

	words := strings.Fields(q.Text)

	// Stores require every word, so "best roguelike games" needs a
	// "roguelike" sub-query to reach anything.
	switch c.Intent {
	case YearSearch, GenreDiscovery, DeveloperSearch:
		if core := strings.Fields(joinWithout(words, e.isGeneric)); len(core) > 0 {
			words = core
			vs.add(strings.Join(words, " "))
		}
	}

	// "zelda 2017" would never match a title containing both words.
	if c.Intent == YearSearch {
		vs.add(joinWithout(words, isYearWord))
	}

	if q.Folded != q.Text {
		vs.add(q.Folded)
	} else {
		vs.add(e.accentForm(words))
	}

	vs.add(e.expandAbbreviations(words))

	for _, v := range vs.snapshot() {
		vs.add(swapTrailingNumeral(v))
	}

	if c.Intent == FranchiseBrowse && c.Franchise != nil {
		for _, term := range c.Franchise.SupplementalTerms {
			vs.add(Normalize(term).Text)
		}
	}
	return vs.list
}

// accentForm rewrites words found in the accent table to their accented
// spelling. It returns "" when nothing changed.
func (e *Expander) accentForm(words []string) string {
	changed := false
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w
		if accented, ok := e.rules.accents[Fold(w)]; ok {
			out[i] = accented
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(out, " ")
}

// expandAbbreviations replaces whole words found in the abbreviation table.
// It returns "" when no word is an abbreviation.
func (e *Expander) expandAbbreviations(words []string) string {
	changed := false
	var out []string
	for _, w := range words {
		if full, ok := e.rules.abbrev[Fold(w)]; ok {
			out = append(out, full...)
			changed = true
			continue
		}
		out = append(out, w)
	}
	if !changed {
		return ""
	}
	return strings.Join(out, " ")
}

// swapTrailingNumeral converts a trailing sequence marker between arabic and
// roman form ("final fantasy 7" and "final fantasy vii"). A lone word is not
// a sequence marker. It returns "" when there is nothing to convert.
func swapTrailingNumeral(v string) string {
	words := strings.Fields(v)
	if len(words) < 2 {
		return ""
	}
	last := words[len(words)-1]

	if n, err := strconv.Atoi(last); err == nil {
		if n < 1 || n >= len(romanNumerals) {
			return ""
		}
		words[len(words)-1] = romanNumerals[n]
		return strings.Join(words, " ")
	}
	for n := 1; n < len(romanNumerals); n++ {
		if romanNumerals[n] == last {
			words[len(words)-1] = strconv.Itoa(n)
			return strings.Join(words, " ")
		}
	}
	return ""
}

func (e *Expander) isGeneric(w string) bool {
	return e.rules.generic[Fold(w)]
}

func isYearWord(w string) bool {
	return yearToken([]string{w}) != 0
}

func joinWithout(words []string, drop func(string) bool) string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !drop(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// variantSet is an ordered, capped set of non-empty strings.
type variantSet struct {
	max  int
	list []string
}

func (s *variantSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" || len(s.list) >= s.max {
		return
	}
	for _, have := range s.list {
		if have == v {
			return
		}
	}
	s.list = append(s.list, v)
}

func (s *variantSet) snapshot() []string {
	return append([]string(nil), s.list...)
}
