package search

import "strconv"

// Year tokens outside this range are treated as ordinary numbers.
const (
	minYearToken = 1970
	maxYearToken = 2099
)

// Classify assigns exactly one intent to q. The checks run in priority order
// and the first match wins:
//
//  1. the whole query is a franchise root: FranchiseBrowse
//  2. a four-digit year token, or only a year filter: YearSearch
//  3. a known developer or publisher: DeveloperSearch
//  4. genre keywords with nothing but generic words around them: GenreDiscovery
//  5. otherwise: SpecificGame
//
// The franchise named anywhere in the query is resolved regardless of the
// intent so its category exemptions reach the filter stages.
func Classify(q Query, opts SearchOptions, rules *Rules) Classification {
	tokens := q.Tokens()
	franchise := rules.franchiseForTokens(tokens)
	exact := rules.exactFranchise(tokens)

	inQuery := yearToken(tokens)

	intent := SpecificGame
	switch {
	case exact != nil:
		intent = FranchiseBrowse
		franchise = exact
	case inQuery != 0:
		intent = YearSearch
	case rules.matchesDeveloper(tokens):
		intent = DeveloperSearch
	case rules.isGenreQuery(tokens):
		intent = GenreDiscovery
	case opts.Year != 0:
		intent = YearSearch
	}

	year := inQuery
	if year == 0 {
		year = opts.Year
	}

	return Classification{
		Intent:    intent,
		Profile:   rules.Profile(intent),
		Franchise: franchise,
		Year:      year,
	}
}

// yearToken returns the first plausible release year in tokens, or 0.
func yearToken(tokens []string) int {
	for _, tok := range tokens {
		if len(tok) != 4 {
			continue
		}
		year, err := strconv.Atoi(tok)
		if err == nil && year >= minYearToken && year <= maxYearToken {
			return year
		}
	}
	return 0
}

// withoutYear drops year tokens, leaving the words to match names against.
func withoutYear(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if yearToken([]string{tok}) == 0 {
			out = append(out, tok)
		}
	}
	return out
}

func (r *Rules) matchesDeveloper(tokens []string) bool {
	for _, dev := range r.devs {
		if containsTokens(tokens, dev) {
			return true
		}
	}
	return false
}

// isGenreQuery reports whether tokens hold at least one genre keyword and
// every other token is a generic word.
func (r *Rules) isGenreQuery(tokens []string) bool {
	covered := make([]bool, len(tokens))
	found := false
	for _, genre := range r.genres {
		for i := 0; i+len(genre) <= len(tokens); i++ {
			if equalTokens(tokens[i:i+len(genre)], genre) {
				found = true
				for j := i; j < i+len(genre); j++ {
					covered[j] = true
				}
			}
		}
	}
	if !found {
		return false
	}
	for i, tok := range tokens {
		if !covered[i] && !r.generic[tok] {
			return false
		}
	}
	return true
}
