package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Query is a normalised query in its two spellings.
type Query struct {
	// Raw is the caller's input, untouched.
	Raw string

	// Text is NFKC-normalised, lowercased and whitespace-collapsed. Diacritics
	// are kept.
	Text string

	// Folded is Text with diacritics stripped.
	Folded string
}

// Empty reports whether the query has nothing to search for.
func (q Query) Empty() bool {
	return q.Text == ""
}

// Tokens returns the folded query split into word tokens.
func (q Query) Tokens() []string {
	return tokenize(q.Folded)
}

// Normalize prepares raw input for the pipeline.
func Normalize(raw string) Query {
	text := norm.NFKC.String(raw)
	text = strings.ToLower(text)
	text = strings.Join(strings.Fields(text), " ")
	return Query{Raw: raw, Text: text, Folded: Fold(text)}
}

// Fold strips diacritics from s ("pokémon" becomes "pokemon").
func Fold(s string) string {
	if isASCII(s) {
		return s
	}
	// transform.Chain is stateful, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// foldName lowercases and folds a display name for comparisons.
func foldName(s string) string {
	return Fold(strings.ToLower(strings.Join(strings.Fields(s), " ")))
}

// tokenize splits s on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// containsTokens reports whether needle appears in hay as a contiguous run of
// whole tokens.
func containsTokens(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
