package store

import (
	"strings"
	"unicode"
)

// queryTokens splits a query into lowercase alphanumeric tokens.
// Punctuation never reaches a backend query parser.
func queryTokens(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ftsMatchExpr builds an FTS5 MATCH expression requiring every token, with
// prefix matching on each so partial words still hit.
func ftsMatchExpr(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = `"` + t + `"*`
	}
	return strings.Join(parts, " ")
}

// likePattern escapes LIKE wildcards in s and wraps it for substring matching.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// hintFromScore maps a non-negative backend score onto [0,1).
func hintFromScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (1 + score)
}
