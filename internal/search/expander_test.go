package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func expand(rules *Rules, max int, raw string) []string {
	q := Normalize(raw)
	return NewExpander(rules, max).Expand(q, Classify(q, SearchOptions{}, rules))
}

func TestExpander_Expand(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "abbreviation and numeral forms",
			query: "ff 7",
			want:  []string{"ff 7", "final fantasy 7", "ff vii", "final fantasy vii"},
		},
		{
			name:  "accent form and supplemental terms",
			query: "pokemon",
			want:  []string{"pokemon", "pokémon", "pocket monsters", "pokemon mystery dungeon"},
		},
		{
			name:  "folded form of accented input",
			query: "Pokémon",
			want:  []string{"pokémon", "pokemon", "pocket monsters", "pokemon mystery dungeon"},
		},
		{
			name:  "year stripped for year search",
			query: "zelda 2017",
			want:  []string{"zelda 2017", "zelda"},
		},
		{
			name:  "generic words dropped for genre search",
			query: "best roguelike games",
			want:  []string{"best roguelike games", "roguelike"},
		},
		{
			name:  "generic words dropped for year search",
			query: "games from 2020",
			want:  []string{"games from 2020", "2020"},
		},
		{
			name:  "roman to arabic",
			query: "final fantasy x",
			want:  []string{"final fantasy x", "final fantasy 10"},
		},
		{
			name:  "single word is not a sequel",
			query: "v",
			want:  []string{"v"},
		},
		{
			name:  "nothing to expand",
			query: "hollow knight",
			want:  []string{"hollow knight"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expand(rules, DefaultMaxVariants, tt.query))
		})
	}
}

func TestExpander_OriginalAlwaysFirstAndCapped(t *testing.T) {
	got := expand(DefaultRules(), 2, "ff 7")

	assert.Equal(t, []string{"ff 7", "final fantasy 7"}, got)
}

func TestExpander_NoDuplicates(t *testing.T) {
	got := expand(DefaultRules(), 10, "pokemon")

	seen := make(map[string]bool)
	for _, v := range got {
		assert.False(t, seen[v], "duplicate variant %q", v)
		seen[v] = true
	}
}

func TestExpander_EmptyQuery(t *testing.T) {
	assert.Empty(t, expand(DefaultRules(), DefaultMaxVariants, ""))
}

func TestSwapTrailingNumeral(t *testing.T) {
	assert.Equal(t, "mega man ii", swapTrailingNumeral("mega man 2"))
	assert.Equal(t, "mega man 2", swapTrailingNumeral("mega man ii"))
	assert.Equal(t, "", swapTrailingNumeral("mega man 21"))
	assert.Equal(t, "", swapTrailingNumeral("mega man 0"))
	assert.Equal(t, "", swapTrailingNumeral("mega man"))
}
