package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name          string
		query         string
		opts          SearchOptions
		wantIntent    SearchIntent
		wantFranchise string
	}{
		{"franchise root", "pokemon", SearchOptions{}, FranchiseBrowse, "pokemon"},
		{"accented franchise root", "Pokémon", SearchOptions{}, FranchiseBrowse, "pokemon"},
		{"multi-word root", "the legend of zelda", SearchOptions{}, FranchiseBrowse, "zelda"},
		{"alternate root", "Skyrim", SearchOptions{}, FranchiseBrowse, "elder-scrolls"},
		{"title inside franchise", "super mario odyssey", SearchOptions{}, SpecificGame, "mario"},
		{"year token", "zelda 2017", SearchOptions{}, YearSearch, "zelda"},
		{"bare year", "games 1998", SearchOptions{}, YearSearch, ""},
		{"year outside range", "fallout 1000", SearchOptions{}, SpecificGame, "fallout"},
		{"sequel number", "halo 3", SearchOptions{}, SpecificGame, "halo"},
		{"developer", "nintendo", SearchOptions{}, DeveloperSearch, ""},
		{"multi-word developer", "games by square enix", SearchOptions{}, DeveloperSearch, ""},
		{"developer beats genre", "capcom fighting", SearchOptions{}, DeveloperSearch, ""},
		{"genre with generic words", "best roguelike games", SearchOptions{}, GenreDiscovery, ""},
		{"multi-word genre", "open world rpg", SearchOptions{}, GenreDiscovery, ""},
		{"genre plus title word", "roguelike hades", SearchOptions{}, SpecificGame, ""},
		{"plain title", "hollow knight", SearchOptions{}, SpecificGame, ""},
		{"year filter only", "hollow knight", SearchOptions{Year: 2017}, YearSearch, ""},
		{"franchise beats year filter", "metroid", SearchOptions{Year: 2021}, FranchiseBrowse, "metroid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(Normalize(tt.query), tt.opts, rules)

			assert.Equal(t, tt.wantIntent, c.Intent)
			assert.Equal(t, rules.Profile(tt.wantIntent), c.Profile)
			if tt.wantFranchise == "" {
				assert.Nil(t, c.Franchise)
			} else {
				require.NotNil(t, c.Franchise)
				assert.Equal(t, tt.wantFranchise, c.Franchise.Key)
			}
		})
	}
}

func TestClassify_MultiWordRootMatchesWhole(t *testing.T) {
	c := Classify(Normalize("sonic the hedgehog"), SearchOptions{}, DefaultRules())

	assert.Equal(t, FranchiseBrowse, c.Intent)
	require.NotNil(t, c.Franchise)
	assert.Equal(t, "sonic", c.Franchise.Key)
}

func TestClassify_Year(t *testing.T) {
	rules := DefaultRules()

	assert.Equal(t, 2020, Classify(Normalize("2020"), SearchOptions{}, rules).Year)
	assert.Equal(t, 2017, Classify(Normalize("zelda 2017"), SearchOptions{Year: 2019}, rules).Year,
		"a year in the query wins over the filter")
	assert.Equal(t, 2019, Classify(Normalize("hollow knight"), SearchOptions{Year: 2019}, rules).Year)
	assert.Zero(t, Classify(Normalize("halo 3"), SearchOptions{}, rules).Year)
}

func TestClassify_Deterministic(t *testing.T) {
	rules := DefaultRules()
	q := Normalize("best horror games 2020")

	first := Classify(q, SearchOptions{}, rules)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Intent, Classify(q, SearchOptions{}, rules).Intent)
	}
}

func TestParseIntent(t *testing.T) {
	for _, intent := range AllIntents {
		got, ok := ParseIntent(intent.String())
		assert.True(t, ok)
		assert.Equal(t, intent, got)
	}

	_, ok := ParseIntent("browse_everything")
	assert.False(t, ok)
	assert.Equal(t, "unknown", SearchIntent(99).String())
}
