package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/gamescout/internal/store"
)

func flagged(c Candidate, f store.Flag) Candidate {
	c.ModerationFlag = f
	return c
}

func categorised(c Candidate, cat store.Category) Candidate {
	c.Category = cat
	return c
}

// ===== Moderation =====

func TestModerationStage(t *testing.T) {
	in := []Candidate{
		flagged(candidate("1", "Keep"), store.FlagNone),
		flagged(candidate("2", "Drop"), store.FlagDeny),
		flagged(candidate("3", "Allowed"), store.FlagAllow),
	}

	out := ModerationStage().Apply(in)

	require.Equal(t, []string{"1", "3"}, candidateIDs(out))
	assert.False(t, out[0].Exempt())
	assert.True(t, out[1].Exempt())
	assert.False(t, in[2].Exempt(), "input is not modified")
}

// ===== Category =====

func TestCategoryStage(t *testing.T) {
	protected := categorySet([]store.Category{store.CategoryMod, store.CategoryBundle})
	permitted := categorySet([]store.Category{store.CategoryBundle})

	allowedMod := categorised(candidate("4", "Allowed Mod"), store.CategoryMod)
	allowedMod.exempt = true

	in := []Candidate{
		categorised(candidate("1", "Main"), store.CategoryMainGame),
		categorised(candidate("2", "Mod"), store.CategoryMod),
		categorised(candidate("3", "Bundle"), store.CategoryBundle),
		allowedMod,
		categorised(candidate("5", "Unlabelled"), store.Category("")),
		categorised(candidate("6", "Odd Label"), store.Category("prototype")),
	}

	out := CategoryStage(protected, permitted).Apply(in)

	assert.Equal(t, []string{"1", "3", "4", "5", "6"}, candidateIDs(out))
}

func TestNewPipeline_FranchiseExemptsMods(t *testing.T) {
	// Given: a mod for a mod-friendly franchise and one for another franchise
	rules := DefaultRules()
	in := []Candidate{
		categorised(candidate("1", "Minecraft: Aether Mod"), store.CategoryMod),
		categorised(candidate("2", "Minecraft"), store.CategoryMainGame),
	}

	// When: browsing that franchise
	mc := Classify(Normalize("minecraft"), SearchOptions{}, rules)
	kept, _ := NewPipeline(rules, mc, SearchOptions{}).Run(in)

	// Then: the mod survives
	assert.Equal(t, []string{"1", "2"}, candidateIDs(kept))

	// And: it does not for a franchise without the exemption
	zelda := Classify(Normalize("zelda"), SearchOptions{}, rules)
	kept, _ = NewPipeline(rules, zelda, SearchOptions{}).Run(in)
	assert.Equal(t, []string{"2"}, candidateIDs(kept))
}

// ===== Fan content =====

func TestFanContentStage(t *testing.T) {
	rules := DefaultRules()

	homebrew := candidate("3", "Pocket Quest")
	homebrew.Publisher = "Homebrew Collective"

	fanDev := candidate("4", "Blue Sky")
	fanDev.Developer = "Fan Project Team"

	allowedFan := candidate("5", "Pokemon Fan Made Edition")
	allowedFan.exempt = true

	in := []Candidate{
		candidate("1", "Final Fantasy VII"),
		candidate("2", "Pokemon Fan-Made Crystal"),
		homebrew,
		fanDev,
		allowedFan,
		candidate("6", "Super Mario Bros ROM Hack"),
		candidate("7", "Fantasy Life"),
	}

	out := FanContentStage(rules).Apply(in)

	assert.Equal(t, []string{"1", "5", "7"}, candidateIDs(out))
}

// ===== Caller filters =====

func TestCallerFilterStage(t *testing.T) {
	switchGame := candidate("1", "Switch Game")
	switchGame.Platforms = []string{"Nintendo Switch"}
	switchGame.Genres = []string{"Role-playing (RPG)"}
	switchGame.ReleaseYear = 2019

	pcGame := candidate("2", "PC Game")
	pcGame.Platforms = []string{"PC (Microsoft Windows)"}
	pcGame.Genres = []string{"Shooter"}
	pcGame.ReleaseYear = 2019

	noPlatform := candidate("3", "Unknown Platform")
	noPlatform.Platforms = nil

	allowedPC := pcGame
	allowedPC.ID = "4"
	allowedPC.exempt = true

	in := []Candidate{switchGame, pcGame, noPlatform, allowedPC}

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"platform substring", SearchOptions{Platform: "switch"}, []string{"1"}},
		{"platform case-insensitive", SearchOptions{Platform: "PC"}, []string{"2", "4"}},
		{"year", SearchOptions{Year: 2019}, []string{"1", "2", "4"}},
		{"genre", SearchOptions{Genre: "rpg"}, []string{"1"}},
		{"all filters", SearchOptions{Platform: "switch", Year: 2019, Genre: "role"}, []string{"1"}},
		{"nothing matches", SearchOptions{Year: 1985}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CallerFilterStage(tt.opts).Apply(in)
			assert.Equal(t, tt.want, candidateIDs(out))
		})
	}
}

// ===== Pipeline =====

func TestPipeline_ReportsEachStage(t *testing.T) {
	rules := DefaultRules()
	in := []Candidate{
		flagged(candidate("1", "Halo"), store.FlagDeny),
		categorised(candidate("2", "Halo Bundle"), store.CategoryBundle),
		candidate("3", "Halo Unofficial Remix"),
		candidate("4", "Halo"),
	}

	c := Classify(Normalize("halo"), SearchOptions{}, rules)
	out, reports := NewPipeline(rules, c, SearchOptions{Year: 2020}).Run(in)

	assert.Equal(t, []string{"4"}, candidateIDs(out))
	assert.Equal(t, []StageReport{
		{Stage: "moderation", In: 4, Removed: 1},
		{Stage: "category", In: 3, Removed: 1},
		{Stage: "fan_content", In: 2, Removed: 1},
		{Stage: "caller", In: 1, Removed: 0},
	}, reports)
}

func TestPipeline_CustomStage(t *testing.T) {
	short := NewFilter("short_names", func(in []Candidate) []Candidate {
		var out []Candidate
		for _, c := range in {
			if len(c.CanonicalName) <= 4 {
				out = append(out, c)
			}
		}
		return out
	})

	out, reports := Pipeline{short}.Run([]Candidate{candidate("1", "Doom"), candidate("2", "Doom Eternal")})

	assert.Equal(t, []string{"1"}, candidateIDs(out))
	assert.Equal(t, "short_names", reports[0].Stage)
}
