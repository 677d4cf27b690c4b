package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/store"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultRules_AreValid(t *testing.T) {
	rules := DefaultRules()

	assert.NoError(t, rules.Validate())
	for _, intent := range AllIntents {
		p := rules.Profile(intent)
		assert.Positive(t, p.FinalResultLimit, intent.String())
		assert.Positive(t, p.EarlyTerminationCount, intent.String())
	}
	assert.InDelta(t, 1.0, rules.Weights.sum(), 1e-9)
}

func TestRules_FranchiseFor(t *testing.T) {
	rules := DefaultRules()

	require.NotNil(t, rules.FranchiseFor("Super Mario Odyssey"))
	assert.Equal(t, "mario", rules.FranchiseFor("Super Mario Odyssey").Key)
	assert.Equal(t, "pokemon", rules.FranchiseFor("Pokémon Legends: Arceus").Key)
	assert.Nil(t, rules.FranchiseFor("Celeste"))
	assert.Nil(t, rules.FranchiseFor("Haloween Party"), "roots match whole words")
}

func TestLoadRules_MergesOverDefaults(t *testing.T) {
	// Given: a file replacing one intent profile and the franchise table
	path := writeRules(t, `
franchises:
  - key: celeste
    name: Celeste
    tier: 3
    roots: [celeste]
intents:
  franchise_browse:
    early_termination_count: 400
    quality_threshold: 0.2
    final_result_limit: 100
    relevance_floor: 0.1
    permitted_categories: [bundle]
`)

	// When: loading it
	rules, err := LoadRules(path)

	// Then: named tables are replaced, everything else keeps its default
	require.NoError(t, err)
	require.Len(t, rules.Franchises, 1)
	assert.Nil(t, rules.FranchiseFor("Pokemon Red"))
	assert.Equal(t, "celeste", rules.FranchiseFor("Celeste").Key)

	browse := rules.Profile(FranchiseBrowse)
	assert.Equal(t, 100, browse.FinalResultLimit)
	assert.Equal(t, []store.Category{store.CategoryBundle}, browse.PermittedCategories)
	assert.Equal(t, DefaultRules().Profile(SpecificGame), rules.Profile(SpecificGame))
	assert.Equal(t, DefaultRules().Weights, rules.Weights)
}

func TestLoadRules_ReplacesMapTables(t *testing.T) {
	// Given: a file with its own abbreviation and accent tables
	path := writeRules(t, `
abbreviations:
  hk: hollow knight
accent_forms:
  ori: orí
`)

	// When: loading it
	rules, err := LoadRules(path)

	// Then: only the file's entries remain
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hk": "hollow knight"}, rules.Abbreviations)
	assert.Equal(t, map[string]string{"ori": "orí"}, rules.AccentForms)
	assert.Equal(t, []string{"hollow knight"}, expand(rules, DefaultMaxVariants, "hk")[1:])
	assert.Equal(t, []string{"ff 7", "ff vii"}, expand(rules, DefaultMaxVariants, "ff 7"),
		"default abbreviations are gone")
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  string
		wantField string
	}{
		{
			name:      "weights do not sum to one",
			body:      "weights: {relevance: 0.5, popularity: 0.5, quality: 0.5, engagement: 0}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "weights",
		},
		{
			name:      "weight out of range",
			body:      "weights: {relevance: 1.5, popularity: 0, quality: 0, engagement: 0}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "weights.relevance",
		},
		{
			name:      "unknown intent",
			body:      "intents:\n  random_pick: {early_termination_count: 1, final_result_limit: 1}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "intents.random_pick",
		},
		{
			name:      "zero result limit",
			body:      "intents:\n  year_search: {early_termination_count: 10, final_result_limit: 0}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "intents.year_search.final_result_limit",
		},
		{
			name:      "franchise tier out of range",
			body:      "franchises:\n  - {key: x, name: X, tier: 4, roots: [x]}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "franchises.x.tier",
		},
		{
			name:      "duplicate franchise key",
			body:      "franchises:\n  - {key: x, tier: 1, roots: [x]}\n  - {key: x, tier: 2, roots: [y]}\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "franchises.x",
		},
		{
			name:      "unknown category",
			body:      "protected_categories: [bundle, cartridge]\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "protected_categories",
		},
		{
			name:      "bad fan pattern",
			body:      "fan_content:\n  name_patterns: ['(unclosed']\n",
			wantCode:  gserrors.ErrCodeRulesInvalid,
			wantField: "fan_content.name_patterns",
		},
		{
			name:     "malformed yaml",
			body:     "franchises: [\n",
			wantCode: gserrors.ErrCodeRulesInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.body))

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, gserrors.GetCode(err))
			if tt.wantField != "" {
				var se *gserrors.ScoutError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantField, se.Details["field"])
			}
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.Equal(t, gserrors.ErrCodeRulesNotFound, gserrors.GetCode(err))
}
