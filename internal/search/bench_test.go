package search

import (
	"context"
	"testing"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// Compare runs with scripts/bench-compare.go against a saved baseline.

func BenchmarkClassify(b *testing.B) {
	rules := DefaultRules()
	queries := []Query{
		Normalize("gta 5"),
		Normalize("zelda"),
		Normalize("games from 2017"),
		Normalize("metroidvania"),
		Normalize("Pokémon Légendes"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Classify(queries[i%len(queries)], SearchOptions{}, rules)
	}
}

func BenchmarkExpand(b *testing.B) {
	rules := DefaultRules()
	expander := NewExpander(rules, 10)
	q := Normalize("witcher 3 wild hunt")
	c := Classify(q, SearchOptions{}, rules)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = expander.Expand(q, c)
	}
}

func BenchmarkEngine_Search(b *testing.B) {
	catalog := &stubCatalog{records: pokemonCatalog()}
	overrides := &stubOverrides{flags: map[string]store.Flag{}}
	engine, err := NewEngine(NewRetriever(catalog, WithPageSize(200)), overrides)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(ctx, "pokemon", SearchOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngine_SearchCached(b *testing.B) {
	catalog := &stubCatalog{records: pokemonCatalog()}
	overrides := &stubOverrides{flags: map[string]store.Flag{}}
	engine, err := NewEngine(NewRetriever(catalog, WithPageSize(200)), overrides,
		WithResultCache(NewResultCache(64, 0)))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if _, err := engine.Search(ctx, "pokemon", SearchOptions{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(ctx, "pokemon", SearchOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
