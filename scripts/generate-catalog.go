//go:build ignore

// Package main generates a synthetic game catalog in the JSON-lines format
// read by `gamescout ingest`.
// Usage: go run scripts/generate-catalog.go -games 5000 -output testdata/catalog.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numGames   = flag.Int("games", 5000, "Number of records to generate")
	outputPath = flag.String("output", "testdata/catalog.jsonl", "Output file (- for stdout)")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	titleHeads = []string{
		"Shadow", "Crystal", "Iron", "Star", "Hollow",
		"Crimson", "Silent", "Eternal", "Neon", "Frozen",
		"Wild", "Lost", "Ancient", "Broken", "Solar",
	}
	titleTails = []string{
		"Legends", "Frontier", "Odyssey", "Kingdom", "Requiem",
		"Horizon", "Chronicles", "Tactics", "Rising", "Saga",
		"Protocol", "Depths", "Citadel", "Drift", "Echoes",
	}
	studios = []string{
		"Northwind Games", "Ember Forge", "Pixel Harbor", "Blue Lantern",
		"Granite Studio", "Moonlit Works", "Halcyon Interactive", "Vantage Play",
	}
	platforms = []string{"pc", "ps5", "ps4", "xbox series x", "xbox one", "switch", "mobile"}
	genres    = []string{"rpg", "platformer", "shooter", "strategy", "puzzle", "racing", "roguelike", "metroidvania"}

	// Weighted so most records are main games, as in a real catalog.
	categories = []struct {
		name   string
		weight int
	}{
		{"main_game", 60},
		{"dlc_addon", 12},
		{"expansion", 6},
		{"bundle", 5},
		{"remaster", 4},
		{"remake", 3},
		{"port", 3},
		{"mod", 4},
		{"pack", 3},
	}
	fanSuffixes = []string{"Fan Edition", "Randomizer", "Demake", "Tribute"}
)

type record struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Platforms   []string    `json:"platforms,omitempty"`
	Genres      []string    `json:"genres,omitempty"`
	Developer   string      `json:"developer,omitempty"`
	Publisher   string      `json:"publisher,omitempty"`
	ReleaseDate string      `json:"release_date,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
	RatingCount *int        `json:"rating_count,omitempty"`
	Followers   *int        `json:"follower_count,omitempty"`
	HasSummary  bool        `json:"has_summary,omitempty"`
	HasCover    bool        `json:"has_cover,omitempty"`
	Engagement  *engagement `json:"engagement,omitempty"`
}

type engagement struct {
	Reviews  int `json:"reviews"`
	ListAdds int `json:"list_adds"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	out := os.Stdout
	if *outputPath != "-" {
		if err := os.MkdirAll(filepath.Dir(*outputPath), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *outputPath, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for i := 0; i < *numGames; i++ {
		if err := enc.Encode(generateRecord(rng, i)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing record %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	if *outputPath != "-" {
		fmt.Fprintf(os.Stderr, "Generated %d records in %s\n", *numGames, *outputPath)
	}
}

func generateRecord(rng *rand.Rand, index int) record {
	name := fmt.Sprintf("%s %s", pick(rng, titleHeads), pick(rng, titleTails))
	if rng.Intn(3) == 0 {
		name = fmt.Sprintf("%s %d", name, rng.Intn(4)+2)
	}
	category := pickCategory(rng)
	switch category {
	case "dlc_addon", "expansion", "pack":
		name = fmt.Sprintf("%s: %s", name, pick(rng, titleTails))
	case "mod":
		name = fmt.Sprintf("%s %s", name, pick(rng, fanSuffixes))
	case "remaster":
		name += " Remastered"
	}

	studio := pick(rng, studios)
	rec := record{
		ID:         fmt.Sprintf("syn-%d", index),
		Name:       name,
		Category:   category,
		Platforms:  sample(rng, platforms, rng.Intn(3)+1),
		Genres:     sample(rng, genres, rng.Intn(2)+1),
		Developer:  studio,
		Publisher:  studio,
		HasSummary: rng.Intn(10) > 1,
		HasCover:   rng.Intn(10) > 0,
	}
	if rng.Intn(10) > 0 {
		released := time.Date(1990+rng.Intn(36), time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
		rec.ReleaseDate = released.Format(time.RFC3339)
	}

	// Popularity follows a long tail.
	popularity := rng.ExpFloat64()
	if rng.Intn(4) > 0 {
		rating := 40 + rng.Float64()*55
		count := int(popularity * 300)
		rec.Rating = &rating
		rec.RatingCount = &count
	}
	followers := int(popularity * 2000)
	rec.Followers = &followers
	if rng.Intn(3) == 0 {
		rec.Engagement = &engagement{
			Reviews:  int(popularity * 150),
			ListAdds: int(popularity * 900),
		}
	}
	return rec
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func pickCategory(rng *rand.Rand) string {
	total := 0
	for _, c := range categories {
		total += c.weight
	}
	n := rng.Intn(total)
	for _, c := range categories {
		if n < c.weight {
			return c.name
		}
		n -= c.weight
	}
	return categories[0].name
}

func sample(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}
