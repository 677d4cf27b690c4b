package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/gamescout/internal/search"
	"github.com/Aman-CERP/gamescout/internal/store"
	"github.com/Aman-CERP/gamescout/internal/telemetry"
)

func plainWriter() (*Writer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithColor(buf, false), buf
}

func sampleResult() *search.SearchResult {
	return &search.SearchResult{
		Intent:          "franchise_browse",
		TotalConsidered: 166,
		ElapsedMs:       12,
		CacheHit:        true,
		Candidates: []search.Candidate{
			{
				ID:            "1",
				CanonicalName: "Pokémon Red",
				Category:      store.CategoryMainGame,
				ReleaseYear:   1996,
				Developer:     "Game Freak",
				Publisher:     "Nintendo",
				Platforms:     []string{"Game Boy"},
				Source:        store.SourcePrimary,
				Scores:        &search.Scores{Composite: 0.8734},
			},
			{
				ID:            "x-9",
				CanonicalName: "Pokémon Legends: Arceus",
				Category:      store.CategoryMainGame,
				Source:        store.SourceExternal,
			},
		},
	}
}

// ===== Status lines =====

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("%d records imported", 3) }, "✓ 3 records imported"},
		{"warning", func(w *Writer) { w.Warning("provider disabled") }, "! provider disabled"},
		{"error", func(w *Writer) { w.Error("catalog missing") }, "✗ catalog missing"},
		{"no icon", func(w *Writer) { w.Status("", "indented") }, "   indented"},
		{"key value", func(w *Writer) { w.KeyValue("records", 42) }, "  records: 42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, buf := plainWriter()

			tt.write(w)

			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestWriter_JSON(t *testing.T) {
	w, buf := plainWriter()

	require.NoError(t, w.JSON(map[string]int{"records": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["records"])
}

func TestWriter_Progress(t *testing.T) {
	w, buf := plainWriter()

	w.Progress(0, 0, "nothing")
	assert.Empty(t, buf.String())

	w.Progress(5, 10, "importing")
	assert.Contains(t, buf.String(), "50% importing")
	assert.NotContains(t, buf.String(), "\n")

	w.Progress(10, 10, "done")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), renderProgressBar(0, 0, 10))
	assert.Equal(t, strings.Repeat("█", 5)+strings.Repeat("░", 5), renderProgressBar(1, 2, 10))
	assert.Equal(t, strings.Repeat("█", 10), renderProgressBar(20, 10, 10))
}

func TestNew_NonTerminalIsPlain(t *testing.T) {
	// A buffer is never a terminal.
	w := New(&bytes.Buffer{})

	assert.False(t, w.UseColor())
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	assert.True(t, DetectNoColor())
}

// ===== Results =====

func TestWriter_Results(t *testing.T) {
	// Given: a result with one primary and one external candidate
	w, buf := plainWriter()

	// When: rendering it
	w.Results("pokemon", sampleResult())

	// Then: the listing carries ranks, metadata and provenance
	out := buf.String()
	assert.Contains(t, out, `2 results for "pokemon" (franchise_browse)`)
	assert.Contains(t, out, "166 considered · 12ms · cached")
	assert.Contains(t, out, "  1. Pokémon Red")
	assert.Contains(t, out, "1996")
	assert.Contains(t, out, "0.873")
	assert.Contains(t, out, "Game Freak · Nintendo · Game Boy")
	assert.Contains(t, out, "via external")
	assert.NotContains(t, out, "\x1b[", "plain output has no escape codes")
}

func TestWriter_Results_Empty(t *testing.T) {
	w, buf := plainWriter()

	w.Results("qwzx", &search.SearchResult{DegradedSource: true})

	assert.Contains(t, buf.String(), `No games found for "qwzx"`)
	assert.Contains(t, buf.String(), "external source unavailable")
}

func TestWriter_Explain(t *testing.T) {
	w, buf := plainWriter()

	w.Explain(&search.Explain{
		Intent:    "franchise_browse",
		Franchise: "pokemon",
		Variants:  []string{"pokemon", "pokémon"},
		Retrieved: 166,
		Stages:    []search.StageReport{{Stage: "moderation", In: 166, Removed: 3}},
		Timings:   map[string]int{"retrieve": 9, "score": 1},
	})

	out := buf.String()
	assert.Contains(t, out, "franchise: pokemon")
	assert.Contains(t, out, "variants: pokemon | pokémon")
	assert.Contains(t, out, "stage moderation: 166 in, 3 removed")
	assert.Contains(t, out, "timings: retrieve 9ms, score 1ms")
}

func TestWriter_Metrics(t *testing.T) {
	w, buf := plainWriter()
	w.Metrics(&telemetry.Snapshot{})
	assert.Contains(t, buf.String(), "No queries recorded")

	buf.Reset()
	w.Metrics(&telemetry.Snapshot{
		TotalQueries:        4,
		CacheHits:           1,
		IntentCounts:        map[string]int64{"specific_game": 3, "year_search": 1},
		LatencyDistribution: map[telemetry.LatencyBucket]int64{telemetry.BucketP10: 4},
		TopTerms:            []telemetry.TermCount{{Term: "zelda", Count: 2}},
		Since:               time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	out := buf.String()
	assert.Contains(t, out, "Queries since 2026-01-02")
	assert.Contains(t, out, "cache hits: 1 (25.0%)")
	assert.Contains(t, out, "intent specific_game: 3")
	assert.Contains(t, out, "latency: p10=4")
	assert.Contains(t, out, "top terms: zelda(2)")
}

func TestPad(t *testing.T) {
	assert.Equal(t, "ab   ", pad("ab", 5))
	assert.Equal(t, "abcd…", pad("abcdefgh", 5))
	assert.Equal(t, "é", pad("é", 1))
}
