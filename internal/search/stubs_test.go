package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/gamescout/internal/store"
)

// stubCatalog matches records holding every query word in their name,
// studios, genres or release year, as the real stores do.
type stubCatalog struct {
	records []store.RawRecord
	err     error
	delay   time.Duration

	// failOn fails only these queries.
	failOn map[string]bool

	// block holds every call until closed or the ctx ends.
	block chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	queries []string
}

func (s *stubCatalog) Search(ctx context.Context, query string, limit int) ([]store.RawRecord, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil || s.failOn[query] {
		return nil, fmt.Errorf("catalog unavailable: %w", s.errOrDefault())
	}

	words := tokenize(foldName(query))
	var out []store.RawRecord
	for _, r := range s.records {
		if len(words) > 0 && matchesAll(searchableTokens(r), words) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func searchableTokens(r store.RawRecord) map[string]bool {
	parts := []string{r.Name, r.Developer, r.Publisher}
	parts = append(parts, r.Genres...)
	if !r.ReleaseDate.IsZero() {
		parts = append(parts, strconv.Itoa(r.ReleaseDate.Year()))
	}
	out := make(map[string]bool)
	for _, tok := range tokenize(foldName(strings.Join(parts, " "))) {
		out[tok] = true
	}
	return out
}

func matchesAll(tokens map[string]bool, words []string) bool {
	for _, w := range words {
		if !tokens[w] {
			return false
		}
	}
	return true
}

func (s *stubCatalog) errOrDefault() error {
	if s.err != nil {
		return s.err
	}
	return fmt.Errorf("connection reset")
}

func (s *stubCatalog) Close() error { return nil }

func (s *stubCatalog) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// stubOverrides serves a fixed flag table.
type stubOverrides struct {
	flags map[string]store.Flag
	err   error
	calls atomic.Int32
}

func (s *stubOverrides) LookupFlags(_ context.Context, ids []string) (map[string]store.Flag, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]store.Flag)
	for _, id := range ids {
		if f, ok := s.flags[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (s *stubOverrides) SetFlag(_ context.Context, id string, flag store.Flag) error {
	if s.flags == nil {
		s.flags = make(map[string]store.Flag)
	}
	s.flags[id] = flag
	return nil
}

// stubEngagement serves fixed counters.
type stubEngagement struct {
	counts map[string]store.Engagement
	err    error
}

func (s *stubEngagement) Counts(_ context.Context, ids []string) (map[string]store.Engagement, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]store.Engagement)
	for _, id := range ids {
		if e, ok := s.counts[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (s *stubEngagement) SetEngagement(_ context.Context, id string, e store.Engagement) error {
	s.counts[id] = e
	return nil
}

// stubProvider returns fixed records, optionally after a delay that honours
// the ctx.
type stubProvider struct {
	records []store.RawRecord
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (p *stubProvider) Search(ctx context.Context, _ string, _ int) ([]store.RawRecord, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.records, p.err
}

// game builds a complete record: summary, developer, publisher and cover.
func game(id, name string, year int) store.RawRecord {
	r := store.RawRecord{
		ID:             id,
		Name:           name,
		Category:       store.CategoryMainGame,
		Platforms:      []string{"Nintendo Switch"},
		Genres:         []string{"Adventure"},
		Developer:      "Studio " + id,
		Publisher:      "Publisher " + id,
		SummaryPresent: true,
		CoverPresent:   true,
	}
	if year > 0 {
		r.ReleaseDate = time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	return r
}

func withCategory(r store.RawRecord, c store.Category) store.RawRecord {
	r.Category = c
	return r
}

func withRating(r store.RawRecord, rating float64, n int) store.RawRecord {
	r.RatingValue = &rating
	r.RatingSampleSize = &n
	return r
}

func candidate(id, name string) Candidate {
	return newCandidate(game(id, name, 2020))
}

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.CanonicalName
	}
	return out
}

func candidateIDs(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
