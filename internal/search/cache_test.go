package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedResult(n int) func(context.Context) (*SearchResult, error) {
	return func(context.Context) (*SearchResult, error) {
		return &SearchResult{TotalConsidered: n, Candidates: []Candidate{candidate("1", "Doom")}}, nil
	}
}

func TestCacheKey(t *testing.T) {
	q := Normalize("Doom")

	assert.Equal(t, CacheKey(q, SearchOptions{}), CacheKey(Normalize("  DOOM "), SearchOptions{}))
	assert.Equal(t, CacheKey(q, SearchOptions{NoCache: true}), CacheKey(q, SearchOptions{}))
	assert.NotEqual(t, CacheKey(q, SearchOptions{}), CacheKey(q, SearchOptions{Platform: "pc"}))
	assert.NotEqual(t, CacheKey(q, SearchOptions{}), CacheKey(q, SearchOptions{Year: 1993}))
	assert.NotEqual(t, CacheKey(q, SearchOptions{}), CacheKey(q, SearchOptions{Explain: true}))
}

func TestResultCache_HitIsMarkedAndIsolated(t *testing.T) {
	c := NewResultCache(10, time.Minute)
	ctx := context.Background()

	first, err := c.GetOrCompute(ctx, "k", fixedResult(1))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Mutating a returned result must not leak into the cache.
	first.Candidates[0].CanonicalName = "changed"

	second, err := c.GetOrCompute(ctx, "k", fixedResult(2))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, second.TotalConsidered)
	assert.Equal(t, "Doom", second.Candidates[0].CanonicalName)
}

func TestResultCache_HitSharesNoNestedData(t *testing.T) {
	// Given: a cached result with slices and pointers on its candidate
	c := NewResultCache(10, time.Minute)
	ctx := context.Background()
	rated := newCandidate(withRating(game("1", "Hades", 2020), 93, 400))
	followers := 5000
	rated.FollowerCount = &followers
	rated.Scores = &Scores{Relevance: 1}
	compute := func(context.Context) (*SearchResult, error) {
		return &SearchResult{
			Candidates: []Candidate{rated},
			Explain:    &Explain{Variants: []string{"hades"}, Timings: map[string]int{"total": 3}},
		}, nil
	}

	// When: a caller mutates everything the result reaches
	first, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	got := &first.Candidates[0]
	got.Platforms[0] = "changed"
	got.Genres[0] = "changed"
	*got.RatingValue = 1
	*got.RatingSampleSize = 1
	*got.FollowerCount = 1
	got.Scores.Relevance = 0
	first.Explain.Timings["total"] = 99

	// Then: the next hit is untouched
	second, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	hit := second.Candidates[0]
	assert.Equal(t, "Nintendo Switch", hit.Platforms[0])
	assert.Equal(t, "Adventure", hit.Genres[0])
	assert.Equal(t, 93.0, *hit.RatingValue)
	assert.Equal(t, 400, *hit.RatingSampleSize)
	assert.Equal(t, 5000, *hit.FollowerCount)
	assert.Equal(t, 1.0, hit.Scores.Relevance)
	assert.Equal(t, 3, second.Explain.Timings["total"])
}

func TestResultCache_PurgeDuringComputeIsNotStored(t *testing.T) {
	// Given: a computation that is still running
	c := NewResultCache(10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*SearchResult, error) {
			close(started)
			<-release
			return &SearchResult{TotalConsidered: 1}, nil
		})
		assert.NoError(t, err)
	}()
	<-started

	// When: the cache is purged before it finishes
	c.Purge()
	close(release)
	<-done

	// Then: the stale result is not cached and the next caller recomputes
	assert.Zero(t, c.Len())
	res, err := c.GetOrCompute(context.Background(), "k", fixedResult(2))
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 2, res.TotalConsidered)
}

func TestResultCache_PurgeSplitsInFlightWork(t *testing.T) {
	// Given: a computation that is still running
	c := NewResultCache(10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = c.GetOrCompute(context.Background(), "k", func(context.Context) (*SearchResult, error) {
			close(started)
			<-release
			return &SearchResult{TotalConsidered: 1}, nil
		})
	}()
	<-started
	defer close(release)

	// When: a caller arrives after a purge
	c.Purge()
	res, err := c.GetOrCompute(context.Background(), "k", fixedResult(2))

	// Then: it runs its own computation instead of joining the old one
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalConsidered)
}

func TestResultCache_ConcurrentMissesCoalesce(t *testing.T) {
	// Given: a slow computation
	c := NewResultCache(10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*SearchResult, error) {
		calls.Add(1)
		<-release
		return &SearchResult{}, nil
	}

	// When: several callers miss on the same key at once
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute(context.Background(), "same", compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Then: it ran once
	assert.Equal(t, int32(1), calls.Load())
}

func TestResultCache_DegradedNotStored(t *testing.T) {
	c := NewResultCache(10, time.Minute)

	_, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*SearchResult, error) {
		return &SearchResult{DegradedSource: true}, nil
	})
	require.NoError(t, err)

	assert.Zero(t, c.Len())
}

func TestResultCache_ErrorsNotStored(t *testing.T) {
	c := NewResultCache(10, time.Minute)

	_, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*SearchResult, error) {
		return nil, errors.New("catalog down")
	})
	require.Error(t, err)

	res, err := c.GetOrCompute(context.Background(), "k", fixedResult(3))
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
}

func TestResultCache_CallerCancelDoesNotCancelSharedWork(t *testing.T) {
	c := NewResultCache(10, time.Minute)
	release := make(chan struct{})
	var sawCancel atomic.Bool
	compute := func(ctx context.Context) (*SearchResult, error) {
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return &SearchResult{TotalConsidered: 7}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", compute)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// A second caller joins the same computation and gets its result.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	res, err := c.GetOrCompute(context.Background(), "k", fixedResult(99))
	require.NoError(t, err)
	assert.Equal(t, 7, res.TotalConsidered)
	assert.False(t, sawCancel.Load())
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	c := NewResultCache(10, 30*time.Millisecond)
	_, err := c.GetOrCompute(context.Background(), "k", fixedResult(1))
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestResultCache_ZeroSizeStoresNothing(t *testing.T) {
	c := NewResultCache(0, time.Minute)

	_, err := c.GetOrCompute(context.Background(), "k", fixedResult(1))
	require.NoError(t, err)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestResultCache_Purge(t *testing.T) {
	c := NewResultCache(10, time.Minute)
	_, _ = c.GetOrCompute(context.Background(), "k", fixedResult(1))
	require.Equal(t, 1, c.Len())

	c.Purge()

	assert.Zero(t, c.Len())
}
