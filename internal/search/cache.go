package search

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache defaults.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// ResultCache is a TTL and capacity bounded cache of search results.
// Concurrent misses on one key share a single computation.
type ResultCache struct {
	lru   *expirable.LRU[string, *SearchResult]
	group singleflight.Group

	// generation advances on Purge. A computation started under an older
	// generation is neither stored nor shared with later callers.
	mu         sync.Mutex
	generation uint64
}

// NewResultCache creates a cache of up to size results kept for ttl. A size
// of zero stores nothing but still coalesces concurrent identical queries.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	c := &ResultCache{}
	if size > 0 {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		c.lru = expirable.NewLRU[string, *SearchResult](size, nil, ttl)
	}
	return c
}

// CacheKey identifies a query and the options that change its result.
func CacheKey(q Query, opts SearchOptions) string {
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteString("\x00")
	b.WriteString(foldName(opts.Platform))
	b.WriteString("\x00")
	b.WriteString(strconv.Itoa(opts.Year))
	b.WriteString("\x00")
	b.WriteString(foldName(opts.Genre))
	if opts.Explain {
		b.WriteString("\x00explain")
	}
	return b.String()
}

// Get returns a copy of the cached result for key, marked as a cache hit.
func (c *ResultCache) Get(key string) (*SearchResult, bool) {
	if c.lru == nil {
		return nil, false
	}
	res, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	out := res.clone()
	out.CacheHit = true
	return out, true
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers of key and caches its result. Degraded results are
// returned but not stored, so the next query retries the provider.
//
// compute runs detached from any single caller's cancellation; a caller whose
// ctx ends stops waiting without cancelling the shared work.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*SearchResult, error)) (*SearchResult, error) {
	if res, ok := c.Get(key); ok {
		return res, nil
	}

	gen := c.currentGeneration()
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"\x00"+strconv.FormatUint(gen, 10), func() (any, error) {
		if res, ok := c.Get(key); ok {
			return res, nil
		}
		res, err := compute(detached)
		if err != nil {
			return nil, err
		}
		if !res.DegradedSource {
			c.store(key, res, gen)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*SearchResult).clone(), nil
	}
}

// store caches res unless the cache was purged since gen was read.
func (c *ResultCache) store(key string, res *SearchResult, gen uint64) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.lru.Add(key, res.clone())
}

func (c *ResultCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Purge drops every cached result. Computations already running are not
// cached when they finish.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.lru != nil {
		c.lru.Purge()
	}
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
