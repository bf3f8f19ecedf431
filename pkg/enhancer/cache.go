package enhancer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PatternCache memoizes compiled glob patterns across Parse calls. Rule
// sets share a small vocabulary of patterns, so handing the same cache to
// every Parse amortizes compilation. The cache is safe for concurrent use;
// a single lock around lookup-or-insert is enough because the pattern set
// is small and contention low.
//
// Sharing is always explicit: two Parse calls reuse compiled patterns only
// if they were given the same *PatternCache.
type PatternCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, glob.Glob]
	stats CacheStats
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewPatternCache creates a cache holding at most capacity compiled
// patterns, evicting the least recently used entry beyond that. A capacity
// of zero (or less) disables caching; every lookup compiles.
func NewPatternCache(capacity int) *PatternCache {
	c := &PatternCache{}
	if capacity > 0 {
		// lru.NewWithEvict only fails for capacity <= 0, which is
		// excluded here.
		c.lru, _ = lru.NewWithEvict(capacity, func(string, glob.Glob) {
			c.stats.Evictions++
		})
	}
	return c
}

// Stats returns a snapshot of the cache counters.
func (c *PatternCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of compiled patterns currently cached.
func (c *PatternCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// getOrCompile returns the compiled form of pattern, consulting and
// populating the cache. Path-like patterns compile differently from plain
// ones, so the two forms are kept under distinct keys.
func (c *PatternCache) getOrCompile(pattern string, pathLike bool) (glob.Glob, error) {
	key := "g:" + pattern
	if pathLike {
		key = "p:" + pattern
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru != nil {
		if g, ok := c.lru.Get(key); ok {
			c.stats.Hits++
			return g, nil
		}
		c.stats.Misses++
	}

	g, err := compilePattern(pattern, pathLike)
	if err != nil {
		return nil, err
	}
	if c.lru != nil {
		c.lru.Add(key, g)
	}
	return g, nil
}

// compilePattern translates a rule pattern into a glob matcher. For
// path-like fields `/` is a separator: `*` and `?` stop at it, `**`
// crosses it, and backslashes in the pattern are treated as separators
// written the Windows way. Path-like values are matched lowercased, so the
// pattern is lowercased too. Plain fields match the whole value with no
// separator and are case-sensitive.
func compilePattern(pattern string, pathLike bool) (glob.Glob, error) {
	var g glob.Glob
	var err error
	if pathLike {
		normalized := strings.ToLower(strings.ReplaceAll(pattern, `\`, "/"))
		g, err = glob.Compile(normalized, '/')
	} else {
		g, err = glob.Compile(pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid pattern `%s`: %w", pattern, err)
	}
	return g, nil
}
