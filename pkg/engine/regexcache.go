package engine

import (
	"regexp"
	"sync"
)

// regexCache memoizes compiled patterns, including patterns that failed to
// compile. When the cache reaches its limit it is cleared.
type regexCache struct {
	mu      sync.RWMutex
	entries map[string]*regexp.Regexp
	limit   int
}

func newRegexCache(limit int) *regexCache {
	return &regexCache{
		entries: make(map[string]*regexp.Regexp),
		limit:   limit,
	}
}

// get returns the compiled pattern, or false if it does not compile.
func (c *regexCache) get(pattern string) (*regexp.Regexp, bool) {
	c.mu.RLock()
	re, hit := c.entries[pattern]
	c.mu.RUnlock()
	if hit {
		return re, re != nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}

	if c.limit <= 0 {
		return re, re != nil
	}

	c.mu.Lock()
	if len(c.entries) >= c.limit {
		c.entries = make(map[string]*regexp.Regexp)
	}
	c.entries[pattern] = re
	c.mu.Unlock()

	return re, re != nil
}

func (c *regexCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
