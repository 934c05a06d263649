package fingerprint

import (
	"regexp"
	"sync"
)

// RegexCache memoizes compiled patterns by source string. Extraction runs
// the same template patterns against every document, so compilation cost
// is paid once per pattern, not once per use. Safe for concurrent use.
type RegexCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewRegexCache creates an empty regex cache
func NewRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*regexp.Regexp),
	}
}

// Get returns the compiled form of pattern, compiling and caching it on
// first use
func (c *RegexCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// GetInsensitive returns the case-insensitive compiled form of pattern
func (c *RegexCache) GetInsensitive(pattern string) (*regexp.Regexp, error) {
	return c.Get("(?i)" + pattern)
}

// Len returns the number of cached patterns
func (c *RegexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiled)
}
