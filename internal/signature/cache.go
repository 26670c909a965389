package signature

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of formatted signatures kept by Cached.
const DefaultCacheSize = 4096

type cacheKey struct {
	name string
	desc string
}

// Cached memoizes a Formatter. Reports repeat the same (name, descriptor)
// pairs across classes (constructors, accessors), so hits are common.
// Errors are not cached. Safe for concurrent use.
type Cached struct {
	next  Formatter
	cache *lru.Cache[cacheKey, string]
}

// NewCached wraps next with an LRU cache of the given size.
func NewCached(next Formatter, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("create signature cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Format implements Formatter.
func (c *Cached) Format(name, desc string) (string, error) {
	key := cacheKey{name: name, desc: desc}
	if sig, ok := c.cache.Get(key); ok {
		return sig, nil
	}
	sig, err := c.next.Format(name, desc)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, sig)
	return sig, nil
}

// Len returns the number of cached signatures.
func (c *Cached) Len() int {
	return c.cache.Len()
}
