package classify

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// DefaultCacheSize is the number of distinct operation texts kept by NewCached
// when size is not positive.
const DefaultCacheSize = 1024

// MaxCachedTextLen bounds the text length stored in the cache. Longer texts
// are classified on every call so that huge ad-hoc statements cannot pin memory.
const MaxCachedTextLen = 4096

// Cached memoizes verdicts of an underlying Classifier.
// It is safe for concurrent use.
type Cached struct {
	next  Classifier
	cache *lru.Cache
}

// NewCached wraps next with an LRU of the given size.
// A nil next uses Keywords.
func NewCached(next Classifier, size int) (*Cached, error) {
	if next == nil {
		next = Keywords{}
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create classifier cache: %w", err)
	}
	return &Cached{next: next, cache: c}, nil
}

// Classify implements Classifier.
func (c *Cached) Classify(text string) domain.Verdict {
	if len(text) > MaxCachedTextLen {
		return c.next.Classify(text)
	}
	if v, ok := c.cache.Get(text); ok {
		return v.(domain.Verdict)
	}
	v := c.next.Classify(text)
	c.cache.Add(text, v)
	return v
}

// Len returns the number of cached verdicts.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge drops every cached verdict.
func (c *Cached) Purge() {
	c.cache.Purge()
}
