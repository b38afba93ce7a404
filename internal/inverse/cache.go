package inverse

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/factsync/internal/spec"
)

// DefaultCacheSize bounds the number of specifications whose inverses are
// kept.
const DefaultCacheSize = 256

// Cache shares inverse lists between observers of structurally equal
// specifications, keyed by spec.Identity. An entry is published once and
// never modified afterwards; callers must treat returned slices as
// read-only.
//
// Thread-safety: safe for concurrent use.
type Cache struct {
	lru  *lru.Cache[string, []Inverse]
	opts []Option
}

// NewCache creates a cache holding at most size specifications. size <= 0
// selects DefaultCacheSize.
func NewCache(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []Inverse](size)
	if err != nil {
		return nil, fmt.Errorf("create inverse cache: %w", err)
	}
	return &Cache{lru: c, opts: opts}, nil
}

// Get returns the inverses of s, computing them on first use. Concurrent
// first calls may both compute; the first to publish wins and every
// caller receives the published list.
func (c *Cache) Get(s spec.Specification) ([]Inverse, error) {
	key := spec.Identity(s)
	if invs, ok := c.lru.Get(key); ok {
		return invs, nil
	}
	invs, err := Invert(s, c.opts...)
	if err != nil {
		return nil, err
	}
	if found, _ := c.lru.ContainsOrAdd(key, invs); found {
		if published, ok := c.lru.Get(key); ok {
			return published, nil
		}
	}
	return invs, nil
}

// Len is the number of cached specifications.
func (c *Cache) Len() int {
	return c.lru.Len()
}
