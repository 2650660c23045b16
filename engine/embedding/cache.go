package embedding

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps normalized text to a computed vector. Implementations must
// be safe for concurrent use; Put of an existing key overwrites it.
type Cache interface {
	Get(key string) (Vector, bool)
	Put(key string, v Vector)
	Len() int
}

// MapCache is an unbounded cache that lives as long as its owner.
type MapCache struct {
	mu sync.RWMutex
	m  map[string]Vector
}

// NewMapCache returns an empty unbounded cache.
func NewMapCache() *MapCache {
	return &MapCache{m: make(map[string]Vector)}
}

func (c *MapCache) Get(key string) (Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *MapCache) Put(key string, v Vector) {
	c.mu.Lock()
	c.m[key] = v
	c.mu.Unlock()
}

func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// LRUCache holds at most a fixed number of vectors, evicting the least
// recently used.
type LRUCache struct {
	c *lru.Cache[string, Vector]
}

// NewLRUCache returns a cache bounded to size entries. size must be positive.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, Vector](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{c: c}, nil
}

func (c *LRUCache) Get(key string) (Vector, bool) { return c.c.Get(key) }
func (c *LRUCache) Put(key string, v Vector)      { c.c.Add(key, v) }
func (c *LRUCache) Len() int                      { return c.c.Len() }

// NewCache returns an unbounded MapCache for size <= 0 and an LRUCache otherwise.
func NewCache(size int) Cache {
	if size <= 0 {
		return NewMapCache()
	}
	c, err := NewLRUCache(size)
	if err != nil {
		return NewMapCache()
	}
	return c
}
