package adjudicator

import "sync"

// Cache memoizes rule results, keyed by the content address of
// (rule ID, hashed inputs). Entries are never evicted within a process
// lifetime; the key space is bounded by the distinct (rule, input-hash)
// pairs actually queried.
//
// Implementations must tolerate concurrent population with at-least-once
// semantics: two goroutines computing the same key may both store a result,
// and whichever lands last wins. Rule bodies are pure, so the results are
// interchangeable.
type Cache interface {
	// Get returns the stored value for key, if present.
	Get(key string) (any, bool)
	// Put stores value under key, replacing any prior entry.
	Put(key string, value any)
}

// MemoryCache is the default in-process Cache: a mutex-guarded map.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]any)}
}

// Get implements Cache.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put implements Cache.
func (c *MemoryCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Len returns the number of cached entries. Used in tests and diagnostics.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
