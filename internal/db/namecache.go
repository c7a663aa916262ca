package db

import (
	"context"
	"strings"
	"sync"
)

// NameCache maps product display names to stored ids. Both the full name and
// a vendor-stripped simplified name are keyed, so a listing that omits the
// vendor prefix still short-circuits before any network fetch. Built once
// per run from the store.
type NameCache struct {
	mu sync.RWMutex
	m  map[string]int64
	n  int
}

// BuildNameCache loads every stored product name into a fresh cache.
func (db *DB) BuildNameCache(ctx context.Context) (*NameCache, error) {
	names, err := db.ListProductNames(ctx)
	if err != nil {
		return nil, err
	}

	cache := &NameCache{m: make(map[string]int64, 2*len(names)), n: len(names)}
	for _, pn := range names {
		cache.m[pn.Name] = pn.ID
		if simplified := SimplifyName(pn.Name); simplified != pn.Name {
			cache.m[simplified] = pn.ID
		}
	}
	return cache, nil
}

// SimplifyName strips the leading vendor token from a display name.
func SimplifyName(name string) string {
	if _, rest, found := strings.Cut(name, " "); found {
		return rest
	}
	return name
}

// Lookup resolves a display name, trying the exact form first and the
// simplified form second.
func (c *NameCache) Lookup(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.m[name]; ok {
		return id, true
	}
	id, ok := c.m[SimplifyName(name)]
	return id, ok
}

// Add registers a newly stored product so later tasks in the same run see it.
func (c *NameCache) Add(name string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name] = id
	if simplified := SimplifyName(name); simplified != name {
		c.m[simplified] = id
	}
	c.n++
}

// Products returns how many distinct products seeded the cache.
func (c *NameCache) Products() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}
