package update

import "sync"

// PageCache holds fetched page bodies for the lifetime of one update run, so
// a page shared by several reviews is fetched once.
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]string
}

// NewPageCache returns an empty cache.
func NewPageCache() *PageCache {
	return &PageCache{pages: make(map[string]string)}
}

// Get returns the cached body for url, if any.
func (c *PageCache) Get(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.pages[url]
	return body, ok
}

// Put stores a page body.
func (c *PageCache) Put(url, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[url] = body
}

// Len reports how many pages are cached.
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}
