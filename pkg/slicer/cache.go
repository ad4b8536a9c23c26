package slicer

import "sync"

// SliceCache maps a cut height to the contour computed for it. Each height
// is computed at most once, even when several goroutines ask for it at the
// same time. Entries are never modified after insertion.
type SliceCache struct {
	mu      sync.Mutex
	entries map[float64]*cacheEntry
}

type cacheEntry struct {
	once    sync.Once
	contour *Contour
}

// NewSliceCache returns an empty cache.
func NewSliceCache() *SliceCache {
	return &SliceCache{entries: make(map[float64]*cacheEntry)}
}

// GetOrCompute returns the cached contour for z, calling compute to create
// it on first use.
func (c *SliceCache) GetOrCompute(z float64, compute func() *Contour) *Contour {
	c.mu.Lock()
	e, ok := c.entries[z]
	if !ok {
		e = &cacheEntry{}
		c.entries[z] = e
	}
	c.mu.Unlock()

	e.once.Do(func() { e.contour = compute() })
	return e.contour
}

// Get returns the contour cached for z, if any.
func (c *SliceCache) Get(z float64) (*Contour, bool) {
	c.mu.Lock()
	e, ok := c.entries[z]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	// Wait for a concurrent computation of the same entry to finish.
	e.once.Do(func() {})
	return e.contour, e.contour != nil
}

// Len returns the number of cached heights.
func (c *SliceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *SliceCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[float64]*cacheEntry)
	c.mu.Unlock()
}
