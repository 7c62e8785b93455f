// Package cache holds the gateway's live parameter values: a concurrent,
// in-memory map keyed by stored index, updated wholesale after each poll
// batch and read concurrently by the HTTP surface and write path.
package cache

import (
	"sync"
	"time"

	"github.com/econext/gm3-gateway/internal/model"
)

// ParameterCache is a thread-safe in-memory store of live parameter values,
// keyed by stored index (see model.CatalogEntry.StoredIndex /
// model.PanelStoreOffset for how controller and panel indices share one key
// space).
type ParameterCache struct {
	mu         sync.RWMutex
	values     map[int]model.Parameter
	lastUpdate time.Time
}

// New constructs an empty cache.
func New() *ParameterCache {
	return &ParameterCache{values: make(map[int]model.Parameter)}
}

// Get returns the parameter stored at index, if any.
func (c *ParameterCache) Get(index int) (model.Parameter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.values[index]
	return p, ok
}

// GetByName returns the first cached parameter with the given name.
// Multiple stored indices can share a name across address spaces, so this
// is best-effort and returns whichever match the map iteration finds first.
func (c *ParameterCache) GetByName(name string) (model.Parameter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.values {
		if p.Name == name {
			return p, true
		}
	}
	return model.Parameter{}, false
}

// GetAll returns a snapshot copy of every cached parameter, keyed by stored
// index.
func (c *ParameterCache) GetAll() map[int]model.Parameter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]model.Parameter, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Set stores or updates a single parameter.
func (c *ParameterCache) Set(p model.Parameter, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[p.StoredIndex] = p
	c.lastUpdate = now
}

// SetMany stores or updates a batch of parameters as a single atomic
// operation: readers never observe a state with only part of the batch
// applied.
func (c *ParameterCache) SetMany(params []model.Parameter, now time.Time) {
	if len(params) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range params {
		c.values[p.StoredIndex] = p
	}
	c.lastUpdate = now
}

// Clear removes every cached parameter.
func (c *ParameterCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[int]model.Parameter)
	c.lastUpdate = time.Time{}
}

// LastUpdate returns the time of the most recent Set/SetMany call, or the
// zero time if the cache has never been written to or has been emptied by
// Clear since.
func (c *ParameterCache) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Count returns the number of cached parameters.
func (c *ParameterCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
