// Package catalog holds the struct catalog discovered from the controller
// and panel address spaces: static per-parameter metadata (name, unit,
// type, writability, range) keyed by stored index.
package catalog

import (
	"fmt"
	"sync"

	"github.com/econext/gm3-gateway/internal/cache"
	"github.com/econext/gm3-gateway/internal/model"
)

// StructCatalog is a thread-safe, atomically-replaceable map of discovered
// parameter metadata.
type StructCatalog struct {
	mu      sync.RWMutex
	entries map[int]model.CatalogEntry
}

// New constructs an empty catalog.
func New() *StructCatalog {
	return &StructCatalog{entries: make(map[int]model.CatalogEntry)}
}

// Get returns the catalog entry for a stored index, if known.
func (c *StructCatalog) Get(storedIndex int) (model.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[storedIndex]
	return e, ok
}

// GetByName returns the first catalog entry with the given name.
func (c *StructCatalog) GetByName(name string) (model.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Name == name {
			return e, true
		}
	}
	return model.CatalogEntry{}, false
}

// All returns a snapshot copy of every catalog entry, keyed by stored index.
func (c *StructCatalog) All() map[int]model.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]model.CatalogEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Count returns the number of catalog entries.
func (c *StructCatalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ReplaceSpace replaces every entry belonging to space with newEntries, in a
// single atomic step: entries from the other address space are untouched.
// An empty newEntries slice is a no-op — a discovery pass that found
// nothing must never wipe out a previously-known address space.
func (c *StructCatalog) ReplaceSpace(space model.AddressSpace, newEntries []model.CatalogEntry) {
	if len(newEntries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, e := range c.entries {
		if e.Space != space {
			continue
		}
		delete(c.entries, idx)
	}
	for _, e := range newEntries {
		c.entries[e.StoredIndex] = e
	}
}

// ReplaceAll atomically replaces the entire catalog with newEntries
// (covering both address spaces at once), mirroring a full discovery pass
// (spec.md §4.8's discover_params: a single token grant re-derives both
// spaces together). An empty newEntries is a no-op, so a failed discovery
// pass never wipes a previously-known catalog.
func (c *StructCatalog) ReplaceAll(newEntries []model.CatalogEntry) {
	if len(newEntries) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]model.CatalogEntry, len(newEntries))
	for _, e := range newEntries {
		c.entries[e.StoredIndex] = e
	}
}

// ResolveMinMax resolves an entry's effective min and max bounds
// independently, each following its own dynamic parameter reference
// (MinParamRef/MaxParamRef) against the live cache when the entry has one.
// Either return is nil if that particular bound is absent or its reference
// could not be resolved (the referenced parameter is not yet cached) — an
// unresolved max must never blank out an already-known min, or vice versa.
func ResolveMinMax(e model.CatalogEntry, c *cache.ParameterCache) (min, max *float64) {
	return resolveBound(e.MinParamRef, e.MinValue, c), resolveBound(e.MaxParamRef, e.MaxValue, c)
}

func resolveBound(ref *int, literal *float64, c *cache.ParameterCache) *float64 {
	if ref != nil {
		cached, found := c.Get(*ref)
		if !found {
			return nil
		}
		v, err := asFloat(cached.Value)
		if err != nil {
			return nil
		}
		return &v
	}
	if literal != nil {
		v := *literal
		return &v
	}
	return nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("catalog: value %v (%T) is not numeric", v, v)
	}
}
