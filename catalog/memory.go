// Package catalog provides Catalog implementations backed by memory, a JSON
// file or PostgreSQL.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/proxyfox/proxyfox"
)

// MemoryCatalog is a Catalog held in memory. Safe for concurrent use.
type MemoryCatalog struct {
	mu        sync.RWMutex
	resources map[string]proxyfox.Resource
}

// NewMemoryCatalog creates a catalog holding the given resources.
func NewMemoryCatalog(resources ...proxyfox.Resource) *MemoryCatalog {
	c := &MemoryCatalog{resources: make(map[string]proxyfox.Resource, len(resources))}
	for _, r := range resources {
		c.resources[r.ID] = r
	}
	return c
}

// Put adds or replaces a resource.
func (c *MemoryCatalog) Put(r proxyfox.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.ID] = r
}

// Replace swaps the whole resource set.
func (c *MemoryCatalog) Replace(resources []proxyfox.Resource) {
	next := make(map[string]proxyfox.Resource, len(resources))
	for _, r := range resources {
		next[r.ID] = r
	}
	c.mu.Lock()
	c.resources = next
	c.mu.Unlock()
}

func (c *MemoryCatalog) ResolveResource(ctx context.Context, id string) (*proxyfox.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resources[id]
	if !ok {
		return nil, proxyfox.NewResourceNotFound(id)
	}
	r.Actions = append([]proxyfox.Action(nil), r.Actions...)
	return &r, nil
}

func (c *MemoryCatalog) ListResources(ctx context.Context) ([]proxyfox.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]proxyfox.Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
