package services

import (
	"sort"
	"sync"
)

// Catalog maps implementation identifiers to factories. Configuration names
// an identifier per service; the registry looks it up once at init time, so
// implementations can be swapped by configuration alone.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory, 16)}
}

// Bind registers factory under id.
func (c *Catalog) Bind(id string, factory Factory) error {
	if id == "" || factory == nil {
		return &NilFactoryError{Implementation: id}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[id]; exists {
		return &DuplicateImplementationError{Implementation: id}
	}
	c.factories[id] = factory
	return nil
}

// MustBind is like Bind but panics on error. It suits package init blocks.
func (c *Catalog) MustBind(id string, factory Factory) *Catalog {
	if err := c.Bind(id, factory); err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the factory bound to id.
func (c *Catalog) Lookup(id string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[id]
	return f, ok
}

// Identifiers returns every bound identifier, sorted.
func (c *Catalog) Identifiers() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
