package store

import "sync"

// Collection describes how a named collection is laid out in DynamoDB.
type Collection struct {
	// Name is the collection name used by callers (e.g., "messages").
	Name string

	// TableName is the DynamoDB table holding the collection's documents.
	TableName string

	// Indexes maps an ordering field to the feed GSI sorted by it
	// (e.g., "created_at" -> "feed_created_at").
	Indexes map[string]string

	// DefaultOrder is the ordering field used when a query has no ordering clause.
	// Default: "created_at"
	DefaultOrder string
}

// Registry holds all known collections. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	collections []Collection
	byName      map[string]Collection
	byTable     map[string]Collection
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: []Collection{},
		byName:      make(map[string]Collection),
		byTable:     make(map[string]Collection),
	}
}

// Register adds a collection to the registry. A later registration with the
// same name replaces the earlier one.
func (r *Registry) Register(c Collection) {
	if c.DefaultOrder == "" {
		c.DefaultOrder = "created_at"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byName[c.Name]; ok {
		delete(r.byTable, prev.TableName)
		for i := range r.collections {
			if r.collections[i].Name == c.Name {
				r.collections[i] = c
			}
		}
	} else {
		r.collections = append(r.collections, c)
	}
	r.byName[c.Name] = c
	r.byTable[c.TableName] = c
}

// Lookup returns the collection registered under name.
func (r *Registry) Lookup(name string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// ByTable returns the collection stored in the given table.
func (r *Registry) ByTable(table string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byTable[table]
	return c, ok
}

// All returns all registered collections in registration order.
func (r *Registry) All() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Collection(nil), r.collections...)
}

// IndexFor returns the feed index sorted by field.
func (c Collection) IndexFor(field string) (string, bool) {
	idx, ok := c.Indexes[field]
	return idx, ok
}
