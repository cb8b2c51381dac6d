package observer

import "github.com/jacentio/livefeed/store"

// ResultSet is an insertion-ordered set of items keyed by identity.
// It is not safe for concurrent use.
type ResultSet struct {
	order []string
	items map[string]store.Item
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{items: make(map[string]store.Item)}
}

// Len returns the number of items.
func (r *ResultSet) Len() int {
	return len(r.order)
}

// Contains reports whether an item with the given identity is present.
func (r *ResultSet) Contains(id string) bool {
	_, ok := r.items[id]
	return ok
}

// Merge appends items whose identity is not yet present, in the order given.
// Items already present keep their value and position. It returns the
// number of items dropped as duplicates.
func (r *ResultSet) Merge(items []store.Item) int {
	dropped := 0
	for _, it := range items {
		if _, ok := r.items[it.ID]; ok {
			dropped++
			continue
		}
		r.items[it.ID] = it
		r.order = append(r.order, it.ID)
	}
	return dropped
}

// Replace discards the current contents and merges items.
func (r *ResultSet) Replace(items []store.Item) int {
	r.Clear()
	return r.Merge(items)
}

// Clear removes every item.
func (r *ResultSet) Clear() {
	r.order = nil
	r.items = make(map[string]store.Item)
}

// Items returns the items in order. The slice is a copy; the items' Fields
// maps are shared and must be treated as read-only.
func (r *ResultSet) Items() []store.Item {
	out := make([]store.Item, len(r.order))
	for i, id := range r.order {
		out[i] = r.items[id]
	}
	return out
}

// Last returns the most recently appended item.
func (r *ResultSet) Last() (store.Item, bool) {
	if len(r.order) == 0 {
		return store.Item{}, false
	}
	return r.items[r.order[len(r.order)-1]], true
}
