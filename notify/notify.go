// Package notify carries collection change notifications from writers and
// stream handlers to live query hubs.
package notify

import (
	"context"
	"sync"
)

// Kind classifies a change.
type Kind string

const (
	Added    Kind = "added"
	Modified Kind = "modified"
	Removed  Kind = "removed"
)

// Change reports that a document in a collection changed.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
}

// Publisher publishes change notifications.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Source delivers change notifications to fn until ctx is done.
type Source interface {
	Listen(ctx context.Context, fn func(Change)) error
}

// Bus is an in-process Publisher and Source. Listeners are invoked
// synchronously on the publishing goroutine and must not block.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(Change)
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]func(Change))}
}

// Publish delivers change to every current listener.
func (b *Bus) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
	return nil
}

// Listen registers fn and blocks until ctx is done.
func (b *Bus) Listen(ctx context.Context, fn func(Change)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
	return nil
}

// Listeners returns the number of registered listeners.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
