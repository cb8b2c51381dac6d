package store

import "errors"

var (
	// ErrNotFound is returned when a document doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("livefeed: document not found")

	// ErrAlreadyExists is returned when attempting to create a document with an existing ID.
	ErrAlreadyExists = errors.New("livefeed: document already exists")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("livefeed: document was modified concurrently")

	// ErrUnknownCollection is returned when a collection is not registered.
	ErrUnknownCollection = errors.New("livefeed: unknown collection")

	// ErrUnsupportedOrder is returned when a query orders by a field without an index.
	ErrUnsupportedOrder = errors.New("livefeed: no index for ordering field")
)
