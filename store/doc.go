// Package store provides the DynamoDB document store behind live feeds.
//
// Each collection lives in its own table keyed by "id" and carries a feed
// index (a GSI) whose partition key is a sharded feed key and whose sort key
// is an ordering field such as "created_at". Live queries are answered with
// full snapshots: every call to [Store.Query] returns the complete set of
// current matches for a [query.Constraints] value.
//
// # Key Features
//
//   - Snapshot queries with ordering, exclusive cursors and page limits
//   - Soft deletes via TTL (deleted items never appear in snapshots)
//   - Optimistic locking with a version field
//   - Server-assigned timestamps ([ServerTimestamp])
//   - Timestamp normalization on ingestion ([Normalize])
//   - Configurable feed sharding with ordered fan-in
//   - Change notifications published after every successful write
//
// # Collections
//
// Collections are declared in a [Registry]:
//
//	reg := store.NewRegistry()
//	reg.Register(store.Collection{
//	    Name:      "messages",
//	    TableName: "livefeed_messages",
//	    Indexes:   map[string]string{"created_at": "feed_created_at"},
//	})
//
// # Configuration
//
// Use [DefaultConfig] for small feeds (NumShards=1, single queries).
// Increase NumShards for higher write throughput per collection:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - document doesn't exist or is deleted
//   - [ErrAlreadyExists] - document with ID already exists
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrUnknownCollection] - collection is not registered
//   - [ErrUnsupportedOrder] - ordering field has no index
package store
