package store

import "time"

// Config holds configuration for the Store.
type Config struct {
	// FeedKeyAttr is the attribute holding the sharded feed partition key.
	// Every feed index uses it as its partition key.
	// Default: "feed_pk"
	FeedKeyAttr string

	// NumShards is the number of feed partitions per collection.
	// Higher values increase write throughput but require more parallel
	// queries per snapshot, merged in order on the client.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// Now returns the current time. Used for server timestamps and TTL filtering.
	// Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns sensible defaults for small feeds.
func DefaultConfig() Config {
	return Config{
		FeedKeyAttr: "feed_pk",
		NumShards:   1,
		Now:         time.Now,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.FeedKeyAttr == "" {
		c.FeedKeyAttr = "feed_pk"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
