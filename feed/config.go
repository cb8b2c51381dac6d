package feed

import "time"

// Config holds configuration for a Controller.
type Config struct {
	// Collection is the collection the feed reads and writes.
	// Default: "messages"
	Collection string

	// PageSize is the number of items requested per page. A snapshot with
	// fewer items ends pagination for the session.
	// Default: 20
	PageSize int32

	// OrderField is the creation-time field the feed is ordered by,
	// newest first. The cursor is this field's value on the oldest item.
	// Default: "created_at"
	OrderField string

	// ScrollThreshold is the distance from the top, in the caller's scroll
	// units, at or under which an older page is requested.
	// Default: 50
	ScrollThreshold float64

	// LoadDelay is the pause between a scroll trigger and committing the
	// new cursor.
	// Default: 1s
	LoadDelay time.Duration

	// ActivationKey is the key that submits the input.
	// Default: "Enter"
	ActivationKey string
}

// DefaultConfig returns the defaults for a chat feed.
func DefaultConfig() Config {
	return Config{
		Collection:      "messages",
		PageSize:        20,
		OrderField:      "created_at",
		ScrollThreshold: 50,
		LoadDelay:       time.Second,
		ActivationKey:   "Enter",
	}
}

// validate fills unset values with defaults.
func (c *Config) validate() {
	d := DefaultConfig()
	if c.Collection == "" {
		c.Collection = d.Collection
	}
	if c.PageSize < 1 {
		c.PageSize = d.PageSize
	}
	if c.OrderField == "" {
		c.OrderField = d.OrderField
	}
	if c.ScrollThreshold < 0 {
		c.ScrollThreshold = 0
	}
	if c.LoadDelay < 0 {
		c.LoadDelay = 0
	}
	if c.ActivationKey == "" {
		c.ActivationKey = d.ActivationKey
	}
}
