package live

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jacentio/livefeed/query"
)

// Subscription is one live query registration on a Hub.
//
// Snapshots for a subscription are delivered one at a time, in query order.
// Change notifications that arrive while a query is running are coalesced
// into a single follow-up query.
type Subscription struct {
	id          string
	hub         *Hub
	collection  string
	constraints query.Constraints
	handler     Handler

	cancelled atomic.Bool

	mu      sync.Mutex
	running bool
	dirty   bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Collection returns the subscribed collection.
func (s *Subscription) Collection() string {
	return s.collection
}

// Constraints returns the subscribed constraints.
func (s *Subscription) Constraints() query.Constraints {
	return s.constraints
}

// Cancel unregisters the subscription. After Cancel returns no new delivery
// starts; a query already in flight runs to completion and its result is
// discarded. Cancel is idempotent.
func (s *Subscription) Cancel() {
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.hub.remove(s)
	s.hub.metrics.ActiveSubscriptions.Dec()
	s.hub.logger.Debug("unsubscribed",
		"subscription", s.id,
		"collection", s.collection,
	)
}

// Cancelled reports whether Cancel has been called.
func (s *Subscription) Cancelled() bool {
	return s.cancelled.Load()
}

// refresh schedules a snapshot query, coalescing with one already running.
func (s *Subscription) refresh() {
	s.mu.Lock()
	if s.running {
		s.dirty = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
}

func (s *Subscription) loop() {
	for {
		s.deliver()

		s.mu.Lock()
		if !s.dirty || s.Cancelled() {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.dirty = false
		s.mu.Unlock()
	}
}

func (s *Subscription) deliver() {
	if s.Cancelled() {
		return
	}

	ctx, cancel := context.WithTimeout(s.hub.ctx, s.hub.queryTimeout)
	items, err := s.hub.querier.Query(ctx, s.collection, s.constraints)
	cancel()

	if s.Cancelled() {
		return
	}

	if err != nil {
		s.hub.metrics.QueryErrors.Inc()
		s.hub.logger.Warn("snapshot query failed",
			"subscription", s.id,
			"collection", s.collection,
			"error", err,
		)
		if s.handler.OnError != nil {
			s.handler.OnError(err)
		}
		return
	}

	s.hub.metrics.SnapshotsDelivered.Inc()
	if s.handler.OnSnapshot != nil {
		s.handler.OnSnapshot(items)
	}
}
