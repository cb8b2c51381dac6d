// Package live provides push-based live query subscriptions.
//
// A [Hub] answers every subscription with full snapshots: one right after
// subscribing and one after every change notification for the
// subscription's collection. Snapshots are complete enumerations of the
// current matches, never diffs.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/livefeed/internal/metrics"
	"github.com/jacentio/livefeed/notify"
	"github.com/jacentio/livefeed/query"
	"github.com/jacentio/livefeed/store"
)

// ErrClosed is returned when subscribing to a closed Hub.
var ErrClosed = errors.New("livefeed: hub closed")

// Querier runs snapshot queries. *store.Store satisfies it.
type Querier interface {
	Query(ctx context.Context, collection string, c query.Constraints) ([]store.Item, error)
}

// Handler receives a subscription's snapshots and errors.
type Handler struct {
	// OnSnapshot receives each full snapshot.
	OnSnapshot func(items []store.Item)

	// OnError receives query errors. The subscription stays registered.
	OnError func(err error)
}

// Canceler releases a subscription.
type Canceler interface {
	Cancel()
}

// Source establishes live query subscriptions. *Hub satisfies it.
type Source interface {
	Subscribe(collection string, c query.Constraints, h Handler) (Canceler, error)
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets the hub metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithQueryTimeout bounds each snapshot query.
// Default: 10s
func WithQueryTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.queryTimeout = d
		}
	}
}

// Hub fans change notifications out to live query subscriptions.
type Hub struct {
	querier      Querier
	logger       *slog.Logger
	metrics      *metrics.Metrics
	queryTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[string]map[string]*Subscription // collection -> id -> subscription
	closed bool
}

// NewHub creates a Hub answering subscriptions with querier.
func NewHub(querier Querier, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		querier:      querier,
		logger:       slog.Default(),
		metrics:      metrics.Discard(),
		queryTimeout: 10 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		subs:         make(map[string]map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run feeds change notifications from source into the hub until ctx is done.
func (h *Hub) Run(ctx context.Context, source notify.Source) error {
	return source.Listen(ctx, h.Notify)
}

// Notify refreshes every subscription on the changed collection.
// It never blocks on queries.
func (h *Hub) Notify(change notify.Change) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[change.Collection]))
	for _, s := range h.subs[change.Collection] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.refresh()
	}
}

// Subscribe registers a live query and schedules its initial snapshot.
// The returned handle is a *Subscription.
func (h *Hub) Subscribe(collection string, c query.Constraints, handler Handler) (Canceler, error) {
	s := &Subscription{
		id:          uuid.NewString(),
		hub:         h,
		collection:  collection,
		constraints: c,
		handler:     handler,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[string]*Subscription)
	}
	h.subs[collection][s.id] = s
	h.mu.Unlock()

	h.metrics.ActiveSubscriptions.Inc()
	h.logger.Debug("subscribed",
		"subscription", s.id,
		"collection", collection,
		"constraints", c.Key(),
	)

	s.refresh()
	return s, nil
}

// Active returns the number of registered subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// Close cancels every subscription and rejects new ones. In-flight queries
// are canceled.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, subs := range h.subs {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Cancel()
	}
	h.cancel()
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[s.collection]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.subs, s.collection)
		}
	}
}
