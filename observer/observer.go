// Package observer folds the snapshots of one live query into an
// accumulated, identity-deduplicated, ordered result set.
//
// An Observer owns at most one live subscription at a time. Callers describe
// the query they want with [Params] and call [Observer.Reconcile] whenever any
// input changes; the observer compares a value key derived from the params
// and resubscribes only when it differs. The previous subscription is always
// cancelled before the replacement is established, and snapshots from a
// superseded subscription never touch the result set.
//
// In append mode each snapshot is appended to the result set and duplicates
// are dropped, the first occurrence of an identity winning. In replace mode
// each snapshot replaces the result set wholesale.
package observer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jacentio/livefeed/internal/metrics"
	"github.com/jacentio/livefeed/live"
	"github.com/jacentio/livefeed/query"
	"github.com/jacentio/livefeed/store"
)

// ErrClosed is returned by Reconcile after Close.
var ErrClosed = errors.New("livefeed: observer closed")

// Params describes the live query an Observer should hold.
type Params struct {
	Collection string

	// Constraints is optional. Nil subscribes to the collection's default
	// order without a limit.
	Constraints *query.Constraints

	// Deps are opaque values that force a resubscription when they change.
	// They do not affect the query.
	Deps []any

	Enabled bool
	Replace bool
}

// Key returns the value key used to detect parameter changes.
func (p Params) Key() string {
	var b strings.Builder
	b.WriteString(p.Collection)
	b.WriteString("|")
	if p.Constraints == nil {
		b.WriteString("-")
	} else {
		b.WriteString(p.Constraints.Key())
	}
	b.WriteString("|deps=[")
	for i, d := range p.Deps {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(query.FormatValue(d))
	}
	fmt.Fprintf(&b, "]|enabled=%t|replace=%t", p.Enabled, p.Replace)
	return b.String()
}

// Update is passed to the OnChange callback after every change to the
// result set.
type Update struct {
	// Key is the params key of the subscription that produced the update.
	Key string

	// Items is a copy of the accumulated result set.
	Items []store.Item

	// SnapshotSize is the number of items in the delivered snapshot, or -1
	// when the update is a clear.
	SnapshotSize int
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets the observer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the observer metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Observer) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Observer maintains the accumulated result of one live query.
type Observer struct {
	source  live.Source
	logger  *slog.Logger
	metrics *metrics.Metrics

	// reconcileMu serializes Reconcile calls so that at most one
	// subscription is live. It is acquired before mu.
	reconcileMu sync.Mutex

	mu         sync.Mutex
	params     Params
	key        string
	reconciled bool
	gen        uint64
	sub        live.Canceler
	results    *ResultSet
	onChange   func(Update)
	closed     bool
}

// New creates an Observer that subscribes through source. It holds no
// subscription until the first Reconcile.
func New(source live.Source, opts ...Option) *Observer {
	o := &Observer{
		source:  source,
		logger:  slog.Default(),
		metrics: metrics.Discard(),
		results: NewResultSet(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnChange registers fn to receive every update. fn runs on the delivering
// goroutine with the observer locked, one update at a time, and must not
// call back into the Observer.
func (o *Observer) OnChange(fn func(Update)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = fn
}

// Reconcile brings the subscription in line with p. It is a no-op when p's
// key equals the last reconciled key.
//
// When p is disabled the current subscription is cancelled and none is
// established; with Replace set the result set is cleared before Reconcile
// returns. Subscription errors are logged and returned, leaving the result
// set untouched.
//
// Concurrent calls are serialized.
func (o *Observer) Reconcile(p Params) error {
	key := p.Key()

	o.reconcileMu.Lock()
	defer o.reconcileMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.reconciled && key == o.key {
		o.mu.Unlock()
		return nil
	}
	o.reconciled = true
	o.params = p
	o.key = key
	o.gen++
	gen := o.gen
	old := o.sub
	o.sub = nil

	if !p.Enabled {
		if p.Replace {
			o.results.Clear()
			o.notify(Update{Key: key, Items: nil, SnapshotSize: -1})
		}
		o.mu.Unlock()
		if old != nil {
			old.Cancel()
		}
		return nil
	}
	o.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	var c query.Constraints
	if p.Constraints != nil {
		c = *p.Constraints
	}
	sub, err := o.source.Subscribe(p.Collection, c, live.Handler{
		OnSnapshot: func(items []store.Item) { o.apply(gen, items) },
		OnError:    func(err error) { o.fail(gen, err) },
	})
	if err != nil {
		o.metrics.SubscriptionErrors.Inc()
		o.logger.Error("subscribe failed",
			"collection", p.Collection,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("subscribe %s: %w", p.Collection, err)
	}

	o.mu.Lock()
	if o.closed || o.gen != gen {
		o.mu.Unlock()
		sub.Cancel()
		return nil
	}
	o.sub = sub
	o.mu.Unlock()

	o.logger.Debug("subscription established",
		"collection", p.Collection,
		"key", key,
	)
	return nil
}

// Items returns a copy of the accumulated result set.
func (o *Observer) Items() []store.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results.Items()
}

// Key returns the key of the last reconciled params.
func (o *Observer) Key() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}

// Subscribed reports whether a subscription is currently held.
func (o *Observer) Subscribed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sub != nil
}

// Close cancels the active subscription, if any. Further deliveries are
// dropped and Reconcile returns ErrClosed. Close is idempotent.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.gen++
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

func (o *Observer) apply(gen uint64, items []store.Item) {
	normalized := make([]store.Item, len(items))
	for i, it := range items {
		it.Fields = store.Normalize(it.Fields)
		normalized[i] = it
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || gen != o.gen {
		o.metrics.StaleSnapshots.Inc()
		return
	}

	mode := "append"
	var dropped int
	if o.params.Replace {
		mode = "replace"
		dropped = o.results.Replace(normalized)
	} else {
		dropped = o.results.Merge(normalized)
	}
	o.metrics.SnapshotsApplied.WithLabelValues(mode).Inc()
	if dropped > 0 {
		o.metrics.DuplicatesDropped.Add(float64(dropped))
	}

	o.notify(Update{
		Key:          o.key,
		Items:        o.results.Items(),
		SnapshotSize: len(items),
	})
}

func (o *Observer) fail(gen uint64, err error) {
	o.mu.Lock()
	stale := o.closed || gen != o.gen
	key := o.key
	o.mu.Unlock()
	if stale {
		return
	}

	o.metrics.SubscriptionErrors.Inc()
	o.logger.Warn("subscription error",
		"key", key,
		"error", err,
	)
}

// notify must be called with o.mu held.
func (o *Observer) notify(u Update) {
	if o.onChange != nil {
		o.onChange(u)
	}
}
