// Package feed implements a live, newest-first feed with scroll-to-load-older
// pagination and a message submission path.
//
// A Controller owns the pagination state and drives an observer.Observer in
// append mode. The newest page is subscribed first. When the caller scrolls
// near the top, the controller waits Config.LoadDelay and then moves the
// cursor to the oldest loaded item, which resubscribes with StartAfter on
// that item's OrderField value. Pages arrive newest-first and are appended,
// but live inserts can land after the oldest item, so the cursor is chosen by
// OrderField value rather than position.
//
// HasMore only ever goes from true to false: the first snapshot holding fewer
// than PageSize items ends pagination for the life of the Controller.
package feed

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/internal/metrics"
	"github.com/jacentio/livefeed/keys"
	"github.com/jacentio/livefeed/live"
	"github.com/jacentio/livefeed/observer"
	"github.com/jacentio/livefeed/query"
	"github.com/jacentio/livefeed/store"
)

// ErrClosed is returned when using a closed Controller.
var ErrClosed = errors.New("livefeed: feed closed")

// Writer creates documents. *store.Store satisfies it.
type Writer interface {
	NewIdentity(collection string) string
	CreateDocument(ctx context.Context, collection, id string, data map[string]any) error
}

// Timer is a pending delayed call.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is a point-in-time view of a Controller.
type State struct {
	Items []store.Item

	// Cursor is the oldest item the current subscription starts after, or
	// nil while showing the newest page.
	Cursor *store.Item

	Loading bool
	HasMore bool

	Input string

	// InputError is set when a blank message was submitted and cleared by
	// the next SetInput.
	InputError bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the controller and observer metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithAfterFunc replaces time.AfterFunc for the pagination delay.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithKeys binds Config.ActivationKey on l to Submit.
func WithKeys(l *keys.Listener) Option {
	return func(c *Controller) {
		c.keys = l
	}
}

// WithAlert sets the function that shows blocking notifications, such as
// sign-in failures, to the user.
func WithAlert(fn func(message string)) Option {
	return func(c *Controller) {
		c.alert = fn
	}
}

// OnState sets a callback receiving the state after every change made by a
// snapshot, scroll, or submission. It must not call back into the
// Controller.
func OnState(fn func(State)) Option {
	return func(c *Controller) {
		c.onState = fn
	}
}

// Controller is a paginated live feed.
type Controller struct {
	config    Config
	observer  *observer.Observer
	writer    Writer
	auth      auth.Provider
	keys      *keys.Listener
	logger    *slog.Logger
	metrics   *metrics.Metrics
	afterFunc AfterFunc
	alert     func(string)
	onState   func(State)
	submits   singleflight.Group

	// reconcileMu serializes observer reconciliation. It is never acquired
	// while mu is held.
	reconcileMu sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	items      []store.Item
	cursor     *store.Item
	loading    bool
	hasMore    bool
	pendingKey string
	timer      Timer
	input      string
	inputError bool
	unbind     func()
	started    bool
	closed     bool
}

// New creates a Controller reading through source and writing through
// writer. Call Start to subscribe.
func New(source live.Source, writer Writer, provider auth.Provider, config Config, opts ...Option) *Controller {
	config.validate()

	c := &Controller{
		config:    config,
		writer:    writer,
		auth:      provider,
		logger:    slog.Default(),
		metrics:   metrics.Discard(),
		afterFunc: stdAfterFunc,
		hasMore:   true,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.observer = observer.New(source,
		observer.WithLogger(c.logger),
		observer.WithMetrics(c.metrics),
	)
	c.observer.OnChange(c.onUpdate)
	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Start subscribes to the newest page and binds the activation key. ctx is
// used for key-triggered submissions.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx = ctx
	if c.keys != nil {
		c.unbind = c.keys.Listen(c.config.ActivationKey, c.submitFromKey)
	}
	c.mu.Unlock()

	return c.reconcile()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Scroll reports the distance from the top of the feed. At or under
// Config.ScrollThreshold, with no load in progress and more items
// available, it starts loading the next older page and returns true.
func (c *Controller) Scroll(offset float64) bool {
	c.mu.Lock()
	if c.closed || !c.started || offset > c.config.ScrollThreshold || c.loading || !c.hasMore {
		c.mu.Unlock()
		return false
	}
	c.loading = true
	c.timer = c.afterFunc(c.config.LoadDelay, c.commitCursor)
	state := c.stateLocked()
	c.mu.Unlock()

	c.logger.Debug("loading older page", "collection", c.config.Collection, "delay", c.config.LoadDelay)
	c.emit(state)
	return true
}

// Close stops the pending page load, unbinds the activation key and
// releases the subscription. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	unbind := c.unbind
	c.unbind = nil
	c.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	c.observer.Close()
}

// commitCursor runs when the load delay elapses.
func (c *Controller) commitCursor() {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	// Stable while reconcileMu is held.
	current := c.observer.Key()

	c.mu.Lock()
	c.timer = nil
	if c.closed || !c.loading {
		c.mu.Unlock()
		return
	}
	oldest, ok := c.oldestLocked()
	if !ok {
		c.loading = false
		state := c.stateLocked()
		c.mu.Unlock()
		c.emit(state)
		return
	}
	prev := c.cursor
	c.cursor = &oldest
	p := c.paramsLocked()
	if p.Key() == current {
		// Same query as the live one: no new snapshot will come.
		c.cursor = prev
		c.loading = false
		c.pendingKey = ""
		state := c.stateLocked()
		c.mu.Unlock()
		c.logger.Debug("cursor unchanged", "collection", c.config.Collection, "cursor", oldest.ID)
		c.emit(state)
		return
	}
	c.pendingKey = p.Key()
	c.mu.Unlock()

	c.metrics.PageLoads.Inc()
	c.logger.Debug("cursor committed",
		"collection", c.config.Collection,
		"cursor", oldest.ID,
	)
	if err := c.observer.Reconcile(p); err != nil {
		c.logger.Error("resubscribe failed", "collection", c.config.Collection, "error", err)
	}
}

func (c *Controller) reconcile() error {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	c.mu.Lock()
	p := c.paramsLocked()
	c.mu.Unlock()

	return c.observer.Reconcile(p)
}

// paramsLocked derives the observer params from the pagination state.
func (c *Controller) paramsLocked() observer.Params {
	opts := []query.Option{
		query.OrderBy(c.config.OrderField, query.Desc),
		query.Limit(c.config.PageSize),
	}
	if c.cursor != nil {
		opts = append(opts, query.StartAfter(c.cursorValue(*c.cursor)))
	}
	constraints := query.New(opts...)
	return observer.Params{
		Collection:  c.config.Collection,
		Constraints: &constraints,
		Enabled:     true,
	}
}

// oldestLocked returns the accumulated item with the smallest OrderField
// value. Pages arrive newest-first, so this is the last item unless a live
// insert was appended after it. Items without a comparable value fall back to
// the last item.
func (c *Controller) oldestLocked() (store.Item, bool) {
	if len(c.items) == 0 {
		return store.Item{}, false
	}
	oldest := c.items[len(c.items)-1]
	oldestValue := c.cursorValue(oldest)
	for _, it := range c.items {
		v := c.cursorValue(it)
		if d, ok := compareOrder(v, oldestValue); ok && d < 0 {
			oldest, oldestValue = it, v
		}
	}
	return oldest, true
}

// compareOrder compares two ordering values of the same kind.
func compareOrder(a, b any) (int, bool) {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case int:
		y, ok := b.(int)
		if !ok {
			return 0, false
		}
		return cmp.Compare(x, y), true
	default:
		return 0, false
	}
}

func (c *Controller) cursorValue(item store.Item) any {
	if v := item.Field(c.config.OrderField); v != nil {
		return v
	}
	if c.config.OrderField == "created_at" && !item.CreatedAt.IsZero() {
		return item.CreatedAt
	}
	return nil
}

// onUpdate runs on observer deliveries with the observer locked.
func (c *Controller) onUpdate(u observer.Update) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.items = u.Items
	if u.SnapshotSize >= 0 && u.SnapshotSize < int(c.config.PageSize) && c.hasMore {
		c.hasMore = false
		c.logger.Debug("reached end of feed",
			"collection", c.config.Collection,
			"snapshot_size", u.SnapshotSize,
		)
	}
	if c.loading && c.pendingKey != "" && u.Key == c.pendingKey {
		c.loading = false
		c.pendingKey = ""
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(state)
}

func (c *Controller) stateLocked() State {
	s := State{
		Items:      append([]store.Item(nil), c.items...),
		Loading:    c.loading,
		HasMore:    c.hasMore,
		Input:      c.input,
		InputError: c.inputError,
	}
	if c.cursor != nil {
		cursor := *c.cursor
		s.Cursor = &cursor
	}
	return s
}

func (c *Controller) emit(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
