package feed_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/feed"
	"github.com/jacentio/livefeed/live"
	"github.com/jacentio/livefeed/query"
	"github.com/jacentio/livefeed/store"
)

// --- Live Source ---

type fakeSource struct {
	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	constraints query.Constraints
	handler     live.Handler

	mu        sync.Mutex
	cancelled bool
}

func (s *fakeSub) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *fakeSub) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *fakeSub) deliver(items []store.Item) {
	s.handler.OnSnapshot(items)
}

func (f *fakeSource) Subscribe(_ string, c query.Constraints, h live.Handler) (live.Canceler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{constraints: c, handler: h}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeSource) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

func (f *fakeSource) last() *fakeSub {
	subs := f.all()
	return subs[len(subs)-1]
}

// --- Timer ---

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	if !t.stopped {
		t.fn()
	}
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) feed.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

// --- Writer ---

type createCall struct {
	collection string
	id         string
	data       map[string]any
}

type fakeWriter struct {
	mu     sync.Mutex
	calls  []createCall
	err    error
	block  chan struct{}
	nextID int
}

func (w *fakeWriter) NewIdentity(string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	return fmt.Sprintf("msg-%d", w.nextID)
}

func (w *fakeWriter) CreateDocument(_ context.Context, collection, id string, data map[string]any) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, createCall{collection: collection, id: id, data: data})
	return w.err
}

func (w *fakeWriter) created() []createCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]createCall(nil), w.calls...)
}

// --- Auth ---

type fakeAuth struct {
	mu       sync.Mutex
	current  *auth.Identity
	result   auth.Result
	err      error
	onSignIn *auth.Identity
	signIns  int
}

func (a *fakeAuth) Current() *auth.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *fakeAuth) SignIn(context.Context) (auth.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signIns++
	if a.err != nil {
		return auth.Result{}, a.err
	}
	if a.result.OK() {
		a.current = a.onSignIn
	}
	return a.result, nil
}

// --- Items ---

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// messages returns items numbered from..to, newest first: item n was
// created n minutes before base.
func messages(from, to int) []store.Item {
	out := make([]store.Item, 0, to-from+1)
	for n := from; n <= to; n++ {
		ts := base.Add(-time.Duration(n) * time.Minute)
		out = append(out, store.Item{
			ID:        fmt.Sprintf("m%02d", n),
			Fields:    map[string]any{"message": fmt.Sprintf("message %d", n), "created_at": ts},
			CreatedAt: ts,
		})
	}
	return out
}

func ids(items []store.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
