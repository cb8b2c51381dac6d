// Package keys dispatches key presses from an input to bound callbacks.
package keys

import "sync"

// Type is the kind of key event.
type Type int

const (
	KeyDown Type = iota
	KeyUp
)

// Event is a key event from the input.
type Event struct {
	Key  string
	Type Type
}

type binding struct {
	key string
	fn  func()
}

// Listener invokes callbacks for key-down events on bound keys while the
// input is focused. The zero value is ready to use and unfocused.
type Listener struct {
	mu       sync.Mutex
	nextID   int
	bindings map[int]binding
	focused  bool
}

// Listen binds fn to key and returns a function that removes the binding.
func (l *Listener) Listen(key string, fn func()) (unbind func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bindings == nil {
		l.bindings = make(map[int]binding)
	}
	id := l.nextID
	l.nextID++
	l.bindings[id] = binding{key: key, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.bindings, id)
		})
	}
}

// SetFocused records whether the input has focus.
func (l *Listener) SetFocused(focused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.focused = focused
}

// Dispatch invokes, once each, the callbacks bound to e.Key if e is a
// key-down and the input is focused. It reports whether any callback ran.
func (l *Listener) Dispatch(e Event) bool {
	l.mu.Lock()
	if e.Type != KeyDown || !l.focused {
		l.mu.Unlock()
		return false
	}
	var fns []func()
	for _, b := range l.bindings {
		if b.key == e.Key {
			fns = append(fns, b.fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns) > 0
}
