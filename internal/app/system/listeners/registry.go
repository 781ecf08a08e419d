// Package listeners tracks live store subscriptions so they are released
// exactly once, even when the owning view is torn down from several code
// paths. Components that hold more than one subscription own a Registry
// instead of loose slices of cancel functions.
package listeners

import "sync"

// Registry owns a set of subscription cancel functions.
//
// Add hands back a scoped release for one subscription; Close releases
// everything still held. Both are idempotent, and Add after Close cancels
// the subscription immediately so late registrations cannot leak.
type Registry struct {
	mu      sync.Mutex
	nextID  int
	cancels map[int]func()
	closed  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{cancels: map[int]func(){}}
}

// Add registers cancel and returns a release function scoped to it.
func (r *Registry) Add(cancel func()) (release func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return func() {}
	}
	id := r.nextID
	r.nextID++
	r.cancels[id] = cancel
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			c, ok := r.cancels[id]
			delete(r.cancels, id)
			r.mu.Unlock()
			if ok {
				c()
			}
		})
	}
}

// Len reports how many subscriptions are currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Close releases every held subscription. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	held := make([]func(), 0, len(r.cancels))
	for _, c := range r.cancels {
		held = append(held, c)
	}
	r.cancels = map[int]func(){}
	r.mu.Unlock()

	for _, c := range held {
		c()
	}
}
