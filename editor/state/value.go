// Package state holds the editor's observable application state: the
// canonical snapshot, mode, selection, viewport and the sync gates.
package state

import "sync"

// Value is an observable cell. Subscribers run synchronously, in
// subscription order, after every change. Setting an equal value is a
// no-op.
type Value[T comparable] struct {
	mu     sync.Mutex
	v      T
	nextID int
	subs   []subscriber[T]
}

type subscriber[T comparable] struct {
	id int
	fn func(T)
}

// NewValue returns a Value holding v.
func NewValue[T comparable](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (c *Value[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set stores v and notifies subscribers when it differs from the current
// value. It reports whether a change happened.
func (c *Value[T]) Set(v T) bool {
	c.mu.Lock()
	if c.v == v {
		c.mu.Unlock()
		return false
	}
	c.v = v
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
	return true
}

// Update sets the value to fn(current).
func (c *Value[T]) Update(fn func(T) T) bool {
	return c.Set(fn(c.Get()))
}

// Subscribe calls fn with the current value now and on every change. The
// returned function removes the subscription; calling it again is harmless.
func (c *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	v := c.v
	c.mu.Unlock()

	fn(v)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (c *Value[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
