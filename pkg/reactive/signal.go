package reactive

import "github.com/reactor-ui/reactor/pkg/ecs"

// cell is the component holding a reactive value and its subscribers.
// Signals are entities with just a cell; memos carry a cell and a Scope.
type cell struct {
	value any

	// subs are the tracking scopes depending on this cell, in subscription
	// order. Notification iterates this order, so it is deterministic.
	subs []ecs.Entity

	// equal, when set, suppresses notification for writes that compare
	// equal to the current value. Nil means every write notifies.
	equal func(prev, next any) bool
}

// subscribe adds a scope to the cell's subscribers, deduplicated.
func (c *cell) subscribe(scope ecs.Entity) {
	for _, s := range c.subs {
		if s == scope {
			return
		}
	}
	c.subs = append(c.subs, scope)
}

// unsubscribe removes a scope from the cell's subscribers.
// Swap-remove; subscriber sets carry no ordering requirement across edits.
func (c *cell) unsubscribe(scope ecs.Entity) {
	for i, s := range c.subs {
		if s == scope {
			c.subs[i] = c.subs[len(c.subs)-1]
			c.subs = c.subs[:len(c.subs)-1]
			return
		}
	}
}

// Signal is a reactive value cell. Reading it inside a memo or effect body
// subscribes that scope; writing it notifies every subscriber synchronously
// before Set returns.
//
// Signal is a small value type; copies refer to the same cell.
type Signal[T any] struct {
	rt     *Runtime
	entity ecs.Entity
}

// NewSignal creates a signal entity holding the initial value.
func NewSignal[T any](rt *Runtime, initial T) Signal[T] {
	e := rt.store.Create()
	ecs.Attach(rt.store, e, cell{value: initial})
	return Signal[T]{rt: rt, entity: e}
}

// Entity returns the signal's entity handle.
func (s Signal[T]) Entity() ecs.Entity {
	return s.entity
}

// Get returns the current value and subscribes the current tracking scope,
// if one is running.
func (s Signal[T]) Get() T {
	s.rt.trackRead(s.entity)
	return s.Peek()
}

// Peek returns the current value without recording a dependency.
func (s Signal[T]) Peek() T {
	if c, ok := ecs.Get[cell](s.rt.store, s.entity); ok {
		return c.value.(T)
	}
	var zero T
	return zero
}

// Set replaces the value and notifies every subscriber. The default policy
// always notifies, even when the new value equals the old one; WithEquals
// opts in to equality suppression.
//
// The returned error is a CycleError or BodyError surfaced from the
// synchronous cascade of dependent reruns.
func (s Signal[T]) Set(value T) error {
	c, ok := ecs.Get[cell](s.rt.store, s.entity)
	if !ok {
		return nil
	}
	if c.equal != nil && c.equal(c.value, value) {
		return nil
	}
	c.value = value
	s.rt.stats.SignalWrites++
	return s.rt.notifyCell(s.entity)
}

// Update applies fn to the current value and writes the result.
func (s Signal[T]) Update(fn func(T) T) error {
	return s.Set(fn(s.Peek()))
}

// WithEquals configures equality-based notification suppression and
// returns the signal for chaining.
func (s Signal[T]) WithEquals(fn func(prev, next T) bool) Signal[T] {
	if c, ok := ecs.Get[cell](s.rt.store, s.entity); ok {
		c.equal = func(prev, next any) bool {
			return fn(prev.(T), next.(T))
		}
	}
	return s
}
