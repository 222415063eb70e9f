package reactive

import "github.com/reactor-ui/reactor/pkg/ecs"

// Memo is a lazy tracking scope with a cached value. A dependency change
// only marks the memo dirty; the compute body reruns on the next Get.
// Memos behave as signals to their own readers, so derived chains compose.
type Memo[T any] struct {
	rt     *Runtime
	entity ecs.Entity
}

// NewMemo creates a memo entity and runs compute once, inside the memo's
// own tracking context, to populate the cached value and dependencies.
func NewMemo[T any](rt *Runtime, compute func() T) *Memo[T] {
	e := rt.store.Create()
	ecs.Attach(rt.store, e, cell{})
	ecs.Attach(rt.store, e, Scope{
		action: actionMarkDirty,
		owner:  rt.ownerForNewScope(),
		body: func() error {
			value := compute()
			if c, ok := ecs.Get[cell](rt.store, e); ok {
				c.value = value
			}
			return nil
		},
	})
	if scope, ok := ecs.Get[Scope](rt.store, e); ok {
		rt.adopt(scope.owner, e)
	}

	m := &Memo[T]{rt: rt, entity: e}
	// Memo bodies are pure; the initial run cannot fail and cannot cycle
	// because the scope is not yet subscribed anywhere.
	_ = rt.runScope(e)
	return m
}

// Entity returns the memo's scope entity handle.
func (m *Memo[T]) Entity() ecs.Entity {
	return m.entity
}

// Get returns the cached value, recomputing first if the memo is dirty.
// Subscribes the current tracking scope to this memo.
func (m *Memo[T]) Get() T {
	m.rt.trackRead(m.entity)
	m.refresh()
	return m.Peek()
}

// Peek returns the cached value without subscribing or recomputing.
// A dirty memo's Peek still shows the stale cached value.
func (m *Memo[T]) Peek() T {
	if c, ok := ecs.Get[cell](m.rt.store, m.entity); ok {
		if c.value != nil {
			return c.value.(T)
		}
	}
	var zero T
	return zero
}

// Dirty reports whether a dependency changed since the last recompute.
func (m *Memo[T]) Dirty() bool {
	if scope, ok := ecs.Get[Scope](m.rt.store, m.entity); ok {
		return scope.dirty
	}
	return false
}

// refresh recomputes the cached value if dirty. Cancelled memos keep their
// last value; a read through a cancelled memo is a teardown-ordering bug in
// the caller, not something to recompute on freed state.
func (m *Memo[T]) refresh() {
	scope, ok := ecs.Get[Scope](m.rt.store, m.entity)
	if !ok || scope.cancelled || !scope.dirty {
		return
	}
	if err := m.rt.runScope(m.entity); err != nil {
		// Memo bodies are pure, so the only possible failure is a
		// dependency cycle between memos. That is a programming error,
		// reported loudly rather than returning a stale value.
		panic(err)
	}
}
