package reactive

import (
	"errors"

	"github.com/reactor-ui/reactor/pkg/ecs"
)

// Runtime owns the context stack and the cascade bookkeeping for one
// reactive execution thread. All signals, memos, effects, and views created
// against a Runtime must be used from the goroutine that drives it.
type Runtime struct {
	store *ecs.Store

	// stack is the context stack of currently-running scopes. The top entry
	// is the scope recording dependencies; ecs.NoEntity frames mark
	// untracked sections.
	stack []ecs.Entity

	// owner is the entity adopting newly created scopes, when set
	// explicitly via WithOwner. Otherwise the innermost running scope
	// adopts them.
	owner ecs.Entity

	stats Stats
}

// Stats are cumulative counters exposed for diagnostics and metrics.
type Stats struct {
	SignalWrites  uint64
	EffectRuns    uint64
	MemoRecomputes uint64
}

// NewRuntime creates a runtime backed by the given store.
func NewRuntime(store *ecs.Store) *Runtime {
	return &Runtime{store: store}
}

// Store returns the underlying entity store.
func (rt *Runtime) Store() *ecs.Store {
	return rt.store
}

// Stats returns a snapshot of the runtime counters.
func (rt *Runtime) Stats() Stats {
	return rt.stats
}

// =============================================================================
// Context stack
// =============================================================================

// pushContext makes scope the current tracking scope.
func (rt *Runtime) pushContext(scope ecs.Entity) {
	rt.stack = append(rt.stack, scope)
}

// popContext restores the previous tracking scope. Paired with pushContext
// via defer so the stack balances on every exit path.
func (rt *Runtime) popContext() {
	rt.stack = rt.stack[:len(rt.stack)-1]
}

// currentContext returns the scope currently recording dependencies.
func (rt *Runtime) currentContext() (ecs.Entity, bool) {
	if len(rt.stack) == 0 {
		return ecs.NoEntity, false
	}
	top := rt.stack[len(rt.stack)-1]
	if top == ecs.NoEntity {
		return ecs.NoEntity, false
	}
	return top, true
}

// Untracked runs fn without recording dependencies: signal reads inside fn
// do not subscribe the enclosing scope.
func (rt *Runtime) Untracked(fn func()) {
	rt.pushContext(ecs.NoEntity)
	defer rt.popContext()
	fn()
}

// WithOwner runs fn with owner adopting every scope created inside.
// Views use this so their build effects and child effects despawn with them.
func (rt *Runtime) WithOwner(owner ecs.Entity, fn func() error) error {
	prev := rt.owner
	rt.owner = owner
	defer func() { rt.owner = prev }()
	return fn()
}

// ownerForNewScope resolves the owner of a scope being created now:
// an explicit WithOwner wins, then the innermost running scope.
func (rt *Runtime) ownerForNewScope() ecs.Entity {
	if rt.owner != ecs.NoEntity {
		return rt.owner
	}
	if cur, ok := rt.currentContext(); ok {
		return cur
	}
	return ecs.NoEntity
}

// adopt registers scope under owner for transitive teardown.
func (rt *Runtime) adopt(owner, scope ecs.Entity) {
	if owner == ecs.NoEntity || !rt.store.Alive(owner) {
		return
	}
	if o, ok := ecs.Get[owned](rt.store, owner); ok {
		o.scopes = append(o.scopes, scope)
		return
	}
	ecs.Attach(rt.store, owner, owned{scopes: []ecs.Entity{scope}})
}

// =============================================================================
// Dependency capture
// =============================================================================

// trackRead records a dependency edge between the cell being read and the
// current tracking scope, in both directions.
func (rt *Runtime) trackRead(cellEntity ecs.Entity) {
	scopeEntity, ok := rt.currentContext()
	if !ok {
		return
	}
	scope, ok := ecs.Get[Scope](rt.store, scopeEntity)
	if !ok || scope.cancelled {
		return
	}
	c, ok := ecs.Get[cell](rt.store, cellEntity)
	if !ok {
		return
	}
	c.subscribe(scopeEntity)
	scope.addDep(cellEntity)
}

// clearDeps severs the scope's edges from every cell it depended on.
// Runs before every re-run so the dependency set reflects exactly the
// signals read by the most recent run.
func (rt *Runtime) clearDeps(scopeEntity ecs.Entity, scope *Scope) {
	for _, dep := range scope.deps {
		if c, ok := ecs.Get[cell](rt.store, dep); ok {
			c.unsubscribe(scopeEntity)
		}
	}
	scope.deps = scope.deps[:0]
}

// =============================================================================
// Scope execution and notification
// =============================================================================

// runScope executes a scope's body with fresh dependency capture.
// The scope's entity is pushed on the context stack for the duration of the
// run; the pop is deferred so the stack unwinds on failure too.
func (rt *Runtime) runScope(scopeEntity ecs.Entity) error {
	// Re-entry before completion is a dependency cycle.
	for i, running := range rt.stack {
		if running == scopeEntity {
			chain := append([]ecs.Entity(nil), rt.stack[i:]...)
			return &CycleError{Chain: append(chain, scopeEntity)}
		}
	}

	scope, ok := ecs.Get[Scope](rt.store, scopeEntity)
	if !ok {
		return nil
	}
	if scope.cancelled {
		return ErrUseAfterCancel
	}

	rt.clearDeps(scopeEntity, scope)

	rt.pushContext(scopeEntity)
	defer rt.popContext()

	if scope.action == actionRerun {
		rt.stats.EffectRuns++
	} else {
		rt.stats.MemoRecomputes++
	}

	if err := rt.runBody(scope); err != nil {
		return err
	}

	// The scope may have been cancelled by its own body (an effect can
	// despawn its owning view); only touch the flag if it is still live.
	if scope, ok := ecs.Get[Scope](rt.store, scopeEntity); ok {
		scope.dirty = false
	}
	return nil
}

// runBody invokes the user body, wrapping failures with the scope identity.
func (rt *Runtime) runBody(scope *Scope) error {
	scopeEntity := rt.stack[len(rt.stack)-1]
	if err := scope.body(); err != nil {
		var bodyErr *BodyError
		var cycleErr *CycleError
		// Nested cascade errors are already classified; wrap only the
		// outermost user failure.
		if errors.As(err, &bodyErr) || errors.As(err, &cycleErr) {
			return err
		}
		return &BodyError{Scope: scopeEntity, Err: err}
	}
	return nil
}

// notifyCell invokes the stored action of every current subscriber of the
// cell, in subscription order. Effects rerun synchronously; memos mark
// dirty and propagate the mark to their own subscribers once.
func (rt *Runtime) notifyCell(cellEntity ecs.Entity) error {
	c, ok := ecs.Get[cell](rt.store, cellEntity)
	if !ok {
		return nil
	}

	// Copy before notifying: reruns rewrite subscriber sets as they refresh
	// their dependencies.
	subs := append([]ecs.Entity(nil), c.subs...)

	for _, scopeEntity := range subs {
		scope, ok := ecs.Get[Scope](rt.store, scopeEntity)
		if !ok || scope.cancelled {
			// Cancelled earlier in this same cascade; skip, never run.
			continue
		}

		switch scope.action {
		case actionMarkDirty:
			if scope.dirty {
				continue
			}
			scope.dirty = true
			if err := rt.notifyCell(scopeEntity); err != nil {
				return err
			}
		case actionRerun:
			if err := rt.runScope(scopeEntity); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// Teardown
// =============================================================================

// CancelScope marks the scope cancelled and severs its edges from every
// cell it depends on. The entity itself is not removed; cancelled scopes
// are skipped by cascades and never execute again.
func (rt *Runtime) CancelScope(scopeEntity ecs.Entity) {
	scope, ok := ecs.Get[Scope](rt.store, scopeEntity)
	if !ok || scope.cancelled {
		return
	}
	scope.cancelled = true
	rt.clearDeps(scopeEntity, scope)
}

// DespawnScope cancels and removes the scope entity, transitively
// despawning every scope it owns first (children before parent).
func (rt *Runtime) DespawnScope(scopeEntity ecs.Entity) {
	if !rt.store.Alive(scopeEntity) {
		return
	}

	if o, ok := ecs.Get[owned](rt.store, scopeEntity); ok {
		// Reverse creation order, mirroring owner disposal semantics.
		children := o.scopes
		o.scopes = nil
		for i := len(children) - 1; i >= 0; i-- {
			rt.DespawnScope(children[i])
		}
	}

	rt.CancelScope(scopeEntity)

	// If the despawned entity also carries a cell (memos do), drop its
	// subscriber list so no action is ever invoked through it again.
	if c, ok := ecs.Get[cell](rt.store, scopeEntity); ok {
		c.subs = nil
	}

	rt.store.Despawn(scopeEntity)
}

// CancelOwned cancels every scope owned by owner without removing any
// entity. Views use this from their cleanup step, which must not despawn.
func (rt *Runtime) CancelOwned(owner ecs.Entity) {
	o, ok := ecs.Get[owned](rt.store, owner)
	if !ok {
		return
	}
	for i := len(o.scopes) - 1; i >= 0; i-- {
		rt.CancelScope(o.scopes[i])
	}
}

// DespawnOwned despawns every scope owned by owner without touching the
// owner entity itself.
func (rt *Runtime) DespawnOwned(owner ecs.Entity) {
	o, ok := ecs.Get[owned](rt.store, owner)
	if !ok {
		return
	}
	children := o.scopes
	o.scopes = nil
	for i := len(children) - 1; i >= 0; i-- {
		rt.DespawnScope(children[i])
	}
}

// =============================================================================
// Diagnostics
// =============================================================================

// LiveScopes enumerates every live, non-cancelled tracking scope.
func (rt *Runtime) LiveScopes() []ecs.Entity {
	var scopes []ecs.Entity
	ecs.Each(rt.store, func(e ecs.Entity, s *Scope) bool {
		if !s.cancelled {
			scopes = append(scopes, e)
		}
		return true
	})
	return scopes
}

// Subscribers returns the scope entities currently subscribed to the given
// signal or memo entity.
func (rt *Runtime) Subscribers(cellEntity ecs.Entity) []ecs.Entity {
	c, ok := ecs.Get[cell](rt.store, cellEntity)
	if !ok {
		return nil
	}
	return append([]ecs.Entity(nil), c.subs...)
}

// Dependencies returns the cell entities the scope read during its most
// recent run.
func (rt *Runtime) Dependencies(scopeEntity ecs.Entity) []ecs.Entity {
	scope, ok := ecs.Get[Scope](rt.store, scopeEntity)
	if !ok {
		return nil
	}
	return append([]ecs.Entity(nil), scope.deps...)
}
