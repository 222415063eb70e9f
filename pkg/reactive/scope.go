package reactive

import "github.com/reactor-ui/reactor/pkg/ecs"

// scopeAction selects what a scope does when a dependency changes.
// The two behaviors are closed and exhaustive: memos defer, effects rerun.
type scopeAction uint8

const (
	// actionMarkDirty sets the dirty flag and propagates the mark to the
	// scope's own subscribers. The body runs lazily on the next read.
	actionMarkDirty scopeAction = iota + 1

	// actionRerun executes the body immediately, inside the notifying write.
	actionRerun
)

// Scope is the component carried by every tracking-scope entity
// (memos and effects). It records the action to re-run, the dependencies
// captured by the most recent run, and the dirty/cancelled state.
type Scope struct {
	action scopeAction

	// body re-runs the scope's computation. For memos it refreshes the
	// cached value; for effects it is the effect body itself.
	body func() error

	// deps are the cell entities read during the most recent run.
	// Cleared and re-recorded on every run.
	deps []ecs.Entity

	// dirty is set by actionMarkDirty notifications and cleared after the
	// next successful run.
	dirty bool

	// cancelled is set once cleanup has run. A cancelled scope never
	// executes again.
	cancelled bool

	// owner is the view or enclosing scope that created this one.
	owner ecs.Entity
}

// Cancelled reports whether the scope has been cleaned up.
func (s *Scope) Cancelled() bool {
	return s.cancelled
}

// Dirty reports whether the scope has a pending mark-dirty notification.
func (s *Scope) Dirty() bool {
	return s.dirty
}

// Owner returns the entity that owns this scope, or ecs.NoEntity.
func (s *Scope) Owner() ecs.Entity {
	return s.owner
}

// addDep records a cell in the scope's dependency set, deduplicated.
func (s *Scope) addDep(cell ecs.Entity) {
	for _, d := range s.deps {
		if d == cell {
			return
		}
	}
	s.deps = append(s.deps, cell)
}

// owned is attached to any entity that owns scopes: views, and scopes that
// created nested scopes. Despawning the owner despawns these first.
type owned struct {
	scopes []ecs.Entity
}
