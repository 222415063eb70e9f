package view

import (
	"github.com/reactor-ui/reactor/pkg/ecs"
	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/vdom"
)

// lifecycle is the view state machine.
type lifecycle uint8

const (
	stateUninit lifecycle = iota
	stateActive
	stateCleaned
	stateDespawned
)

// String returns the string representation of the lifecycle state.
func (s lifecycle) String() string {
	switch s {
	case stateUninit:
		return "Uninit"
	case stateActive:
		return "Active"
	case stateCleaned:
		return "Cleaned"
	case stateDespawned:
		return "Despawned"
	default:
		return "Unknown"
	}
}

// View is the component attached to every view entity.
type View struct {
	tpl    Template
	parent ecs.Entity
	state  lifecycle

	// children are the spawned child view entities, in declaration order,
	// paired with the templates they were spawned from.
	children  []ecs.Entity
	childTpls []Template

	build *reactive.Effect

	// shell holds the view's own nodes from the last build run; span caches
	// the flattened output, valid while flattenDirty is unset.
	shell        []*vdom.Node
	span         []*vdom.Node
	flattenDirty bool
}

// Root drives a spawned view tree: it owns the node ID allocator, the
// mounted tree, and the per-tick react pass.
type Root struct {
	rt      *reactive.Runtime
	store   *ecs.Store
	backend Backend
	entity  ecs.Entity
	alloc   vdom.Allocator
	tree    *vdom.Node
	dirty   bool
}

// Spawn materializes tpl as a view tree on rt and mounts the flattened
// nodes on the backend. On failure everything spawned so far is despawned.
func Spawn(rt *reactive.Runtime, tpl Template, backend Backend) (*Root, error) {
	r := &Root{rt: rt, store: rt.Store(), backend: backend}

	e, err := r.spawnView(tpl, ecs.NoEntity)
	if err != nil {
		return nil, err
	}
	r.entity = e

	tree := vdom.Fragment(r.flatten(e)...)
	r.alloc.AssignIDs(tree)
	if err := backend.Mount(tree); err != nil {
		r.despawnView(e)
		return nil, err
	}
	r.tree = tree
	r.dirty = false
	return r, nil
}

// React drains the pending re-flatten marks: it recomputes the flattened
// node sequence of every marked view, diffs against the mounted tree, and
// applies the patches to the backend. A no-op when nothing changed since
// the last tick.
func (r *Root) React() error {
	if !r.dirty || r.tree == nil {
		return nil
	}
	r.dirty = false

	next := vdom.Fragment(r.flatten(r.entity)...)
	patches := vdom.Diff(r.tree, next, &r.alloc)
	r.tree = next
	if len(patches) == 0 {
		return nil
	}
	return r.backend.Apply(patches)
}

// Despawn tears down the whole view tree, children first, and unmounts the
// backend. Every scope owned by any view in the tree is despawned and
// unsubscribed from every signal.
func (r *Root) Despawn() error {
	if r.tree == nil {
		return nil
	}
	r.despawnView(r.entity)
	r.tree = nil
	r.dirty = false
	return r.backend.Unmount()
}

// Tree returns the currently mounted node tree, nil after Despawn.
func (r *Root) Tree() *vdom.Node {
	return r.tree
}

// Handlers returns the event handlers of the mounted tree, keyed by node ID
// and event name.
func (r *Root) Handlers() map[uint64]map[string]vdom.Handler {
	if r.tree == nil {
		return nil
	}
	return vdom.Handlers(r.tree)
}

// Entity returns the root view entity.
func (r *Root) Entity() ecs.Entity {
	return r.entity
}

// Runtime returns the reactive runtime driving this tree.
func (r *Root) Runtime() *reactive.Runtime {
	return r.rt
}

// spawnView creates a view entity for tpl under parent and initializes it.
func (r *Root) spawnView(tpl Template, parent ecs.Entity) (ecs.Entity, error) {
	e := r.store.Create()
	ecs.Attach(r.store, e, View{tpl: tpl, parent: parent})
	if err := r.initView(e); err != nil {
		r.despawnView(e)
		return ecs.NoEntity, err
	}
	return e, nil
}

// initView creates the view's build effect and runs it once. The effect
// body regenerates the view's own nodes, reconciles its children, and marks
// the ancestor chain for re-flattening.
func (r *Root) initView(e ecs.Entity) error {
	body := func() error {
		v, ok := ecs.Get[View](r.store, e)
		if !ok || v.state == stateCleaned || v.state == stateDespawned {
			return nil
		}
		shell, err := v.tpl.Build(&Builder{root: r, self: e})
		if err != nil {
			return err
		}
		v.shell = shell
		r.markDirty(e)
		return nil
	}

	var eff *reactive.Effect
	err := r.rt.WithOwner(e, func() error {
		var err error
		eff, err = reactive.CreateEffect(r.rt, body)
		return err
	})
	if err != nil {
		return err
	}

	v, _ := ecs.Get[View](r.store, e)
	v.build = eff
	v.state = stateActive
	return nil
}

// markDirty flags the view and its ancestors for re-flattening. Stops at
// the first already-dirty ancestor, since the chain above it is marked.
func (r *Root) markDirty(e ecs.Entity) {
	r.dirty = true
	for e != ecs.NoEntity {
		v, ok := ecs.Get[View](r.store, e)
		if !ok || v.flattenDirty {
			return
		}
		v.flattenDirty = true
		e = v.parent
	}
}

// flatten returns the nodes the view contributes to its parent, recomputing
// only along the dirty path and reusing cached spans elsewhere.
func (r *Root) flatten(e ecs.Entity) []*vdom.Node {
	v, ok := ecs.Get[View](r.store, e)
	if !ok {
		return nil
	}
	if !v.flattenDirty && v.span != nil {
		return v.span
	}

	spans := make([][]*vdom.Node, len(v.children))
	for i, c := range v.children {
		spans[i] = r.flatten(c)
	}
	v.span = v.tpl.Flatten(v.shell, spans)
	v.flattenDirty = false
	return v.span
}

// cleanupView cancels the view's build effect and every scope it owns.
// It removes no entities and does not recurse into children.
func (r *Root) cleanupView(e ecs.Entity) {
	v, ok := ecs.Get[View](r.store, e)
	if !ok || v.state != stateActive {
		return
	}
	r.rt.CancelOwned(e)
	v.state = stateCleaned
}

// despawnView tears down the subtree depth-first, children before parent,
// so no surviving effect can observe a half-destroyed child.
func (r *Root) despawnView(e ecs.Entity) {
	v, ok := ecs.Get[View](r.store, e)
	if !ok || v.state == stateDespawned {
		return
	}
	for i := len(v.children) - 1; i >= 0; i-- {
		r.despawnView(v.children[i])
	}
	r.cleanupView(e)
	r.rt.DespawnOwned(e)
	v.state = stateDespawned
	r.store.Despawn(e)
}

// Builder is handed to Template.Build. It gives the template access to the
// runtime and manages the view's children.
type Builder struct {
	root *Root
	self ecs.Entity
}

// Runtime returns the reactive runtime. Signal reads through it inside
// Build are attributed to the view's build effect.
func (b *Builder) Runtime() *reactive.Runtime {
	return b.root.rt
}

// SetChildren reconciles the view's child views against tpls. A position
// holding the same template keeps its spawned view untouched; removed
// children are despawned and new templates are spawned in order, each with
// its own build effect.
func (b *Builder) SetChildren(tpls ...Template) error {
	v, ok := ecs.Get[View](b.root.store, b.self)
	if !ok {
		return nil
	}

	kept := make(map[ecs.Entity]bool, len(v.children))
	children := make([]ecs.Entity, len(tpls))
	for i, tpl := range tpls {
		if i < len(v.childTpls) && v.childTpls[i] == tpl {
			children[i] = v.children[i]
			kept[children[i]] = true
		}
	}
	for _, old := range v.children {
		if old != ecs.NoEntity && !kept[old] {
			b.root.despawnView(old)
		}
	}

	// Commit before spawning so a failed spawn leaves no untracked views;
	// the failed slot stays NoEntity and flattens to nothing.
	v.children = children
	v.childTpls = append(v.childTpls[:0], tpls...)

	for i, tpl := range tpls {
		if children[i] != ecs.NoEntity {
			continue
		}
		child, err := b.root.spawnView(tpl, b.self)
		if err != nil {
			return err
		}
		children[i] = child
	}
	return nil
}
