package reactive

import "github.com/reactor-ui/reactor/pkg/ecs"

// Effect is an eager tracking scope: any dependency change reruns the body
// synchronously inside the triggering write.
type Effect struct {
	rt     *Runtime
	entity ecs.Entity
}

// CreateEffect creates an effect entity and runs body once to capture its
// initial dependencies. The body reruns, with dependencies refreshed, every
// time a signal or memo it read changes.
//
// A failure from the first run is returned here; the partially created
// scope is despawned before returning.
func CreateEffect(rt *Runtime, body func() error) (*Effect, error) {
	e := rt.store.Create()
	owner := rt.ownerForNewScope()
	ecs.Attach(rt.store, e, Scope{
		action: actionRerun,
		owner:  owner,
		body:   body,
	})
	rt.adopt(owner, e)

	if err := rt.runScope(e); err != nil {
		rt.DespawnScope(e)
		return nil, err
	}
	return &Effect{rt: rt, entity: e}, nil
}

// Entity returns the effect's scope entity handle.
func (e *Effect) Entity() ecs.Entity {
	return e.entity
}

// Cancel marks the effect cancelled and unsubscribes it from every signal
// it depends on. The entity remains until its owner despawns it.
func (e *Effect) Cancel() {
	e.rt.CancelScope(e.entity)
}

// Cancelled reports whether the effect has been cancelled.
func (e *Effect) Cancelled() bool {
	scope, ok := ecs.Get[Scope](e.rt.store, e.entity)
	if !ok {
		return true
	}
	return scope.cancelled
}
