// Package ecs provides the entity/component substrate the reactive runtime
// is built on: an indexed arena with a side free-list.
//
// Entities are opaque handles packing an index and a generation. Despawning
// an entity bumps its generation, so stale handles held after a despawn are
// rejected instead of resolving to a recycled slot.
//
// Component access goes through the generic package functions:
//
//	e := store.Create()
//	ecs.Attach(store, e, Position{X: 1})
//	pos, ok := ecs.Get[Position](store, e)
//	ecs.Each(store, func(e ecs.Entity, p *Position) bool { ... })
//
// A Store is not safe for concurrent use. The reactive runtime owns its
// store from a single goroutine; hosts that share a store across goroutines
// must serialize access externally.
package ecs
