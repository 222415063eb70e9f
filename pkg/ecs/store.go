package ecs

import (
	"fmt"
	"reflect"
	"sort"
)

// Entity is an opaque handle to a live slot in a Store.
// The low 32 bits are the slot index, the high 32 bits the generation.
type Entity uint64

// NoEntity is the zero Entity. It never names a live slot.
const NoEntity Entity = 0

func makeEntity(index, gen uint32) Entity {
	return Entity(uint64(gen)<<32 | uint64(index))
}

func (e Entity) index() uint32 {
	return uint32(e)
}

func (e Entity) generation() uint32 {
	return uint32(e >> 32)
}

// String formats the entity as index@generation for diagnostics.
func (e Entity) String() string {
	if e == NoEntity {
		return "entity(none)"
	}
	return fmt.Sprintf("entity(%d@%d)", e.index(), e.generation())
}

// Store is an arena of entities and their components.
type Store struct {
	// generations[i] is the current generation of slot i.
	// A slot's generation is bumped on despawn, invalidating old handles.
	generations []uint32

	// occupied[i] reports whether slot i holds a live entity.
	occupied []bool

	// free is the side free-list of despawned slot indices.
	free []uint32

	// storages maps component type to its typed storage.
	storages map[reflect.Type]componentStorage
}

// componentStorage is the type-erased face of a typed component map,
// so Despawn can sweep all storages without knowing component types.
type componentStorage interface {
	remove(index uint32)
}

// typedStorage holds all components of one type, keyed by slot index.
type typedStorage[C any] struct {
	data map[uint32]*C
}

func (t *typedStorage[C]) remove(index uint32) {
	delete(t.data, index)
}

// NewStore creates an empty Store.
//
// Generation starts at 1 so that the zero Entity is never valid.
func NewStore() *Store {
	return &Store{
		storages: make(map[reflect.Type]componentStorage),
	}
}

// Create allocates a new entity, reusing a despawned slot when one exists.
func (s *Store) Create() Entity {
	if n := len(s.free); n > 0 {
		index := s.free[n-1]
		s.free = s.free[:n-1]
		s.occupied[index] = true
		return makeEntity(index, s.generations[index])
	}

	index := uint32(len(s.generations))
	s.generations = append(s.generations, 1)
	s.occupied = append(s.occupied, true)
	return makeEntity(index, 1)
}

// Alive reports whether e names a live entity in this store.
func (s *Store) Alive(e Entity) bool {
	index := e.index()
	return int(index) < len(s.generations) &&
		s.occupied[index] &&
		s.generations[index] == e.generation()
}

// Despawn removes the entity and every component attached to it.
// Despawning a dead or stale handle is a no-op.
func (s *Store) Despawn(e Entity) {
	if !s.Alive(e) {
		return
	}

	index := e.index()
	for _, storage := range s.storages {
		storage.remove(index)
	}

	s.occupied[index] = false
	s.generations[index]++
	s.free = append(s.free, index)
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	return len(s.generations) - len(s.free)
}

// storageFor returns the typed storage for C, creating it on first use.
func storageFor[C any](s *Store, create bool) *typedStorage[C] {
	key := reflect.TypeOf((*C)(nil)).Elem()
	if existing, ok := s.storages[key]; ok {
		return existing.(*typedStorage[C])
	}
	if !create {
		return nil
	}
	storage := &typedStorage[C]{data: make(map[uint32]*C)}
	s.storages[key] = storage
	return storage
}

// Attach adds (or replaces) the C component on e.
// Attaching to a dead entity is a no-op.
func Attach[C any](s *Store, e Entity, c C) {
	if !s.Alive(e) {
		return
	}
	storageFor[C](s, true).data[e.index()] = &c
}

// Detach removes the C component from e, if present.
func Detach[C any](s *Store, e Entity) {
	if !s.Alive(e) {
		return
	}
	if storage := storageFor[C](s, false); storage != nil {
		storage.remove(e.index())
	}
}

// Get returns a pointer to e's C component.
// The pointer stays valid until the component is detached or e despawned.
func Get[C any](s *Store, e Entity) (*C, bool) {
	if !s.Alive(e) {
		return nil, false
	}
	storage := storageFor[C](s, false)
	if storage == nil {
		return nil, false
	}
	c, ok := storage.data[e.index()]
	return c, ok
}

// Each calls fn for every live entity with a C component, in slot order.
// Iteration stops early when fn returns false.
func Each[C any](s *Store, fn func(Entity, *C) bool) {
	storage := storageFor[C](s, false)
	if storage == nil {
		return
	}

	indices := make([]uint32, 0, len(storage.data))
	for index := range storage.data {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, index := range indices {
		c, ok := storage.data[index]
		if !ok || !s.occupied[index] {
			continue
		}
		if !fn(makeEntity(index, s.generations[index]), c) {
			return
		}
	}
}

// Count returns the number of live entities carrying a C component.
func Count[C any](s *Store) int {
	n := 0
	Each(s, func(Entity, *C) bool {
		n++
		return true
	})
	return n
}
