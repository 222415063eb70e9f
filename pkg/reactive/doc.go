// Package reactive provides the fine-grained dependency-tracking engine:
// signals, memos, effects, and the context stack that attributes signal
// reads to the scope currently running.
//
// Every reactive object is an entity in an ecs.Store, so live tracking
// scopes can be enumerated uniformly and torn down without leaks.
//
// # Core Types
//
// Signal[T] is a reactive value cell:
//
//	count := reactive.NewSignal(rt, 0)
//	v := count.Get()   // read; subscribes the current scope
//	count.Set(5)       // write; notifies subscribers synchronously
//
// Memo[T] is a lazily recomputed derived value:
//
//	doubled := reactive.NewMemo(rt, func() int { return count.Get() * 2 })
//	v := doubled.Get() // recomputes only if a dependency changed
//
// Effect reruns eagerly, inside the write that invalidated it:
//
//	reactive.CreateEffect(rt, func() error {
//	    log = append(log, count.Get())
//	    return nil
//	})
//
// # Scheduling
//
// A runtime is single-threaded and synchronous: Set drives the entire
// cascade of dependent reruns depth-first before it returns. A Runtime and
// everything created from it must be used from one goroutine only.
package reactive
