// Package server hosts live reactive sessions over HTTP and websockets.
//
// Every websocket connection gets its own session: an entity store, a
// reactive runtime, and a root view, all owned by a single goroutine. Event
// frames from the client dispatch into node handlers on that goroutine;
// the resulting signal writes rerun effects synchronously, a react pass
// re-flattens the changed views, and the diff streams back as a patch
// frame.
//
// Sessions detach when the connection drops: their persistent values are
// snapshotted to a snapshot.Store and can be resumed by a later connection
// presenting the same session ID.
package server
