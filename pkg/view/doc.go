// Package view ties the reactive engine to a render backend. A Template
// describes a view tree; Spawn materializes it as view entities, each with
// its own build effect, and mounts the flattened node tree on the backend.
//
// Signal writes rerun build effects eagerly and mark the affected views for
// re-flattening. React, called once per tick, recomputes the flattened node
// sequence of the marked views only and applies the resulting diff to the
// backend. Despawn tears the tree down children first and leaves no scope
// subscribed to any signal.
package view
