// Package vdom defines the DOM-like node tree produced by view flattening,
// and the diff that turns two trees into a minimal patch sequence for a
// render backend.
//
// Nodes are identified by numeric node IDs (NIDs) assigned when a subtree
// first reaches the backend: at mount, and for inserted or replacing nodes
// during diff. Matched nodes keep their NID across diffs, so a patch always
// targets a node the backend already knows.
package vdom
