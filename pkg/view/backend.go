package view

import "github.com/reactor-ui/reactor/pkg/vdom"

// Backend receives the mounted node tree and the patch batches produced by
// subsequent react passes. The websocket server and the test recorder both
// implement it.
type Backend interface {
	// Mount installs the initial tree. Every node carries an assigned ID.
	Mount(root *vdom.Node) error

	// Apply applies one react pass worth of patches, in order.
	Apply(patches []vdom.Patch) error

	// Unmount removes the whole tree.
	Unmount() error
}

// Recorder is a Backend that records every call it receives.
type Recorder struct {
	Mounted  *vdom.Node
	Batches  [][]vdom.Patch
	Unmounts int
}

func (r *Recorder) Mount(root *vdom.Node) error {
	r.Mounted = root
	return nil
}

func (r *Recorder) Apply(patches []vdom.Patch) error {
	r.Batches = append(r.Batches, patches)
	return nil
}

func (r *Recorder) Unmount() error {
	r.Unmounts++
	return nil
}
