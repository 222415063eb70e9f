package server

import "github.com/reactor-ui/reactor/pkg/vdom"

// Frame type tags. Every frame on the wire is a JSON object whose "t"
// field selects the shape.
const (
	frameHello   = "hello"
	frameWelcome = "welcome"
	frameEvent   = "event"
	frameMount   = "mount"
	framePatch   = "patch"
	frameError   = "error"
	frameUnmount = "unmount"
)

// helloFrame is the client's first message. Session carries a previous
// session ID when the client wants to resume.
type helloFrame struct {
	T       string `json:"t"`
	Session string `json:"session,omitempty"`
}

// welcomeFrame acknowledges the handshake.
type welcomeFrame struct {
	T       string `json:"t"`
	Session string `json:"session"`
	Resumed bool   `json:"resumed"`
}

// eventFrame is a client event targeting a node handler.
type eventFrame struct {
	T     string `json:"t"`
	NID   uint64 `json:"nid"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// mountFrame carries the initial tree after the handshake.
type mountFrame struct {
	T    string     `json:"t"`
	Root *vdom.Node `json:"root"`
}

// patchFrame carries one react pass worth of patches.
type patchFrame struct {
	T       string       `json:"t"`
	Patches []vdom.Patch `json:"patches"`
}

// errorFrame surfaces a dispatch failure to the client.
type errorFrame struct {
	T       string `json:"t"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// unmountFrame tells the client the session tree is gone.
type unmountFrame struct {
	T string `json:"t"`
}

// Error codes sent in error frames.
const (
	errCodeUnknownTarget = "unknown_target"
	errCodeCycle         = "cyclic_dependency"
	errCodeBodyFailure   = "body_failure"
	errCodeQueueFull     = "queue_full"
	errCodeInternal      = "internal"
)
