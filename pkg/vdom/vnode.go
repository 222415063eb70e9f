package vdom

import (
	"encoding/json"
	"sort"
)

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement  Kind = iota // <div>, <button>, ...
	KindText                 // plain text
	KindFragment             // grouping without a wrapper element
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// Handler is an event handler bound to a node. The value carries the
// event payload sent by the client (input text, checkbox state, ...).
type Handler func(value string) error

// Node is a DOM-like view node.
type Node struct {
	Kind     Kind
	Tag      string            // element tag name
	Attrs    map[string]string // attributes; never event handlers
	On       map[string]Handler
	Children []*Node
	Key      string // reconciliation key
	Text     string // for KindText
	NID      uint64 // node ID; zero until the node reaches the backend
}

// TextNode creates a text node.
func TextNode(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

// Element creates an element node.
func Element(tag string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: tag, Children: children}
}

// Fragment groups nodes without introducing a wrapper element.
func Fragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

// WithAttr sets an attribute and returns the node for chaining.
func (n *Node) WithAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// WithKey sets the reconciliation key.
func (n *Node) WithKey(key string) *Node {
	n.Key = key
	return n
}

// WithOn binds an event handler.
func (n *Node) WithOn(event string, h Handler) *Node {
	if n.On == nil {
		n.On = make(map[string]Handler)
	}
	n.On[event] = h
	return n
}

// Allocator hands out node IDs. The view root owns one per tree.
type Allocator struct {
	next uint64
}

// Next returns a fresh node ID.
func (a *Allocator) Next() uint64 {
	a.next++
	return a.next
}

// AssignIDs gives n and every descendant without an ID a fresh NID.
func (a *Allocator) AssignIDs(n *Node) {
	if n == nil {
		return
	}
	if n.NID == 0 {
		n.NID = a.Next()
	}
	for _, child := range n.Children {
		a.AssignIDs(child)
	}
}

// Walk visits n and all descendants depth-first, stopping early when fn
// returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		Walk(child, fn)
	}
}

// MarshalJSON writes the node in wire form. Handlers cannot cross the
// wire; the client sees only the event names it should forward.
func (n *Node) MarshalJSON() ([]byte, error) {
	events := make([]string, 0, len(n.On))
	for event := range n.On {
		events = append(events, event)
	}
	sort.Strings(events)

	return json.Marshal(wireNode{
		Kind:     n.Kind,
		Tag:      n.Tag,
		Attrs:    n.Attrs,
		Events:   events,
		Children: n.Children,
		Key:      n.Key,
		Text:     n.Text,
		NID:      n.NID,
	})
}

type wireNode struct {
	Kind     Kind              `json:"kind"`
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Events   []string          `json:"events,omitempty"`
	Children []*Node           `json:"children,omitempty"`
	Key      string            `json:"key,omitempty"`
	Text     string            `json:"text,omitempty"`
	NID      uint64            `json:"nid,omitempty"`
}

// Handlers collects the event handlers of a tree, keyed by NID and event
// name. The server rebuilds this index after every react pass.
func Handlers(root *Node) map[uint64]map[string]Handler {
	index := make(map[uint64]map[string]Handler)
	Walk(root, func(n *Node) bool {
		if len(n.On) > 0 && n.NID != 0 {
			index[n.NID] = n.On
		}
		return true
	})
	return index
}
