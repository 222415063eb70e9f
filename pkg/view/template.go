package view

import "github.com/reactor-ui/reactor/pkg/vdom"

// Template describes a view. A template carries no per-spawn state, so the
// same value may back multiple live views; everything mutable lives on the
// view entity.
type Template interface {
	// Build produces the view's own shell nodes and declares its children
	// via the builder. It runs inside the view's build effect, so every
	// signal read subscribes the view to future changes.
	Build(b *Builder) ([]*vdom.Node, error)

	// Flatten combines the shell from the last build with the flattened
	// nodes of the children, in declaration order. It must not read
	// reactive state and must not mutate the shell.
	Flatten(shell []*vdom.Node, children [][]*vdom.Node) []*vdom.Node
}

func concat(spans [][]*vdom.Node) []*vdom.Node {
	var out []*vdom.Node
	for _, s := range spans {
		out = append(out, s...)
	}
	return out
}

// =============================================================================
// Text
// =============================================================================

type textView struct {
	text string
}

// Text is a view displaying a fixed string.
func Text(text string) Template {
	return &textView{text: text}
}

func (t *textView) Build(*Builder) ([]*vdom.Node, error) {
	return []*vdom.Node{vdom.TextNode(t.text)}, nil
}

func (t *textView) Flatten(shell []*vdom.Node, _ [][]*vdom.Node) []*vdom.Node {
	return shell
}

// =============================================================================
// TextFunc
// =============================================================================

type textFuncView struct {
	fn func() string
}

// TextFunc is a view displaying a computed string. The function runs inside
// the view's build effect; the text node regenerates whenever a signal the
// function reads changes.
func TextFunc(fn func() string) Template {
	return &textFuncView{fn: fn}
}

func (t *textFuncView) Build(*Builder) ([]*vdom.Node, error) {
	return []*vdom.Node{vdom.TextNode(t.fn())}, nil
}

func (t *textFuncView) Flatten(shell []*vdom.Node, _ [][]*vdom.Node) []*vdom.Node {
	return shell
}

// =============================================================================
// Element
// =============================================================================

// ElementTemplate is a view rendering a single element wrapping its
// children's nodes.
type ElementTemplate struct {
	tag      string
	key      string
	attrs    []attr
	handlers []handlerBinding
	children []Template
}

type attr struct {
	key   string
	value string
	fn    func() string
}

type handlerBinding struct {
	event string
	h     vdom.Handler
}

// El creates an element view with the given child views.
func El(tag string, children ...Template) *ElementTemplate {
	return &ElementTemplate{tag: tag, children: children}
}

// Attr sets a static attribute.
func (e *ElementTemplate) Attr(key, value string) *ElementTemplate {
	e.attrs = append(e.attrs, attr{key: key, value: value})
	return e
}

// AttrFunc binds an attribute to a computed value. The function runs inside
// the view's build effect, so the attribute updates when its inputs change.
func (e *ElementTemplate) AttrFunc(key string, fn func() string) *ElementTemplate {
	e.attrs = append(e.attrs, attr{key: key, fn: fn})
	return e
}

// On binds an event handler.
func (e *ElementTemplate) On(event string, h vdom.Handler) *ElementTemplate {
	e.handlers = append(e.handlers, handlerBinding{event: event, h: h})
	return e
}

// Key sets the reconciliation key.
func (e *ElementTemplate) Key(key string) *ElementTemplate {
	e.key = key
	return e
}

func (e *ElementTemplate) Build(b *Builder) ([]*vdom.Node, error) {
	n := vdom.Element(e.tag)
	for _, a := range e.attrs {
		if a.fn != nil {
			n.WithAttr(a.key, a.fn())
		} else {
			n.WithAttr(a.key, a.value)
		}
	}
	for _, hb := range e.handlers {
		n.WithOn(hb.event, hb.h)
	}
	if e.key != "" {
		n.WithKey(e.key)
	}
	if err := b.SetChildren(e.children...); err != nil {
		return nil, err
	}
	return []*vdom.Node{n}, nil
}

func (e *ElementTemplate) Flatten(shell []*vdom.Node, children [][]*vdom.Node) []*vdom.Node {
	// Fresh wrapper node per flatten; the previous tree keeps the old one.
	n := *shell[0]
	n.NID = 0
	n.Children = concat(children)
	return []*vdom.Node{&n}
}

// =============================================================================
// Fragment
// =============================================================================

type fragmentView struct {
	children []Template
}

// Frag groups child views without a wrapper element.
func Frag(children ...Template) Template {
	return &fragmentView{children: children}
}

func (f *fragmentView) Build(b *Builder) ([]*vdom.Node, error) {
	return nil, b.SetChildren(f.children...)
}

func (f *fragmentView) Flatten(_ []*vdom.Node, children [][]*vdom.Node) []*vdom.Node {
	return concat(children)
}

// =============================================================================
// Cond
// =============================================================================

type condView struct {
	pred func() bool
	then Template
	els  Template
}

// Cond switches between two child views based on a reactive predicate. A
// branch switch despawns the old branch, spawns the new one, and changes
// the node cardinality seen by the parent, forcing it to re-flatten.
// The else branch may be nil.
func Cond(pred func() bool, then, els Template) Template {
	return &condView{pred: pred, then: then, els: els}
}

func (c *condView) Build(b *Builder) ([]*vdom.Node, error) {
	branch := c.then
	if !c.pred() {
		branch = c.els
	}
	if branch == nil {
		return nil, b.SetChildren()
	}
	return nil, b.SetChildren(branch)
}

func (c *condView) Flatten(_ []*vdom.Node, children [][]*vdom.Node) []*vdom.Node {
	return concat(children)
}
