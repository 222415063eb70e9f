package view

import (
	"errors"
	"testing"

	"github.com/reactor-ui/reactor/pkg/ecs"
	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/vdom"
)

func newTestRuntime() *reactive.Runtime {
	return reactive.NewRuntime(ecs.NewStore())
}

func TestSpawnMountsStaticTree(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}

	root, err := Spawn(rt, El("div", Text("hello")), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	if rec.Mounted == nil {
		t.Fatal("backend was not mounted")
	}
	div := rec.Mounted.Children[0]
	if div.Tag != "div" || div.NID == 0 {
		t.Errorf("unexpected mounted element: %+v", div)
	}
	if got := div.Children[0].Text; got != "hello" {
		t.Errorf("mounted text = %q, want %q", got, "hello")
	}

	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}
	if len(rec.Batches) != 0 {
		t.Errorf("react without changes applied patches: %v", rec.Batches)
	}
}

func TestComputedTextUpdates(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	name := reactive.NewSignal(rt, "a")

	root, err := Spawn(rt, El("p", TextFunc(func() string { return name.Get() })), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	if err := name.Set("b"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	if len(rec.Batches) != 1 {
		t.Fatalf("expected one patch batch, got %d", len(rec.Batches))
	}
	batch := rec.Batches[0]
	if len(batch) != 1 || batch[0].Op != vdom.OpSetText || batch[0].Value != "b" {
		t.Errorf("unexpected patches: %v", batch)
	}
}

func TestChildRerunLeavesSiblingUntouched(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	left := reactive.NewSignal(rt, "L0")
	right := reactive.NewSignal(rt, "R0")

	root, err := Spawn(rt, El("div",
		El("span", TextFunc(func() string { return left.Get() })),
		El("span", TextFunc(func() string { return right.Get() })),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	div := rec.Mounted.Children[0]
	leftText := div.Children[0].Children[0].NID
	rightText := div.Children[1].Children[0].NID

	if err := left.Set("L1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	if len(rec.Batches) != 1 {
		t.Fatalf("expected one patch batch, got %d", len(rec.Batches))
	}
	batch := rec.Batches[0]
	if len(batch) != 1 {
		t.Fatalf("expected exactly one patch, got %v", batch)
	}
	if batch[0].Op != vdom.OpSetText || batch[0].NID != leftText {
		t.Errorf("patch should target the left text %d, got %+v", leftText, batch[0])
	}
	if batch[0].NID == rightText {
		t.Error("sibling subtree was touched")
	}
}

func TestCondChangesCardinality(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	show := reactive.NewSignal(rt, false)

	root, err := Spawn(rt, El("div",
		Cond(func() bool { return show.Get() }, El("span", Text("on")), nil),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	div := rec.Mounted.Children[0]
	if len(div.Children) != 0 {
		t.Fatalf("hidden branch should mount no nodes, got %v", div.Children)
	}

	if err := show.Set(true); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	if len(rec.Batches) != 1 || len(rec.Batches[0]) != 1 {
		t.Fatalf("expected one insert patch, got %v", rec.Batches)
	}
	insert := rec.Batches[0][0]
	if insert.Op != vdom.OpInsertNode || insert.Parent != div.NID {
		t.Fatalf("expected insert under %d, got %+v", div.NID, insert)
	}
	spanNID := insert.Node.NID
	if spanNID == 0 {
		t.Error("inserted branch should carry fresh node IDs")
	}

	if err := show.Set(false); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	last := rec.Batches[len(rec.Batches)-1]
	if len(last) != 1 || last[0].Op != vdom.OpRemoveNode || last[0].NID != spanNID {
		t.Errorf("expected removal of %d, got %v", spanNID, last)
	}
}

func TestBranchDespawnUnsubscribes(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	show := reactive.NewSignal(rt, true)
	label := reactive.NewSignal(rt, "x")

	root, err := Spawn(rt, El("div",
		Cond(func() bool { return show.Get() },
			El("span", TextFunc(func() string { return label.Get() })),
			nil,
		),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	if got := len(rt.Subscribers(label.Entity())); got != 1 {
		t.Fatalf("label should have the branch text subscribed, got %d", got)
	}

	if err := show.Set(false); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := len(rt.Subscribers(label.Entity())); got != 0 {
		t.Errorf("despawned branch still subscribed to label: %d", got)
	}

	// Writing the orphaned signal must not fail or emit patches.
	if err := label.Set("y"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}
}

func TestTwoWritesDrainIntoOneBatch(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	n := reactive.NewSignal(rt, 0)

	root, err := Spawn(rt, El("p", TextFunc(func() string {
		if n.Get() > 1 {
			return "many"
		}
		return "few"
	})), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	if err := n.Set(1); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := n.Set(5); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	if len(rec.Batches) != 1 {
		t.Fatalf("expected a single batch per tick, got %d", len(rec.Batches))
	}
	if got := rec.Batches[0][0].Value; got != "many" {
		t.Errorf("patch value = %q, want %q", got, "many")
	}
}

func TestComputedAttr(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	cls := reactive.NewSignal(rt, "idle")

	root, err := Spawn(rt,
		El("div", Text("body")).AttrFunc("class", func() string { return cls.Get() }),
		rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	div := rec.Mounted.Children[0]
	if div.Attrs["class"] != "idle" {
		t.Fatalf("mounted class = %q", div.Attrs["class"])
	}

	if err := cls.Set("busy"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	batch := rec.Batches[0]
	if len(batch) != 1 || batch[0].Op != vdom.OpSetAttr || batch[0].Key != "class" || batch[0].Value != "busy" {
		t.Errorf("unexpected patches: %v", batch)
	}
}

func TestCleanupCancelsOwnEffectsOnly(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	cls := reactive.NewSignal(rt, "a")
	label := reactive.NewSignal(rt, "x")

	root, err := Spawn(rt, El("div",
		El("p", TextFunc(func() string { return label.Get() })).
			AttrFunc("class", func() string { return cls.Get() }),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	rootView, _ := ecs.Get[View](rt.Store(), root.Entity())
	pView := rootView.children[0]

	root.cleanupView(pView)

	if !rt.Store().Alive(pView) {
		t.Fatal("cleanup must not despawn the view entity")
	}
	v, _ := ecs.Get[View](rt.Store(), pView)
	if v.state != stateCleaned {
		t.Errorf("state = %v, want Cleaned", v.state)
	}
	if got := len(rt.Subscribers(cls.Entity())); got != 0 {
		t.Errorf("cleaned view's build effect still subscribed: %d", got)
	}
	// The grandchild text view owns its own effect; cleanup does not recurse.
	if got := len(rt.Subscribers(label.Entity())); got != 1 {
		t.Errorf("grandchild subscription count = %d, want 1", got)
	}
}

func TestDespawnLeavesNoScopesOrEdges(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	a := reactive.NewSignal(rt, "a")
	b := reactive.NewSignal(rt, "b")

	root, err := Spawn(rt, El("div",
		El("span", TextFunc(func() string { return a.Get() })),
		Cond(func() bool { return b.Get() == "b" }, Text("yes"), Text("no")),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	rootEntity := root.Entity()
	if err := root.Despawn(); err != nil {
		t.Fatalf("despawn failed: %v", err)
	}

	if got := rt.LiveScopes(); len(got) != 0 {
		t.Errorf("live scopes after despawn: %v", got)
	}
	if got := len(rt.Subscribers(a.Entity())); got != 0 {
		t.Errorf("signal a still has %d subscribers", got)
	}
	if got := len(rt.Subscribers(b.Entity())); got != 0 {
		t.Errorf("signal b still has %d subscribers", got)
	}
	if rt.Store().Alive(rootEntity) {
		t.Error("root view entity still alive")
	}
	if rec.Unmounts != 1 {
		t.Errorf("unmounts = %d, want 1", rec.Unmounts)
	}

	// Despawn is idempotent and writes afterwards are inert.
	if err := root.Despawn(); err != nil {
		t.Fatalf("second despawn failed: %v", err)
	}
	if err := a.Set("z"); err != nil {
		t.Fatalf("set after despawn failed: %v", err)
	}
}

type failTemplate struct {
	err error
}

func (f *failTemplate) Build(*Builder) ([]*vdom.Node, error) {
	return nil, f.err
}

func (f *failTemplate) Flatten(shell []*vdom.Node, _ [][]*vdom.Node) []*vdom.Node {
	return shell
}

func TestSpawnBuildFailureTearsDown(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	boom := errors.New("boom")

	_, err := Spawn(rt, El("div", Text("ok"), &failTemplate{err: boom}), rec)
	if err == nil {
		t.Fatal("expected spawn to fail")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap the build failure, got %v", err)
	}
	var bodyErr *reactive.BodyError
	if !errors.As(err, &bodyErr) {
		t.Errorf("expected a body failure, got %T", err)
	}

	if rec.Mounted != nil {
		t.Error("backend mounted despite failed spawn")
	}
	if got := rt.LiveScopes(); len(got) != 0 {
		t.Errorf("failed spawn leaked scopes: %v", got)
	}
}

func TestHandlersDriveWrites(t *testing.T) {
	rt := newTestRuntime()
	rec := &Recorder{}
	count := reactive.NewSignal(rt, 0)

	root, err := Spawn(rt, El("div",
		El("button", TextFunc(func() string {
			if count.Get() == 0 {
				return "unclicked"
			}
			return "clicked"
		})).On("click", func(string) error {
			return count.Update(func(n int) int { return n + 1 })
		}),
	), rec)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	button := rec.Mounted.Children[0].Children[0]
	handlers := root.Handlers()[button.NID]
	if handlers == nil {
		t.Fatalf("no handlers registered for button %d", button.NID)
	}

	if err := handlers["click"](""); err != nil {
		t.Fatalf("click failed: %v", err)
	}
	if err := root.React(); err != nil {
		t.Fatalf("react failed: %v", err)
	}

	batch := rec.Batches[0]
	if len(batch) != 1 || batch[0].Op != vdom.OpSetText || batch[0].Value != "clicked" {
		t.Errorf("unexpected patches: %v", batch)
	}
}
