package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/snapshot"
	"github.com/reactor-ui/reactor/pkg/view"
)

// fakeConn implements wsConn against in-memory buffers.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool

	incoming  chan []byte
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16)}
}

func (f *fakeConn) push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	f.incoming <- data
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.incoming
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, msg, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64)               {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.incoming)
	})
	return nil
}

// frames returns the recorded outgoing frames as raw JSON strings.
func (f *fakeConn) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

// frameType extracts the "t" tag of recorded frame i.
func (f *fakeConn) frameType(t *testing.T, i int) string {
	t.Helper()
	frames := f.frames()
	if i >= len(frames) {
		t.Fatalf("want frame %d, have %d frames", i, len(frames))
	}
	var probe struct {
		T string `json:"t"`
	}
	if err := json.Unmarshal([]byte(frames[i]), &probe); err != nil {
		t.Fatalf("decode frame %d: %v", i, err)
	}
	return probe.T
}

// counterApp is a one-button counter. The count survives detach through
// the snapshot.
func counterApp(rt *reactive.Runtime, snap *snapshot.Snapshot) (view.Template, CaptureFunc, error) {
	start := 0
	if snap != nil {
		if _, err := snap.Get("count", &start); err != nil {
			return nil, nil, err
		}
	}
	count := reactive.NewSignal(rt, start)

	tpl := view.El("div",
		view.El("button",
			view.TextFunc(func() string { return "count: " + strconv.Itoa(count.Get()) }),
		).On("click", func(string) error {
			return count.Update(func(n int) int { return n + 1 })
		}),
	)

	capture := func(s *snapshot.Snapshot) {
		s.Set("count", count.Peek())
	}
	return tpl, capture, nil
}

func newTestServer(t *testing.T, app AppFunc, config *Config) *Server {
	t.Helper()
	if config == nil {
		config = DefaultConfig()
	}
	config.WithRegistry(prometheus.NewRegistry())
	return New(app, snapshot.NewMemoryStore(), config)
}

// clickNID finds the node carrying the click handler.
func clickNID(t *testing.T, sess *Session) uint64 {
	t.Helper()
	for nid, events := range sess.root.Handlers() {
		if events["click"] != nil {
			return nid
		}
	}
	t.Fatal("no click handler in tree")
	return 0
}

func TestAttachSendsWelcomeThenMount(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()

	sess, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if sess.ID() == "" {
		t.Error("session ID is empty")
	}
	if got := conn.frameType(t, 0); got != frameWelcome {
		t.Errorf("frame 0 = %q, want welcome", got)
	}
	if got := conn.frameType(t, 1); got != frameMount {
		t.Errorf("frame 1 = %q, want mount", got)
	}
	mount := conn.frames()[1]
	if !strings.Contains(mount, "count: 0") {
		t.Errorf("mount frame missing initial text: %s", mount)
	}
	if !strings.Contains(mount, `"events":["click"]`) {
		t.Errorf("mount frame missing event list: %s", mount)
	}
	if srv.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", srv.SessionCount())
	}
}

func TestDispatchStreamsPatch(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()
	sess, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	sess.dispatch(eventFrame{T: frameEvent, NID: clickNID(t, sess), Name: "click"})

	if got := conn.frameType(t, 2); got != framePatch {
		t.Fatalf("frame 2 = %q, want patch", got)
	}
	patch := conn.frames()[2]
	if !strings.Contains(patch, "count: 1") {
		t.Errorf("patch frame missing updated text: %s", patch)
	}

	if got := testutil.ToFloat64(srv.metrics.patchesSent); got != 1 {
		t.Errorf("patches_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(srv.metrics.eventsTotal.WithLabelValues("click", "success")); got != 1 {
		t.Errorf("events_total{click,success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(srv.metrics.signalWrites); got != 1 {
		t.Errorf("signal_writes_total = %v, want 1", got)
	}
}

func TestDispatchUnknownTargetSendsError(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()
	sess, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	sess.dispatch(eventFrame{T: frameEvent, NID: 9999, Name: "click"})

	if got := conn.frameType(t, 2); got != frameError {
		t.Fatalf("frame 2 = %q, want error", got)
	}
	if !strings.Contains(conn.frames()[2], errCodeUnknownTarget) {
		t.Errorf("error frame missing code: %s", conn.frames()[2])
	}
	if got := testutil.ToFloat64(srv.metrics.eventsTotal.WithLabelValues("click", "error")); got != 1 {
		t.Errorf("events_total{click,error} = %v, want 1", got)
	}
}

func TestDetachSavesSnapshotAndResumes(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()
	sess, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	id := sess.ID()

	sess.dispatch(eventFrame{T: frameEvent, NID: clickNID(t, sess), Name: "click"})
	sess.Close()
	sess.run() // drains nothing; the deferred teardown detaches

	if srv.SessionCount() != 0 {
		t.Errorf("SessionCount after detach = %d, want 0", srv.SessionCount())
	}
	if !conn.closed {
		t.Error("connection not closed on teardown")
	}
	snap, err := srv.snapshots.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil {
		t.Fatal("no snapshot saved on detach")
	}

	conn2 := newFakeConn()
	sess2, err := srv.attach(context.Background(), conn2, helloFrame{T: frameHello, Session: id})
	if err != nil {
		t.Fatalf("resume attach: %v", err)
	}
	if sess2.ID() != id {
		t.Errorf("resumed session ID = %q, want %q", sess2.ID(), id)
	}
	if !strings.Contains(conn2.frames()[0], `"resumed":true`) {
		t.Errorf("welcome frame not marked resumed: %s", conn2.frames()[0])
	}
	if !strings.Contains(conn2.frames()[1], "count: 1") {
		t.Errorf("resumed mount lost state: %s", conn2.frames()[1])
	}
}

func TestAttachUnknownSessionStartsFresh(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()

	sess, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello, Session: "gone"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if sess.ID() == "gone" {
		t.Error("expired session ID was reused")
	}
	if !strings.Contains(conn.frames()[0], `"resumed":false`) {
		t.Errorf("welcome frame marked resumed: %s", conn.frames()[0])
	}
}

func TestAttachOverCapFails(t *testing.T) {
	srv := newTestServer(t, counterApp, DefaultConfig().WithMaxSessions(1))

	if _, err := srv.attach(context.Background(), newFakeConn(), helloFrame{T: frameHello}); err != nil {
		t.Fatalf("first attach: %v", err)
	}

	conn := newFakeConn()
	_, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("err = %v, want ErrTooManySessions", err)
	}
	if got := conn.frameType(t, 0); got != frameError {
		t.Errorf("frame 0 = %q, want error", got)
	}
}

func TestServeConnRejectsBadHandshake(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()
	conn.incoming <- []byte(`{"t":"event"}`)

	err := srv.serveConn(context.Background(), conn)
	if !errors.Is(err, ErrBadHandshake) {
		t.Fatalf("err = %v, want ErrBadHandshake", err)
	}
}

func TestServeConnRunsSessionToDetach(t *testing.T) {
	srv := newTestServer(t, counterApp, nil)
	conn := newFakeConn()
	conn.push(t, helloFrame{T: frameHello})

	done := make(chan error, 1)
	go func() { done <- srv.serveConn(context.Background(), conn) }()

	// Wait for the mount frame, then click once and hang up.
	deadline := time.After(5 * time.Second)
	for {
		if len(conn.frames()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for mount")
		case <-time.After(time.Millisecond):
		}
	}
	var nid uint64
	for id, events := range srv.registry.all()[0].root.Handlers() {
		if events["click"] != nil {
			nid = id
		}
	}
	conn.push(t, eventFrame{T: frameEvent, NID: nid, Name: "click"})

	for {
		frames := conn.frames()
		if len(frames) >= 3 && strings.Contains(frames[2], "count: 1") {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for patch")
		case <-time.After(time.Millisecond):
		}
	}

	conn.Close() // read loop fails, session detaches
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveConn: %v", err)
		}
	case <-deadline:
		t.Fatal("timed out waiting for detach")
	}
	if srv.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", srv.SessionCount())
	}
}

func TestAppBuildFailureDetaches(t *testing.T) {
	boom := errors.New("boom")
	app := func(*reactive.Runtime, *snapshot.Snapshot) (view.Template, CaptureFunc, error) {
		return nil, nil, boom
	}
	srv := newTestServer(t, app, nil)
	conn := newFakeConn()

	_, err := srv.attach(context.Background(), conn, helloFrame{T: frameHello})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if srv.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", srv.SessionCount())
	}
}
