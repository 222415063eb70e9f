package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reactor-ui/reactor/pkg/ecs"
	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/snapshot"
	"github.com/reactor-ui/reactor/pkg/vdom"
	"github.com/reactor-ui/reactor/pkg/view"
)

var tracer = otel.Tracer("reactor/server")

// AppFunc builds a session's UI. It runs once per session: create signals
// against rt, restore persistent values from snap (nil for fresh
// sessions), and return the root template. The returned CaptureFunc, which
// may be nil, fills the outgoing snapshot when the session detaches.
type AppFunc func(rt *reactive.Runtime, snap *snapshot.Snapshot) (view.Template, CaptureFunc, error)

// CaptureFunc records a session's persistent values into snap.
type CaptureFunc func(snap *snapshot.Snapshot)

// wsConn is the connection surface the session uses. *websocket.Conn
// satisfies it; tests substitute a fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Session is one live client. A single goroutine (run) owns the entity
// store, the runtime, and the view root; the read loop only decodes frames
// and queues them.
type Session struct {
	id      string
	srv     *Server
	conn    wsConn
	rt      *reactive.Runtime
	root    *view.Root
	capture CaptureFunc

	events chan eventFrame
	done   chan struct{}

	// patchCount is written by the backend during a dispatch; only the run
	// goroutine touches it.
	patchCount int

	closeOnce sync.Once
	writeMu   sync.Mutex

	mu         sync.Mutex
	lastActive time.Time
}

// ID returns the session identifier the client resumes with.
func (s *Session) ID() string {
	return s.id
}

// Close asks the session to detach. The run goroutine performs the actual
// teardown: snapshot save, view despawn, connection close.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

func (s *Session) send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.srv.config.WriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) sendError(code, message string) {
	if err := s.send(errorFrame{T: frameError, Code: code, Message: message}); err != nil {
		Logger().Debug("error frame send failed",
			zap.String("session", s.id), zap.Error(err))
	}
}

// spawn builds the app and mounts its view tree on the connection.
func (s *Session) spawn(snap *snapshot.Snapshot) error {
	tpl, capture, err := s.srv.app(s.rt, snap)
	if err != nil {
		return err
	}
	s.capture = capture

	root, err := view.Spawn(s.rt, tpl, &wsBackend{s: s})
	if err != nil {
		return err
	}
	s.root = root
	return nil
}

// run processes queued events until the session closes, then tears down.
// Everything that touches the runtime happens here.
func (s *Session) run() {
	defer s.teardown()
	for {
		select {
		case ev := <-s.events:
			s.dispatch(ev)
		case <-s.done:
			return
		}
	}
}

// readLoop decodes client frames and queues them for the run goroutine.
func (s *Session) readLoop() {
	defer s.Close()
	s.conn.SetReadLimit(s.srv.config.MaxMessageSize)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.srv.config.ReadTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				Logger().Warn("session read failed",
					zap.String("session", s.id), zap.Error(err))
			}
			return
		}
		s.touch()

		var ev eventFrame
		if err := json.Unmarshal(msg, &ev); err != nil || ev.T != frameEvent {
			Logger().Warn("bad client frame", zap.String("session", s.id), zap.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		default:
			s.sendError(errCodeQueueFull, "event queue full")
		}
	}
}

// dispatch routes one event into its node handler, runs the react pass,
// and streams the patches back. The whole write cascade runs inside the
// handler call.
func (s *Session) dispatch(ev eventFrame) {
	start := time.Now()
	_, span := tracer.Start(context.Background(), "reactor.event",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("reactor.session_id", s.id),
			attribute.String("reactor.event", ev.Name),
			attribute.Int64("reactor.target_nid", int64(ev.NID)),
		))
	defer span.End()

	before := s.rt.Stats()
	err := s.invoke(ev)
	after := s.rt.Stats()

	m := s.srv.metrics
	m.signalWrites.Add(float64(after.SignalWrites - before.SignalWrites))
	m.effectRuns.Add(float64(after.EffectRuns - before.EffectRuns))
	m.eventDuration.WithLabelValues(ev.Name).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("reactor.patch_count", s.patchCount))

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.reportDispatchError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	m.eventsTotal.WithLabelValues(ev.Name, status).Inc()
}

// invoke runs the handler and the react pass. A handler failure does not
// skip the react pass: effects that ran before the failure have already
// marked views dirty, and those updates still reach the client.
func (s *Session) invoke(ev eventFrame) error {
	s.patchCount = 0

	h := s.root.Handlers()[ev.NID][ev.Name]
	if h == nil {
		return fmt.Errorf("%w: nid %d event %q", ErrUnknownTarget, ev.NID, ev.Name)
	}

	handlerErr := h(ev.Value)
	if err := s.root.React(); err != nil {
		if handlerErr != nil {
			Logger().Error("react failed after handler error",
				zap.String("session", s.id), zap.Error(err))
			return handlerErr
		}
		return err
	}
	return handlerErr
}

func (s *Session) reportDispatchError(err error) {
	var cycleErr *reactive.CycleError
	var bodyErr *reactive.BodyError
	switch {
	case errors.As(err, &cycleErr):
		s.sendError(errCodeCycle, cycleErr.Error())
	case errors.As(err, &bodyErr):
		s.sendError(errCodeBodyFailure, bodyErr.Error())
	case errors.Is(err, ErrUnknownTarget):
		s.sendError(errCodeUnknownTarget, err.Error())
	default:
		s.sendError(errCodeInternal, err.Error())
	}
	Logger().Error("event dispatch failed",
		zap.String("session", s.id), zap.Error(err))
}

// teardown detaches the session: persistent values are snapshotted for
// resume, the view tree is despawned, and the connection closes.
func (s *Session) teardown() {
	snap := snapshot.New(s.id)
	snap.SavedAt = time.Now()
	if s.capture != nil {
		s.capture(snap)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.snapshots.Save(ctx, snap, time.Now().Add(s.srv.config.SessionTTL)); err != nil {
		Logger().Error("snapshot save failed",
			zap.String("session", s.id), zap.Error(err))
	}

	if s.root != nil {
		if err := s.root.Despawn(); err != nil {
			// The connection is usually gone by now; the unmount frame is
			// best effort.
			Logger().Debug("despawn notify failed",
				zap.String("session", s.id), zap.Error(err))
		}
	}

	s.srv.detach(s)
	s.conn.Close()

	Logger().Info("session detached", zap.String("session", s.id))
}

// wsBackend streams view output over the session's connection.
type wsBackend struct {
	s *Session
}

func (b *wsBackend) Mount(root *vdom.Node) error {
	return b.s.send(mountFrame{T: frameMount, Root: root})
}

func (b *wsBackend) Apply(patches []vdom.Patch) error {
	b.s.patchCount += len(patches)
	b.s.srv.metrics.patchesSent.Add(float64(len(patches)))
	return b.s.send(patchFrame{T: framePatch, Patches: patches})
}

func (b *wsBackend) Unmount() error {
	return b.s.send(unmountFrame{T: frameUnmount})
}

// newSessionID returns a 128-bit random hex identifier.
func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("server: session id entropy unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// newSession builds the session shell. The view tree is spawned separately
// so the welcome frame can precede the mount frame.
func newSession(srv *Server, id string, conn wsConn) *Session {
	return &Session{
		id:         id,
		srv:        srv,
		conn:       conn,
		rt:         reactive.NewRuntime(ecs.NewStore()),
		events:     make(chan eventFrame, srv.config.MaxEventQueue),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}
