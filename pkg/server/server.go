package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reactor-ui/reactor/pkg/ecs"
	"github.com/reactor-ui/reactor/pkg/reactive"
	"github.com/reactor-ui/reactor/pkg/render"
	"github.com/reactor-ui/reactor/pkg/snapshot"
	"github.com/reactor-ui/reactor/pkg/view"
)

// Server hosts an app over HTTP and websockets.
type Server struct {
	config    *Config
	app       AppFunc
	snapshots snapshot.Store
	registry  *registry
	metrics   *metrics
	upgrader  websocket.Upgrader
	router    chi.Router
	renderer  *render.Renderer
	httpSrv   *http.Server

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a server hosting app, persisting detached sessions in
// snapshots. A nil config uses DefaultConfig.
func New(app AppFunc, snapshots snapshot.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:    config,
		app:       app,
		snapshots: snapshots,
		registry:  newRegistry(config.MaxSessions),
		metrics:   newMetrics(config.Registry),
		renderer:  render.NewRenderer(render.Config{}),
		stop:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metricsHandler().ServeHTTP)
	s.router = r

	return s
}

// Handler returns the server's HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SessionCount reports the number of attached sessions.
func (s *Server) SessionCount() int {
	return s.registry.len()
}

// ListenAndServe runs the server until Shutdown. The idle-eviction loop
// starts alongside.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:    s.config.Address,
		Handler: s.router,
	}
	go s.evictionLoop()

	Logger().Info("server listening", zap.String("address", s.config.Address))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown detaches every session (saving snapshots) and stops the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	for _, sess := range s.registry.all() {
		sess.Close()
	}

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	if cerr := s.snapshots.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// evictionLoop detaches sessions idle past the configured timeout.
func (s *Server) evictionLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			for _, sess := range s.registry.idle(s.config.IdleTimeout, now) {
				Logger().Info("evicting idle session", zap.String("session", sess.ID()))
				sess.Close()
			}
		case <-s.stop:
			return
		}
	}
}

// detach removes a session from the registry. Called from the session's
// run goroutine during teardown; the snapshot has been saved by then, so
// the session counts as detached and resumable.
func (s *Server) detach(sess *Session) {
	s.registry.remove(sess)
	s.metrics.activeSessions.Dec()
	s.metrics.detachedSessions.Inc()
}

func (s *Server) metricsHandler() http.Handler {
	if gatherer, ok := s.config.Registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// handleIndex renders the app's initial HTML with a throwaway runtime.
// The page carries the client script that attaches over the websocket.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rt := reactive.NewRuntime(ecs.NewStore())
	tpl, _, err := s.app(rt, nil)
	if err != nil {
		Logger().Error("app build failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	rec := &view.Recorder{}
	root, err := view.Spawn(rt, tpl, rec)
	if err != nil {
		Logger().Error("view spawn failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer root.Despawn()

	body, err := s.renderer.ToString(root.Tree())
	if err != nil {
		Logger().Error("render failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, pageShell(body))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.registry.len(),
	})
}

// handleWS upgrades the connection and drives the session until it
// detaches. The handler goroutine becomes the session's run goroutine.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := s.serveConn(r.Context(), conn); err != nil {
		Logger().Warn("session setup failed", zap.Error(err))
		conn.Close()
	}
}

// serveConn performs the handshake, attaches a session, and runs it.
func (s *Server) serveConn(ctx context.Context, conn wsConn) error {
	hello, err := s.readHello(conn)
	if err != nil {
		return err
	}

	sess, err := s.attach(ctx, conn, hello)
	if err != nil {
		return err
	}

	go sess.readLoop()
	sess.run()
	return nil
}

// attach resolves the handshake into a registered session with a mounted
// view tree. Exposed to tests, which drive the session synchronously
// instead of starting the loops.
func (s *Server) attach(ctx context.Context, conn wsConn, hello helloFrame) (*Session, error) {
	var snap *snapshot.Snapshot
	resumed := false
	id := hello.Session
	if id != "" {
		snap, _ = s.snapshots.Load(ctx, id)
		resumed = snap != nil
	}
	if !resumed {
		id = newSessionID()
	}

	sess := newSession(s, id, conn)
	if err := s.registry.add(sess); err != nil {
		sess.sendError(errCodeInternal, err.Error())
		return nil, err
	}
	s.metrics.activeSessions.Inc()
	if resumed {
		s.metrics.reconnects.Inc()
		s.metrics.detachedSessions.Dec()
	}

	if err := sess.send(welcomeFrame{T: frameWelcome, Session: id, Resumed: resumed}); err != nil {
		s.registry.remove(sess)
		s.metrics.activeSessions.Dec()
		return nil, err
	}

	if err := sess.spawn(snap); err != nil {
		sess.sendError(errCodeInternal, "session start failed")
		s.registry.remove(sess)
		s.metrics.activeSessions.Dec()
		return nil, err
	}

	Logger().Info("session attached",
		zap.String("session", id), zap.Bool("resumed", resumed))
	return sess, nil
}

// readHello reads the client's first frame within the handshake window.
func (s *Server) readHello(conn wsConn) (helloFrame, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return helloFrame{}, err
	}
	var hello helloFrame
	if err := json.Unmarshal(msg, &hello); err != nil || hello.T != frameHello {
		return helloFrame{}, ErrBadHandshake
	}
	return hello, nil
}
