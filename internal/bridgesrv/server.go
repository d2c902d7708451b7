// Package bridgesrv is the websocket listener the plugin connects to. It
// binds the first free port of the configured range, serves the peer through
// the bridge lifecycle and exposes health, state and metrics endpoints.
package bridgesrv

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/fmcp-bridge/internal/bridge"
	"github.com/gaspardpetit/fmcp-bridge/internal/config"
	"github.com/gaspardpetit/fmcp-bridge/internal/logx"
	"github.com/gaspardpetit/fmcp-bridge/internal/serverstate"
)

// Server serves one bridge over websocket.
type Server struct {
	cfg    config.BridgeConfig
	bridge *bridge.Bridge
	state  *serverstate.Tracker
	gather prometheus.Gatherer
	log    zerolog.Logger

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	port int
}

// New constructs a Server. A nil gatherer serves the default registry on
// /metrics.
func New(cfg config.BridgeConfig, b *bridge.Bridge, st *serverstate.Tracker, gather prometheus.Gatherer) *Server {
	if st == nil {
		st = serverstate.NewTracker(nil)
	}
	if gather == nil {
		gather = prometheus.DefaultGatherer
	}
	s := &Server{cfg: cfg, bridge: b, state: st, gather: gather, log: logx.Component("bridgesrv")}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the HTTP routes of the listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleRoot)
	r.Get("/ws", s.handlePeer)
	r.Get("/healthz", s.handleHealth)
	r.Group(func(g chi.Router) {
		if len(s.cfg.AllowedOrigins) > 0 {
			g.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.cfg.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			}))
		}
		g.Get("/api/state", s.handleState)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	return r
}

// Listen binds the first free port between Port and PortMax and publishes it
// to the bridge and the state store.
func (s *Server) Listen(ctx context.Context) (int, error) {
	ln, port, err := listenRange(ctx, s.cfg.Host, s.cfg.Port, s.cfg.PortMax)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.ln, s.port = ln, port
	s.mu.Unlock()
	s.bridge.SetPort(port)
	s.state.Update(func(st *serverstate.State) { st.Port = port })
	return port, nil
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Serve accepts connections until Shutdown. Listen must have succeeded.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("bridgesrv: Serve called before Listen")
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("plugin bridge listening on ws://" + ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections. The attached peer is hijacked and
// untouched; closing the bridge is what drops it.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// OnBridgeChange mirrors a bridge snapshot into the state store.
func (s *Server) OnBridgeChange(snap bridge.Snapshot) {
	s.state.Update(func(st *serverstate.State) {
		st.PeerConnected = snap.Connected
		st.PeerReady = snap.Ready
		st.PendingRequests = len(snap.Pending)
		if snap.Closed {
			st.Draining = true
		}
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if isUpgrade(r) {
		s.handlePeer(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(Banner))
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	if len(s.cfg.AllowedOrigins) == 0 {
		// Figma plugins connect with a "null" origin.
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowedOrigins}
}

func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request) {
	if s.state.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	c, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	if s.cfg.MaxFrameBytes != 0 {
		c.SetReadLimit(s.cfg.MaxFrameBytes)
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := s.log.With().Str("remote", r.RemoteAddr).Logger()
	peer := &wsPeer{conn: c}
	go heartbeat(ctx, c, s.cfg.Heartbeat, s.cfg.HeartbeatTimeout, log)

	err = s.bridge.Serve(ctx, peer)
	switch {
	case err == nil:
		log.Debug().Msg("peer closed")
	case errors.Is(err, bridge.ErrPeerBusy), errors.Is(err, bridge.ErrClosed):
		log.Warn().Err(err).Msg("peer refused")
	default:
		log.Info().Err(err).Msg("peer connection ended")
	}
	_ = c.CloseNow()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.state.Load()
	code := http.StatusOK
	if st.Draining {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":        st.Status,
		"peerConnected": s.bridge.IsConnected(),
		"port":          s.Port(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  s.state.Load(),
		"bridge": s.bridge.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
