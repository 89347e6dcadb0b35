package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/pkg/types"
)

// Config holds the dashboard's HTTP surface settings.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server runs the dashboard's HTTP + WebSocket surface and a live tap of
// the event bus, broadcasting every event it sees to connected clients.
// Grounded on internal/api/server.go and internal/api/handlers.go.
type Server struct {
	cfg      Config
	provider Provider
	hub      *Hub
	bus      *bus.Bus
	now      func() time.Time
	httpSrv  *http.Server
	logger   *slog.Logger
}

// NewServer builds a dashboard server. now defaults to time.Now if nil.
func NewServer(cfg Config, provider Provider, b *bus.Bus, now func() time.Time, logger *slog.Logger) *Server {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "observability_server")

	hub := NewHub(logger)
	s := &Server{cfg: cfg, provider: provider, hub: hub, bus: b, now: now, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Name satisfies engine.Service.
func (s *Server) Name() string { return "observability_server" }

// Tasks satisfies engine.Service.
func (s *Server) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return s.Run(ctx) }}
}

// Run starts the hub, the bus tap, and the HTTP server. Blocks until ctx
// is cancelled, then gracefully shuts the HTTP server down.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	sub := s.bus.Subscribe(bus.All())
	defer sub.Unsubscribe()
	go s.tapEvents(ctx, sub.Events())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard server starting", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("stopping dashboard server")
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) tapEvents(ctx context.Context, events <-chan types.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.BroadcastEvent(DashboardEvent{Type: string(ev.Type), Timestamp: ev.Timestamp, Data: ev})
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := BuildSnapshot(s.provider, s.now())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("encode snapshot", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), s.cfg.AllowedOrigins, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(s.hub, conn)

	snap := BuildSnapshot(s.provider, s.now())
	data, err := json.Marshal(DashboardEvent{Type: "snapshot", Timestamp: snap.Timestamp, Data: snap})
	if err != nil {
		s.logger.Error("marshal initial snapshot", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		s.logger.Warn("failed to send initial snapshot to client")
	}
}

func isOriginAllowed(origin string, allowed []string, reqHost string) bool {
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(allowed) > 0 {
		for _, a := range allowed {
			u, err := url.Parse(a)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
