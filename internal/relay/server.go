package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes a Hub over HTTP.
//
// Routes:
//
//	GET /ws/{doc}   websocket upgrade; doc matches [A-Za-z0-9_-]+
//	GET /healthz    200 when the hub's dependencies answer
//	GET /metrics    Prometheus text format
type Server struct {
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	health   func(context.Context) error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHealthCheck sets the probe behind /healthz, typically the store's
// Ping.
func WithHealthCheck(fn func(context.Context) error) ServerOption {
	return func(s *Server) { s.health = fn }
}

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithCheckOrigin overrides the websocket origin check. The default
// accepts any origin.
func WithCheckOrigin(fn func(*http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer builds the router for hub. The hub's Run loop must be started
// separately.
func NewServer(hub *Hub, opts ...ServerOption) *Server {
	s := &Server{
		hub:    hub,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws/{doc:[A-Za-z0-9_-]+}", s.handleWebsocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", hub.Metrics().Handler()).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["doc"]

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Warn("websocket upgrade failed", "doc", docID, "error", err)
		return
	}

	c := newConn(s.hub, docID, ws)
	if !s.hub.register(c) {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay stopping"))
		ws.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			status, code = err.Error(), http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
