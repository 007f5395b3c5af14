package control

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/relay"
)

//go:embed index.html
var indexHTML []byte

// KeepAliveBody is returned for every path without a dedicated handler.
const KeepAliveBody = "App is alive!"

// Relay is the subset of *relay.Relay used by WebSocket front ends.
type Relay interface {
	Attach(fe relay.FrontEnd)
	Detach(fe relay.FrontEnd)
	HandleInbound(fe relay.FrontEnd, msg relay.Inbound)
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Listen string
	Token  string
	Relay  Relay
	// Status returns the payload for /api/status.
	Status func(ctx context.Context) any
	Logger *slog.Logger
}

// Server is the keep-alive HTTP and WebSocket listener.
type Server struct {
	bind   string
	relay  Relay
	status func(ctx context.Context) any
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewServer builds a server. It returns nil when no listen address is set.
func NewServer(opts ServerOptions) *Server {
	bind := strings.TrimSpace(opts.Listen)
	if bind == "" {
		return nil
	}
	srv := &Server{
		bind:   bind,
		relay:  opts.Relay,
		status: opts.Status,
		logger: logging.NewComponentLogger(opts.Logger, "control-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/api/status", authMiddleware(opts.Token, srv.handleStatus))
	mux.HandleFunc("/", srv.handleRoot)

	// WebSocket connections are long lived; only header reads are bounded.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("control server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "server_listening"),
	)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down. WebSocket connections are hijacked and are
// closed by the relay instead.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(indexHTML)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(KeepAliveBody))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
