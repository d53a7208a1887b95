// Package api provides the HTTP driving adapter: the run endpoint, a
// health check and bearer authentication.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Limits and timeouts.
const (
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes = 1 << 20

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address (default: :8000).
	Addr string

	// APIKeys are the accepted bearer tokens.
	APIKeys []string

	// AuthDisabled turns off bearer authentication.
	AuthDisabled bool

	// RequestTimeout bounds one run. Zero disables it.
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 30s).
	ShutdownTimeout time.Duration

	// Version is reported by the health endpoint.
	Version string
}

// Server serves the question-answering API.
type Server struct {
	qa      driving.QAService
	cfg     Config
	started time.Time
}

// NewServer creates a server for qa.
func NewServer(qa driving.QAService, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{qa: qa, cfg: cfg, started: time.Now()}
}

// Handler returns the routed handler with logging and authentication.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	run := s.requireBearer(http.HandlerFunc(s.handleRun))
	mux.Handle("POST /hackrx/run", run)
	mux.Handle("POST /api/v1/hackrx/run", run)
	mux.HandleFunc("GET /health", s.handleHealth)
	return logRequests(mux)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully,
// letting in-flight runs finish within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.cfg.AuthDisabled {
		logger.Warn("Bearer authentication is disabled")
	}
	logger.Info("API listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
