package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driving"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	flowService driving.FlowService
	authAdapter driven.AuthAdapter
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
	Logger  *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, flowService driving.FlowService, authAdapter driven.AuthAdapter) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		logger:      cfg.Logger,
		flowService: flowService,
		authAdapter: authAdapter,
	}

	s.setupRoutes()

	// CORS wraps the whole router so pre-flight OPTIONS succeeds on every
	// route; request IDs wrap CORS so even pre-flights are logged.
	handler := RequestID(cfg.Logger)(CORS(s.router))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	maintenance := NewMaintenanceMiddleware(s.authAdapter, driven.ScopeMaintenance)

	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// OAuth flow endpoints (public: the plugin and the provider redirect
	// hit these directly)
	s.router.HandleFunc("GET /oauth/begin", s.handleBegin)
	s.router.HandleFunc("GET /oauth/callback", s.handleCallback)
	s.router.HandleFunc("GET /oauth/poll", s.handlePoll)
	s.router.HandleFunc("GET /oauth/refresh", s.handleRefresh)

	// Maintenance endpoints (token-protected)
	s.router.Handle("POST /admin/sweep",
		maintenance.Require(http.HandlerFunc(s.handleSweep)))
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
