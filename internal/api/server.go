package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketpulse/internal/api/health"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr        string
	ServiceName string
	Version     string
	Symbol      string

	// Stream serves the dashboard websocket at /stream when set
	Stream http.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, healthHandler *health.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        addrOrDefault(cfg.Addr),
			Handler:     Routes(cfg, healthHandler, log),
			ReadTimeout: 10 * time.Second,
			// no WriteTimeout: /stream connections are long-lived
			IdleTimeout: 60 * time.Second,
		},
		log: log,
	}
}

// Routes builds the HTTP mux
func Routes(cfg ServerConfig, healthHandler *health.Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Kubernetes probes
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)

	mux.Handle("/metrics", metrics.Handler())

	if cfg.Stream != nil {
		mux.Handle("/stream", cfg.Stream)
		log.Infow("Dashboard stream registered", "path", "/stream")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"symbol":  cfg.Symbol,
			"status":  "running",
		})
	})

	return mux
}

func addrOrDefault(addr string) string {
	if addr == "" {
		return ":8080"
	}
	return addr
}

// Start begins listening for HTTP requests.
// Blocks until server is stopped or encounters an error.
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Infow("HTTP server stopped")
	return nil
}
