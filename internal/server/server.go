// Package server wraps the HTTP server lifecycle: listen, serve, and drain
// on shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"context-engine/internal/common/logging"
)

// Server hosts the engine's HTTP API.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// New creates a server for the given handler and port.
func New(handler http.Handler, port string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener closes. It returns nil on a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening",
		logging.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
