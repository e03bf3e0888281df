// Package server exposes the coinwatch core over a REST + websocket API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coinwatch/coinwatch/internal/app"
	"github.com/coinwatch/coinwatch/internal/common"
)

// Server wraps the HTTP server and application reference.
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger
	hub    *streamHub
}

// NewServer creates a new HTTP API server and subscribes its websocket
// hub to snapshot refreshes.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger,
		hub:    newStreamHub(a.Logger),
	}

	a.AddRefreshListener(s.hub.broadcastUpdate)
	go s.hub.run()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.stop()
	return s.server.Shutdown(ctx)
}
