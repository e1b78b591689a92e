// Package server exposes the sync status over HTTP: health, version and the
// stored checkpoints for running or interrupted jobs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
	servermw "github.com/coinsync/coinsync/internal/server/middleware"
)

// StatusStore is the store surface the status endpoints read from.
type StatusStore interface {
	ListCheckpoints(ctx context.Context) (map[string]*core.Checkpoint, error)
	RequestStats(ctx context.Context, job string) ([]core.RequestStats, error)
}

// Server represents the HTTP status server.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	// Timeout overrides for the underlying http.Server. Zero values keep
	// the defaults.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	store  StatusStore
	logger *zap.Logger
}

// New creates a new HTTP server instance.
func New(host string, port int, store StatusStore, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		router: r,
		host:   host,
		port:   port,
		store:  store,
		logger: logger,
	}

	s.registerRoutes()
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = s.httpServer(addr)

	if s.logger != nil {
		s.logger.Info("starting status server", zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("shutting down status server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  timeoutOrDefault(s.ReadTimeout, 10*time.Second),
		WriteTimeout: timeoutOrDefault(s.WriteTimeout, 30*time.Second),
		IdleTimeout:  timeoutOrDefault(s.IdleTimeout, 120*time.Second),
	}
}

func timeoutOrDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
