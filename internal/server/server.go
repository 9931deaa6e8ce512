// Package server implements the remote progress store: a small JSON API in
// front of the users_progress table
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/loggy"
)

// Server serves the progress API
type Server struct {
	repo        Repository
	environment string
	logger      *loggy.Logger
	now         func() time.Time
}

// New creates a progress API server over repo
func New(repo Repository, environment string, logger *loggy.Logger) *Server {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Server{
		repo:        repo,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

// Router returns the HTTP handler of the progress API
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware, corsMiddleware)

	r.HandleFunc("/api/progress", s.handleGetProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", s.handleUpsertProgress).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", s.handleDeleteProgress).Methods(http.MethodDelete)
	r.HandleFunc("/api/env-check", s.handleEnvCheck).Methods(http.MethodGet)
	r.PathPrefix("/api/").HandlerFunc(handlePreflight).Methods(http.MethodOptions)

	r.MethodNotAllowedHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	return r
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Progress server listening", "addr", cfg.Addr, "environment", s.environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving progress API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down progress API: %w", err)
	}
	s.logger.Info("Progress server stopped")
	return nil
}
