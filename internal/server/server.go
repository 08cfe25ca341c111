// Package server runs the inspection API in the foreground until it is
// interrupted.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flkv/internal/config"
	"flkv/internal/logging"
	"flkv/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Server exposes a store over HTTP. The store stays owned by the caller;
// Shutdown flushes it but does not close it.
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	storage    storage.Engine
	httpServer *HTTPServer
	startTime  time.Time
}

func NewServer(cfg *config.Config, engine storage.Engine, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithField("component", "server")

	return &Server{
		config:     cfg,
		logger:     logger,
		storage:    engine,
		httpServer: NewHTTPServer(&cfg.Inspect, engine, logger),
		startTime:  time.Now(),
	}
}

// Run listens on the configured inspect address and serves until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Inspect.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Inspect.Addr(), err)
	}
	return s.Serve(ctx, l)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	s.logger.Info("Server started successfully", "address", l.Addr().String())

	select {
	case err := <-errChan:
		s.logger.Error("Server encountered an error", "error", err.Error())
		return err
	case sig := <-sigChan:
		s.logger.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("Context cancelled")
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests, waits for in-flight ones and flushes
// the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop HTTP server", "error", err.Error())
		errs = append(errs, err)
	}
	if err := s.storage.Flush(); err != nil {
		s.logger.Error("Failed to flush storage engine", "error", err.Error())
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		s.logger.Info("Server shutdown completed", "uptime", s.Uptime().String())
	}
	return errors.Join(errs...)
}

func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
