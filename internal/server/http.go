package server

import (
	"context"
	"net"
	"net/http"

	"flkv/internal/api"
	"flkv/internal/config"
	"flkv/internal/logging"
	"flkv/internal/monitoring"
	"flkv/internal/storage"
)

// HTTPServer serves the inspection API for one store.
type HTTPServer struct {
	config      *config.InspectConfig
	logger      *logging.Logger
	restHandler *api.RESTHandler
	server      *http.Server
}

func NewHTTPServer(cfg *config.InspectConfig, engine storage.Engine, logger *logging.Logger) *HTTPServer {
	var monitoringService *monitoring.MonitoringService
	if cfg.EnableMetrics {
		monitoringService = monitoring.NewMonitoringService(engine)
	}
	restHandler := api.NewRESTHandler(engine, logger, monitoringService, cfg.MaxBodySize)

	return &HTTPServer{
		config:      cfg,
		logger:      logger,
		restHandler: restHandler,
		server: &http.Server{
			Handler:      restHandler.SetupRoutes(),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Serve accepts connections on l until Stop is called. It returns
// http.ErrServerClosed after a graceful stop, including one that happened
// before Serve was reached.
func (s *HTTPServer) Serve(l net.Listener) error {
	s.logger.Info("Starting HTTP server",
		"address", l.Addr().String(),
		"service", "http",
	)

	return s.server.Serve(l)
}

// Stop stops the HTTP server gracefully
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
