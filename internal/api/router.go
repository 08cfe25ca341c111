package api

import (
	"net/http"

	"flkv/internal/logging"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all REST API routes
func (h *RESTHandler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(logging.CorrelationIDMiddleware(h.logger))
	router.Use(logging.LoggingMiddleware(h.logger))
	if h.monitoring != nil {
		router.Use(h.monitoring.MonitoringMiddleware)
	}

	v1 := router.PathPrefix("/api/v1").Subrouter()

	// keys may contain slashes
	v1.HandleFunc("/kv/{key:.+}", h.PutKey).Methods(http.MethodPut)
	v1.HandleFunc("/kv/{key:.+}", h.GetKey).Methods(http.MethodGet)
	v1.HandleFunc("/kv/{key:.+}", h.DeleteKey).Methods(http.MethodDelete)
	v1.HandleFunc("/kv", h.ListKeys).Methods(http.MethodGet)

	v1.HandleFunc("/batch", h.ApplyBatch).Methods(http.MethodPost)
	v1.HandleFunc("/flush", h.Flush).Methods(http.MethodPost)
	v1.HandleFunc("/compact", h.Compact).Methods(http.MethodPost)
	v1.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.monitoring != nil {
		router.Handle("/metrics", h.monitoring.MetricsHandler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)

	return router
}

// RootHandler lists the available endpoints.
func (h *RESTHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":  "GET /health",
		"stats":   "GET /api/v1/stats",
		"put":     "PUT /api/v1/kv/{key}",
		"get":     "GET /api/v1/kv/{key}",
		"delete":  "DELETE /api/v1/kv/{key}",
		"list":    "GET /api/v1/kv?prefix={prefix}&limit={limit}",
		"batch":   "POST /api/v1/batch",
		"flush":   "POST /api/v1/flush",
		"compact": "POST /api/v1/compact",
	}
	if h.monitoring != nil {
		endpoints["metrics"] = "GET /metrics"
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"service":     "flkv inspection API",
		"api_version": "v1",
		"endpoints":   endpoints,
	})
}
