// Package monitoring exports Prometheus metrics for a served store and the
// HTTP requests made against it.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flkv/internal/storage"
)

const namespace = "flkv"

// MonitoringService owns a private registry so several services can coexist
// in one process.
type MonitoringService struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMonitoringService registers request metrics, Go runtime metrics and,
// when engine is non-nil, a collector that reads the engine counters on
// every scrape.
func NewMonitoringService(engine storage.Engine) *MonitoringService {
	ms := &MonitoringService{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}

	ms.registry.MustRegister(
		ms.requests,
		ms.duration,
		ms.inFlight,
		collectors.NewGoCollector(),
	)
	if engine != nil {
		ms.registry.MustRegister(newEngineCollector(engine))
	}

	return ms
}

func (ms *MonitoringService) Registry() *prometheus.Registry {
	return ms.registry
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func (ms *MonitoringService) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{})
}

// MonitoringMiddleware records every request under its mux route template so
// that keys never become label values.
func (ms *MonitoringService) MonitoringMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ms.inFlight.Inc()
		defer ms.inFlight.Dec()

		wrapped := &monitoringResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		ms.requests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		ms.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}
