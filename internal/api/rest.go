package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"flkv/internal/logging"
	"flkv/internal/monitoring"
	"flkv/internal/storage"

	"github.com/gorilla/mux"
)

const (
	defaultListLimit = 100
	maxListLimit     = 10000
)

// RESTHandler serves the inspection API for a single open store.
type RESTHandler struct {
	storage     storage.Engine
	logger      *logging.Logger
	monitoring  *monitoring.MonitoringService
	maxBodySize int64
	started     time.Time
}

// NewRESTHandler creates a handler over engine. monitoringService may be nil.
// A non-positive maxBodySize disables the request body limit.
func NewRESTHandler(engine storage.Engine, logger *logging.Logger, monitoringService *monitoring.MonitoringService, maxBodySize int64) *RESTHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RESTHandler{
		storage:     engine,
		logger:      logger,
		monitoring:  monitoringService,
		maxBodySize: maxBodySize,
		started:     time.Now(),
	}
}

// Request/Response types for JSON handling. Byte fields travel as base64.

type PutRequest struct {
	Value []byte `json:"value"`
}

type PutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type GetResponse struct {
	Found bool   `json:"found"`
	Value []byte `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type KeyValue struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type ListResponse struct {
	Items   []KeyValue `json:"items"`
	Count   int        `json:"count"`
	HasMore bool       `json:"has_more"`
	Error   string     `json:"error,omitempty"`
}

// BatchOp is one staged operation. Op is "put" or "delete".
type BatchOp struct {
	Op    string `json:"op"`
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

type BatchRequest struct {
	Sync bool      `json:"sync"`
	Ops  []BatchOp `json:"ops"`
}

type BatchResponse struct {
	Success bool   `json:"success"`
	Applied int    `json:"applied"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Healthy       bool   `json:"healthy"`
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFor maps the storage error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrClosed), errors.Is(err, storage.ErrInvalidHandle):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// PUT /api/v1/kv/{key}
func (h *RESTHandler) PutKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["key"]

	if key == "" {
		h.logger.WarnContext(ctx, "PUT request with empty key")
		h.writeErrorResponse(w, http.StatusBadRequest, "Key cannot be empty")
		return
	}

	var req PutRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.DebugContext(ctx, "Processing PUT request",
		"key", key,
		"value_length", len(req.Value),
	)

	if err := h.storage.Put([]byte(key), req.Value); err != nil {
		h.logger.WithError(err).WithField("key", key).WarnContext(ctx, "Failed to put key")
		h.writeJSONResponse(w, statusFor(err), PutResponse{Error: err.Error()})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, PutResponse{Success: true})
}

// GET /api/v1/kv/{key}
func (h *RESTHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Key cannot be empty")
		return
	}

	h.logger.DebugContext(r.Context(), "Processing GET request", "key", key)

	value, err := h.storage.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeJSONResponse(w, http.StatusNotFound, GetResponse{Found: false})
			return
		}

		h.logger.WithError(err).WithField("key", key).Error("Failed to get key")
		h.writeJSONResponse(w, statusFor(err), GetResponse{Error: err.Error()})
		return
	}

	if value == nil {
		value = []byte{}
	}
	h.writeJSONResponse(w, http.StatusOK, GetResponse{Found: true, Value: value})
}

// DELETE /api/v1/kv/{key}
func (h *RESTHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Key cannot be empty")
		return
	}

	h.logger.DebugContext(r.Context(), "Processing DELETE request", "key", key)

	if err := h.storage.Delete([]byte(key)); err != nil {
		h.logger.WithError(err).WithField("key", key).Error("Failed to delete key")
		h.writeJSONResponse(w, statusFor(err), DeleteResponse{Error: err.Error()})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, DeleteResponse{Success: true})
}

// GET /api/v1/kv?prefix={prefix}&limit={limit}
func (h *RESTHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	prefix := query.Get("prefix")

	limit := defaultListLimit
	if s := query.Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit %q", s))
			return
		}
		limit = min(l, maxListLimit)
	}

	h.logger.DebugContext(r.Context(), "Processing LIST request",
		"prefix", prefix,
		"limit", limit,
	)

	// one extra item tells us whether there are more
	items, err := h.storage.List([]byte(prefix), limit+1)
	if err != nil {
		h.logger.WithError(err).WithField("prefix", prefix).Error("Failed to list keys")
		h.writeJSONResponse(w, statusFor(err), ListResponse{Items: []KeyValue{}, Error: err.Error()})
		return
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	out := make([]KeyValue, len(items))
	for i, item := range items {
		out[i] = KeyValue{Key: item.Key, Value: item.Value}
	}

	h.writeJSONResponse(w, http.StatusOK, ListResponse{
		Items:   out,
		Count:   len(out),
		HasMore: hasMore,
	})
}

// POST /api/v1/batch
func (h *RESTHandler) ApplyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	batch := storage.NewBatch()
	for i, op := range req.Ops {
		switch op.Op {
		case "put":
			batch.Put(op.Key, op.Value)
		case "delete":
			batch.Delete(op.Key)
		default:
			h.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Unknown op %q at index %d", op.Op, i))
			return
		}
	}

	h.logger.DebugContext(ctx, "Processing batch request",
		"count", batch.Len(),
		"bytes", batch.Size(),
		"sync", req.Sync,
	)

	if err := h.storage.Write(batch, req.Sync); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to apply batch", "count", batch.Len())
		h.writeJSONResponse(w, statusFor(err), BatchResponse{Error: err.Error()})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, BatchResponse{Success: true, Applied: batch.Len()})
}

// POST /api/v1/flush
func (h *RESTHandler) Flush(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, "flush", h.storage.Flush)
}

// POST /api/v1/compact
func (h *RESTHandler) Compact(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, "compact", h.storage.Compact)
}

func (h *RESTHandler) maintenance(w http.ResponseWriter, r *http.Request, operation string, fn func() error) {
	start := time.Now()
	err := fn()
	h.logger.InfoContext(r.Context(), "Maintenance finished",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
		"success", err == nil,
	)

	if err != nil {
		h.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /health
func (h *RESTHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Processing health check request")

	h.writeJSONResponse(w, http.StatusOK, HealthResponse{
		Healthy:       true,
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().Unix(),
	})
}

// GET /api/v1/stats
func (h *RESTHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Processing stats request")
	h.writeJSONResponse(w, http.StatusOK, h.storage.Stats())
}

// Helper methods

func (h *RESTHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := r.Body
	if h.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		h.logger.WarnContext(r.Context(), "Request with invalid JSON", "error", err.Error())
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON request")
		return false
	}
	return true
}

func (h *RESTHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *RESTHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    statusCode,
		Message: http.StatusText(statusCode),
	})
}
