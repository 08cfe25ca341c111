package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	RequestIDHeader     = "X-Request-ID"

	maxIDLength = 64
)

func newID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return prefix + "_" + hex.EncodeToString(buf)
}

func GenerateCorrelationID() string { return newID("cor") }

func GenerateRequestID() string { return newID("req") }

// CorrelationIDMiddleware tags each request context with correlation and
// request IDs, reusing sanitized client-supplied values, and echoes them in
// the response headers.
func CorrelationIDMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if logger.config == nil || logger.config.EnableCorrelationIDs {
				correlationID := SanitizeID(r.Header.Get(CorrelationIDHeader))
				if correlationID == "" {
					correlationID = GenerateCorrelationID()
				}
				requestID := SanitizeID(r.Header.Get(RequestIDHeader))
				if requestID == "" {
					requestID = GenerateRequestID()
				}

				ctx = ContextWithIDs(ctx, correlationID, requestID)
				w.Header().Set(CorrelationIDHeader, correlationID)
				w.Header().Set(RequestIDHeader, requestID)
			}
			ctx = context.WithValue(ctx, ServiceKey, "flkv-inspect")

			r = r.WithContext(ctx)
			logger.RequestStart(ctx, r.Method, r.URL.Path, r.UserAgent())
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each completed request with its status and size.
func LoggingMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.RequestEnd(r.Context(), r.Method, r.URL.Path, recorder.status, time.Since(start), recorder.size)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(data []byte) (int, error) {
	n, err := s.ResponseWriter.Write(data)
	s.size += int64(n)
	return n, err
}

func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey).(string)
	return id
}

func ExtractRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// ContextWithIDs stores non-empty IDs in ctx.
func ContextWithIDs(ctx context.Context, correlationID, requestID string) context.Context {
	if correlationID != "" {
		ctx = context.WithValue(ctx, CorrelationIDKey, correlationID)
	}
	if requestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}
	return ctx
}

// ContextWithStore tags ctx with the name of the store an operation targets.
func ContextWithStore(ctx context.Context, store string) context.Context {
	return context.WithValue(ctx, StoreKey, store)
}

// SanitizeID strips control characters that could forge log lines and caps
// the length.
func SanitizeID(id string) string {
	id = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, id)

	if len(id) > maxIDLength {
		id = id[:maxIDLength]
	}
	return id
}
