// Package middleware provides the HTTP middleware chain for the context
// engine's API surface.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"context-engine/internal/common/logging"
)

// RequestIDHeader carries the request id back to the caller and is honored
// on the way in so upstream proxies can correlate logs.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging assigns every request a UUID, stores it in the request
// context for downstream log correlation, and logs method, path, status and
// duration on completion.
func RequestLogging(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), "request_id", requestID) //nolint:staticcheck

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("HTTP request",
				logging.String("request_id", requestID),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rec.status),
				logging.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recovery turns handler panics into 500 responses instead of dropping the
// connection.
func Recovery(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Handler panicked", nil,
						logging.String("path", r.URL.Path),
						logging.Any("panic", rec),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
