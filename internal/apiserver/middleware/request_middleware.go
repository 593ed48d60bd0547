/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// The file implements request middleware for generating request IDs, logging requests and recording metrics.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/health"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/apiserver/metrics"
	"github.com/llm-d-incubation/diagnosis-gateway/internal/util/logging"
)

type contextKey string

const (
	RequestIDHeader            = "X-Request-ID"
	requestIDKey    contextKey = "requestID"

	unmatchedPath = "unmatched"

	maxRequestIDLength = 128
)

func RequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip /metrics and /health endpoints to avoid noise in logs and metrics
		if r.URL.Path == metrics.MetricsPath || r.URL.Path == health.HealthPath {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		metrics.RecordRequestStart()

		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		// Create request logger with request ID
		logger := klog.FromContext(r.Context()).WithValues("requestID", requestID)
		ctx := klog.NewContext(r.Context(), logger)
		ctx = WithRequestID(ctx, requestID)
		req := r.WithContext(ctx)

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		logger.V(logging.TRACE).Info("incoming request",
			"method", r.Method,
			"path", r.URL.Path,
			"remoteAddr", r.RemoteAddr,
		)

		defer func() {
			duration := time.Since(start)
			status := strconv.Itoa(rw.statusCode)
			metrics.RecordRequestFinish(r.Method, routePath(req), status, duration.Seconds())
			logger.V(logging.DEBUG).Info("request finished",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration", duration,
			)
		}()

		next.ServeHTTP(rw, req)
	})
}

// validRequestID accepts caller IDs of printable ASCII without spaces, up to maxRequestIDLength bytes.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

// routePath returns the matched mux pattern without its method, keeping the path label bounded.
func routePath(r *http.Request) string {
	if r.Pattern == "" {
		return unmatchedPath
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID set by RequestMiddleware.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}
