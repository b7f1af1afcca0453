// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the gateway.
const RequestIDHeader = "X-Request-ID"

// maxInboundRequestIDLen bounds request ids supplied by clients.
const maxInboundRequestIDLen = 128

type contextKey struct{}

type requestScope struct {
	id     string
	logger *slog.Logger
}

// FromContext returns the request-scoped logger stored by HTTPMiddleware,
// or fallback when the context carries none.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if scope, ok := ctx.Value(contextKey{}).(*requestScope); ok {
		return scope.logger
	}
	return fallback
}

// RequestIDFromContext returns the request id stored by HTTPMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	if scope, ok := ctx.Value(contextKey{}).(*requestScope); ok {
		return scope.id
	}
	return ""
}

// HTTPMiddleware logs every request once it completes. It assigns a
// request id, echoes it in the response and makes a request-scoped logger
// available through FromContext.
type HTTPMiddleware struct {
	logger *slog.Logger
}

// NewHTTPMiddleware creates a new HTTP access log middleware.
func NewHTTPMiddleware(logger *slog.Logger) *HTTPMiddleware {
	return &HTTPMiddleware{logger: logger}
}

// Handler wraps next with access logging.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxInboundRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		scope := &requestScope{id: id, logger: WithRequestID(m.logger, id)}
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), contextKey{}, scope)))

		status := rec.statusCode()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		scope.logger.LogAttrs(r.Context(), level, "http request completed",
			slog.String("event", "http_request"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int64("bytes", rec.bytes),
			slog.String("remote", r.RemoteAddr),
			Duration(time.Since(start)),
		)
	})
}

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
