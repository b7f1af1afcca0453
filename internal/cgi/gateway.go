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

// Package cgi bridges HTTP requests to a CGI executable: one child process
// per request, environment in, byte stream out.
package cgi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/xunlei/internal/daemon/httputil"
	internallog "github.com/tombee/xunlei/internal/log"
	xerrors "github.com/tombee/xunlei/pkg/errors"
)

const tracerName = "github.com/tombee/xunlei/internal/cgi"

// Config configures a Gateway.
type Config struct {
	// StaticEnv is copied into every environment before request variables.
	StaticEnv map[string]string

	// Meta describes the gateway to the child.
	Meta ServerMeta

	// Logger for dispatch failures.
	Logger *slog.Logger
}

// Gateway dispatches requests to a Runner. It is safe for concurrent use;
// dispatches share nothing but the read-only static environment.
type Gateway struct {
	runner Runner
	static map[string]string
	meta   ServerMeta
	logger *slog.Logger
	tracer trace.Tracer
}

// NewGateway creates a Gateway around runner.
func NewGateway(runner Runner, cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = internallog.Discard()
	}
	return &Gateway{
		runner: runner,
		static: cfg.StaticEnv,
		meta:   cfg.Meta,
		logger: internallog.WithComponent(logger, "cgi"),
		tracer: otel.Tracer(tracerName),
	}
}

// SetPort replaces the SERVER_PORT reported to the child. Call it once the
// listener is bound and before the gateway serves.
func (g *Gateway) SetPort(port string) {
	g.meta.Port = port
}

// Dispatch runs the CGI executable for req and parses its output.
// Errors are *errors.SpawnError, *errors.IOError or *errors.ProtocolError.
func (g *Gateway) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	_, span := g.tracer.Start(ctx, "cgi.dispatch",
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.Int("cgi.request.body_size", len(req.Body)),
		))
	defer span.End()

	env := Build(req, g.static, g.meta)
	internallog.Trace(internallog.FromContext(ctx, g.logger), "cgi environment",
		slog.Any("env", env.List()))

	out, err := g.runner.Run(&Invocation{Env: env, Body: req.Body})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, xerrors.Classify(err))
		return nil, err
	}

	resp, err := ParseResponse(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, xerrors.Classify(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.Status),
		attribute.Int("cgi.response.body_size", len(resp.Body)),
	)
	return resp, nil
}

// ServeHTTP implements http.Handler. Failures become a 502 with a JSON
// body; they never escape the request.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := internallog.FromContext(r.Context(), g.logger)
	requestID := internallog.RequestIDFromContext(r.Context())

	req, err := NewRequest(r)
	if err != nil {
		observeDispatch("bad_request", start)
		logger.Warn("failed to read request body", slog.String("path", r.URL.Path), internallog.Error(err))
		httputil.WriteErrorWithID(w, http.StatusBadRequest, "failed to read request body", requestID)
		return
	}

	resp, err := g.Dispatch(r.Context(), req)
	if err != nil {
		kind := xerrors.Classify(err)
		observeDispatch(kind, start)
		logger.Error("cgi dispatch failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", kind),
			internallog.Error(err))
		httputil.WriteErrorWithID(w, http.StatusBadGateway, "bad gateway", requestID)
		return
	}

	h := w.Header()
	for _, f := range resp.Header {
		h.Add(f.Name, f.Value)
	}
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Debug("client went away while writing response", internallog.Error(err))
	}
	observeDispatch("ok", start)
}
