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

// Package api assembles the gateway's HTTP routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tombee/xunlei/internal/daemon/auth"
	"github.com/tombee/xunlei/internal/daemon/httputil"
	internallog "github.com/tombee/xunlei/internal/log"
	"github.com/tombee/xunlei/internal/supervisor"
	"github.com/tombee/xunlei/internal/tracing"
)

// EngineStatus reports the supervisor state for the health endpoint.
type EngineStatus interface {
	State() supervisor.State
}

// RouterConfig holds the handlers the router mounts.
type RouterConfig struct {
	// Version is reported by the health endpoint.
	Version string

	// Auth guards everything except the login flow and the legacy shim.
	Auth *auth.Middleware

	// Gateway receives every request no other route claims.
	Gateway http.Handler

	// HomePath is the redirect target for the root and legacy home paths.
	HomePath string

	// MetricsPath mounts Metrics behind auth when both are set.
	MetricsPath string
	Metrics     http.Handler

	// Engine is optional; without it health does not report engine state.
	Engine EngineStatus

	Logger *slog.Logger
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
}

// NewRouter builds the route table:
//
//	GET  /login            login page
//	POST /login            credential submission
//	GET  /logout           clear the token cookie
//	GET  /webman/login.cgi legacy stub, unauthenticated
//	GET  /healthz          liveness, unauthenticated
//	GET  /, /webman/, /webman/3rdparty/pan-xunlei-com  redirect home
//	*    everything else   auth, then the CGI gateway
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = internallog.Discard()
	}

	r := chi.NewRouter()
	r.Use(internallog.NewHTTPMiddleware(logger).Handler)
	r.Use(chimw.Recoverer)
	r.Use(tracing.HTTPMiddleware)

	r.Get("/login", cfg.Auth.LoginPage)
	r.Post("/login", cfg.Auth.Login)
	r.Get("/logout", cfg.Auth.Logout)
	r.Get("/webman/login.cgi", handleSynoLogin)
	r.Get("/healthz", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Wrap)

		home := redirectHandler(cfg.HomePath)
		r.Get("/", home)
		r.Get("/webman/", home)
		r.Get("/webman/3rdparty/pan-xunlei-com", home)

		if cfg.MetricsPath != "" && cfg.Metrics != nil {
			r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
		}

		r.Handle("/*", cfg.Gateway)
	})

	return r
}

// handleSynoLogin answers the web UI's DSM session check.
func handleSynoLogin(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"SynoToken": ""})
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Version: cfg.Version}
		status := http.StatusOK
		if cfg.Engine != nil {
			st := cfg.Engine.State()
			resp.Engine = st.String()
			if st == supervisor.StateStopped {
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}

func redirectHandler(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}
