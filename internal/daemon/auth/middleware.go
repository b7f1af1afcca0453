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

// Package auth gates the gateway behind a password login and stateless,
// cookie-borne access tokens.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	internallog "github.com/tombee/xunlei/internal/log"
)

// Config contains middleware configuration.
type Config struct {
	// CookieName is the cookie carrying the access token.
	CookieName string

	// LoginPath serves the login page and accepts submissions.
	LoginPath string

	// HomePath is where a successful login lands.
	HomePath string

	// PublicPaths are doublestar globs reachable without a token.
	PublicPaths []string

	// SecureCookie marks the cookie Secure, for TLS deployments.
	SecureCookie bool

	// LoginRate and LoginBurst throttle login submissions per client.
	LoginRate  float64
	LoginBurst int

	// Logger for auth decisions.
	Logger *slog.Logger
}

// Middleware enforces authentication and serves the login flow.
type Middleware struct {
	auth    *Authenticator
	config  Config
	limiter *LoginLimiter
	logger  *slog.Logger
}

// NewMiddleware creates a new auth middleware around auth.
func NewMiddleware(auth *Authenticator, cfg Config) *Middleware {
	if cfg.CookieName == "" {
		cfg.CookieName = "access_token"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = internallog.Discard()
	}

	return &Middleware{
		auth:    auth,
		config:  cfg,
		limiter: NewLoginLimiter(cfg.LoginRate, cfg.LoginBurst),
		logger:  internallog.WithComponent(logger, "auth"),
	}
}

// Wrap wraps an http.Handler with authentication. Requests without a valid
// token are redirected to the login path.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.auth.IsAuthRequired() {
			recordDecision("bypass")
			next.ServeHTTP(w, r)
			return
		}

		if r.URL.Path == m.config.LoginPath || m.isPublic(r.URL.Path) {
			recordDecision("public")
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(m.config.CookieName)
		if err != nil || cookie.Value == "" {
			recordDecision("missing")
			m.redirectToLogin(w, r)
			return
		}

		if err := m.auth.VerifyToken(cookie.Value); err != nil {
			recordDecision(reason(err))
			internallog.FromContext(r.Context(), m.logger).Debug("rejected access token",
				slog.String("path", r.URL.Path),
				internallog.Error(err))
			m.redirectToLogin(w, r)
			return
		}

		recordDecision("ok")
		next.ServeHTTP(w, r)
	})
}

// PruneLoop drops login throttling state for clients idle longer than
// maxAge, every interval, until ctx is done.
func (m *Middleware) PruneLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.limiter.Cleanup(maxAge); n > 0 {
				m.logger.Debug("pruned idle login limiters", slog.Int("count", n))
			}
		}
	}
}

// isPublic reports whether path matches a configured public glob.
func (m *Middleware) isPublic(path string) bool {
	for _, pattern := range m.config.PublicPaths {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

func (m *Middleware) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
}

// tokenCookie builds the access cookie. A negative maxAge deletes it.
func (m *Middleware) tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// clientKey identifies a client for login throttling.
func clientKey(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i > 0 {
		addr = addr[:i]
	}
	return strings.Trim(addr, "[]")
}
