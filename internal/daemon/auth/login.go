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

package auth

import (
	"crypto/subtle"
	_ "embed"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/sha3"

	"github.com/tombee/xunlei/internal/daemon/httputil"
	internallog "github.com/tombee/xunlei/internal/log"
)

// maxLoginBody bounds the login form size.
const maxLoginBody = 64 << 10

//go:embed static/login.html
var loginPage []byte

// LoginPage serves the static login form.
func (m *Middleware) LoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(loginPage)
}

// Login checks the submitted password. On success it sets the access
// cookie and redirects home; otherwise it redirects back to the login page.
func (m *Middleware) Login(w http.ResponseWriter, r *http.Request) {
	logger := internallog.FromContext(r.Context(), m.logger)

	if !m.limiter.Allow(clientKey(r)) {
		recordLogin("throttled")
		logger.Warn("login throttled", slog.String("remote", r.RemoteAddr))
		w.Header().Set("Retry-After", "1")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
	if err := r.ParseForm(); err != nil {
		recordLogin("bad_request")
		http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
		return
	}

	if !m.auth.CheckCredential(r.PostFormValue("password")) {
		recordLogin("rejected")
		logger.Warn("login rejected", slog.String("remote", r.RemoteAddr))
		http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
		return
	}

	token, err := m.auth.IssueToken()
	if err != nil {
		recordLogin("error")
		logger.Error("failed to issue token", internallog.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	recordLogin("accepted")
	logger.Info("login accepted", slog.String("remote", r.RemoteAddr))
	http.SetCookie(w, m.tokenCookie(token, int(TokenTTL.Seconds())))
	http.Redirect(w, r, m.config.HomePath, http.StatusSeeOther)
}

// Logout clears the access cookie and returns to the login page.
func (m *Middleware) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, m.tokenCookie("", -1))
	http.Redirect(w, r, m.config.LoginPath, http.StatusSeeOther)
}

// credentialsEqual compares fixed-size digests in constant time so the
// comparison does not leak the credential length.
func credentialsEqual(submitted, configured string) bool {
	a := sha3.Sum512([]byte(submitted))
	b := sha3.Sum512([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
