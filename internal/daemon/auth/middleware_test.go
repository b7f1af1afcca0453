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
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homePath = "/webman/3rdparty/pan-xunlei-com/index.cgi/"

func newTestMiddleware(credential string) (*Middleware, *Authenticator, *fakeClock) {
	a, clock := newTestAuthenticator(credential)
	m := NewMiddleware(a, Config{
		CookieName:  "access_token",
		LoginPath:   "/login",
		HomePath:    homePath,
		PublicPaths: []string{"/js/*.js"},
		LoginRate:   1,
		LoginBurst:  3,
	})
	return m, a, clock
}

// reached wraps a handler that records whether it was invoked.
func reached(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestWrap_BypassWithoutCredential(t *testing.T) {
	m, _, _ := newTestMiddleware("")

	var called bool
	rec := httptest.NewRecorder()
	m.Wrap(reached(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, homePath, nil))

	assert.True(t, called, "request without cookie must reach the gateway when no credential is set")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWrap_Enforcement(t *testing.T) {
	tests := []struct {
		name       string
		cookie     func(t *testing.T, a *Authenticator, clock *fakeClock) *http.Cookie
		wantCalled bool
	}{
		{
			name:   "no cookie",
			cookie: func(*testing.T, *Authenticator, *fakeClock) *http.Cookie { return nil },
		},
		{
			name: "empty cookie",
			cookie: func(*testing.T, *Authenticator, *fakeClock) *http.Cookie {
				return &http.Cookie{Name: "access_token", Value: ""}
			},
		},
		{
			name: "expired token",
			cookie: func(t *testing.T, a *Authenticator, clock *fakeClock) *http.Cookie {
				token, err := a.IssueToken()
				require.NoError(t, err)
				clock.t = clock.t.Add(TokenTTL + time.Minute)
				return &http.Cookie{Name: "access_token", Value: token}
			},
		},
		{
			name: "tampered token",
			cookie: func(t *testing.T, a *Authenticator, _ *fakeClock) *http.Cookie {
				token, err := a.IssueToken()
				require.NoError(t, err)
				parts := strings.Split(token, ".")
				parts[2] = strings.Repeat("A", len(parts[2]))
				return &http.Cookie{Name: "access_token", Value: strings.Join(parts, ".")}
			},
		},
		{
			name: "token under another cookie name",
			cookie: func(t *testing.T, a *Authenticator, _ *fakeClock) *http.Cookie {
				token, err := a.IssueToken()
				require.NoError(t, err)
				return &http.Cookie{Name: "session", Value: token}
			},
		},
		{
			name: "valid token",
			cookie: func(t *testing.T, a *Authenticator, _ *fakeClock) *http.Cookie {
				token, err := a.IssueToken()
				require.NoError(t, err)
				return &http.Cookie{Name: "access_token", Value: token}
			},
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, a, clock := newTestMiddleware("hunter2")

			req := httptest.NewRequest(http.MethodGet, homePath+"api/tasks", nil)
			if c := tt.cookie(t, a, clock); c != nil {
				req.AddCookie(c)
			}

			var called bool
			rec := httptest.NewRecorder()
			m.Wrap(reached(&called)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, called)
			if tt.wantCalled {
				assert.Equal(t, http.StatusOK, rec.Code)
			} else {
				assert.Equal(t, http.StatusSeeOther, rec.Code)
				assert.Equal(t, "/login", rec.Header().Get("Location"))
			}
		})
	}
}

func TestWrap_PublicPaths(t *testing.T) {
	m, _, _ := newTestMiddleware("hunter2")

	for _, path := range []string{"/js/sha3.min.js", "/login"} {
		var called bool
		rec := httptest.NewRecorder()
		m.Wrap(reached(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.True(t, called, path)
	}

	var called bool
	rec := httptest.NewRecorder()
	m.Wrap(reached(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/js/nested/x.js", nil))
	assert.False(t, called, "single star must not cross directories")
}

func postLogin(m *Middleware, password, remote string) *httptest.ResponseRecorder {
	form := url.Values{"password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	m.Login(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	m, a, _ := newTestMiddleware("hunter2")

	rec := postLogin(m, "hunter2", "192.0.2.1:5000")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, homePath, rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "access_token", c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.NoError(t, a.VerifyToken(c.Value))
}

func TestLogin_Failure(t *testing.T) {
	m, _, _ := newTestMiddleware("hunter2")

	rec := postLogin(m, "wrong", "192.0.2.1:5000")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_Throttled(t *testing.T) {
	m, _, _ := newTestMiddleware("hunter2")

	for i := 0; i < 3; i++ {
		rec := postLogin(m, "wrong", "192.0.2.7:4000")
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}

	rec := postLogin(m, "hunter2", "192.0.2.7:4001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = postLogin(m, "hunter2", "198.51.100.2:4000")
	assert.Equal(t, http.StatusSeeOther, rec.Code, "other clients are not affected")
}

func TestLoginPage(t *testing.T) {
	m, _, _ := newTestMiddleware("hunter2")

	rec := httptest.NewRecorder()
	m.LoginPage(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestLogout(t *testing.T) {
	m, _, _ := newTestMiddleware("hunter2")

	rec := httptest.NewRecorder()
	m.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestClientKey(t *testing.T) {
	tests := map[string]string{
		"192.0.2.1:5000": "192.0.2.1",
		"[::1]:5000":     "::1",
		"unix":           "unix",
	}
	for remote, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		assert.Equal(t, want, clientKey(r), remote)
	}
}
