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
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared between issue and verify.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestAuthenticator(credential string) (*Authenticator, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return NewAuthenticator(credential, StaticSecret("test-secret"), WithClock(clock.Now)), clock
}

func TestAuthenticator_IsAuthRequired(t *testing.T) {
	withPass, _ := newTestAuthenticator("hunter2")
	without, _ := newTestAuthenticator("")

	assert.True(t, withPass.IsAuthRequired())
	assert.False(t, without.IsAuthRequired())
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	a, clock := newTestAuthenticator("hunter2")

	token, err := a.IssueToken()
	require.NoError(t, err)
	assert.NoError(t, a.VerifyToken(token), "fresh token must verify")

	clock.t = clock.t.Add(TokenTTL - time.Second)
	assert.NoError(t, a.VerifyToken(token), "token must verify until the TTL elapses")

	clock.t = clock.t.Add(time.Second)
	err = a.VerifyToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAuthenticator_SingleExpiryClaim(t *testing.T) {
	a, clock := newTestAuthenticator("hunter2")

	token, err := a.IssueToken()
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Len(t, claims, 1)
	assert.Equal(t, float64(clock.t.Add(TokenTTL).Unix()), claims["exp"])
}

func TestAuthenticator_WrongSecret(t *testing.T) {
	a, _ := newTestAuthenticator("hunter2")
	other := NewAuthenticator("hunter2", StaticSecret("another-secret"), WithClock(a.now))

	token, err := other.IssueToken()
	require.NoError(t, err)

	err = a.VerifyToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, "invalid_signature", reason(err))
}

func TestAuthenticator_Malformed(t *testing.T) {
	a, _ := newTestAuthenticator("hunter2")

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		err := a.VerifyToken(token)
		require.Error(t, err, "token %q", token)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", token)
	}
}

func TestAuthenticator_RejectsOtherAlgorithms(t *testing.T) {
	a, clock := newTestAuthenticator("hunter2")

	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	assert.Error(t, a.VerifyToken(token))
}

func TestAuthenticator_RequiresExpiry(t *testing.T) {
	a, _ := newTestAuthenticator("hunter2")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	err = a.VerifyToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAuthenticator_TamperedPayload(t *testing.T) {
	a, _ := newTestAuthenticator("hunter2")

	token, err := a.IssueToken()
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Unix(4_000_000_000, 0))}
	payload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SigningString()
	require.NoError(t, err)
	parts[1] = strings.Split(payload, ".")[1]

	assert.ErrorIs(t, a.VerifyToken(strings.Join(parts, ".")), ErrInvalidSignature)
}

func TestAuthenticator_CheckCredential(t *testing.T) {
	a, _ := newTestAuthenticator("hunter2")
	assert.True(t, a.CheckCredential("hunter2"))
	assert.False(t, a.CheckCredential("hunter"))
	assert.False(t, a.CheckCredential("hunter22"))
	assert.False(t, a.CheckCredential(""))

	open, _ := newTestAuthenticator("")
	assert.True(t, open.CheckCredential("anything"))
}
