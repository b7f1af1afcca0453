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
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// Verification failures. They are handled identically by the middleware
// but stay distinguishable for logs and metrics.
var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrMalformed        = errors.New("token is malformed")
)

// Claims carries the single expiry claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and verifies stateless access tokens.
type Authenticator struct {
	secret     SecretSource
	credential string
	now        func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates an Authenticator. credential is the configured
// password; empty means authentication is not required.
func NewAuthenticator(credential string, secret SecretSource, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret:     secret,
		credential: credential,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsAuthRequired reports whether a credential was configured.
func (a *Authenticator) IsAuthRequired() bool {
	return a.credential != ""
}

// IssueToken returns a signed HS256 token expiring TokenTTL from now.
func (a *Authenticator) IssueToken() (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(a.now().Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret.Secret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry of tokenString. Errors wrap
// one of ErrInvalidSignature, ErrExpired or ErrMalformed.
func (a *Authenticator) VerifyToken(tokenString string) error {
	if tokenString == "" {
		return fmt.Errorf("%w: token is empty", ErrMalformed)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)

	_, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret.Secret(), nil
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// CheckCredential reports whether submitted matches the configured credential.
func (a *Authenticator) CheckCredential(submitted string) bool {
	if !a.IsAuthRequired() {
		return true
	}
	return credentialsEqual(submitted, a.credential)
}

// reason maps a verification error to a short metric label.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "malformed"
	}
}
