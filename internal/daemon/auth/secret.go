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
	"crypto/rand"
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
)

// secretSeed is the murmur3 seed used for secret derivation.
const secretSeed = 31

// SecretSource yields the token signing secret.
type SecretSource interface {
	Secret() []byte
}

// Deriver turns the configured credential into a signing secret the first
// time Secret is called. Every later call, from any goroutine, returns the
// same value for the lifetime of the Deriver.
type Deriver struct {
	credential string
	secret     func() []byte
}

// NewDeriver creates a Deriver for credential. An empty credential is
// replaced by a random string, so the secret is unpredictable but
// authentication is then bypassed at the middleware level.
func NewDeriver(credential string) *Deriver {
	d := &Deriver{credential: credential}
	d.secret = sync.OnceValue(func() []byte {
		return DeriveSecret(d.seed())
	})
	return d
}

// Secret returns the derived secret.
func (d *Deriver) Secret() []byte {
	return d.secret()
}

func (d *Deriver) seed() string {
	if d.credential != "" {
		return d.credential
	}
	return rand.Text()
}

// DeriveSecret hashes seed with murmur3 x64_128 and renders both halves as
// concatenated decimals.
func DeriveSecret(seed string) []byte {
	h1, h2 := murmur3.Sum128WithSeed([]byte(seed), secretSeed)
	out := strconv.AppendUint(nil, h1, 10)
	return strconv.AppendUint(out, h2, 10)
}

// StaticSecret is a SecretSource with a fixed value.
type StaticSecret []byte

// Secret implements SecretSource.
func (s StaticSecret) Secret() []byte { return s }
