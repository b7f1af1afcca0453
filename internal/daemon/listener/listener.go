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

// Package listener opens the gateway's TCP listener, with TLS when configured.
package listener

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/tombee/xunlei/internal/config"
	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// New listens on cfg.Listen. When a certificate and key are configured the
// listener terminates TLS 1.2+ itself.
func New(cfg config.ServerConfig) (net.Listener, error) {
	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, &xerrors.ConfigError{
				Key:    "server.tls_cert",
				Reason: "failed to load TLS key pair",
				Cause:  err,
			}
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	if tlsConfig != nil {
		return tls.NewListener(ln, tlsConfig), nil
	}
	return ln, nil
}
