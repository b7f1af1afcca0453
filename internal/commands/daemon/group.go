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

// Package daemon implements the background launcher commands: start, stop,
// restart, status and log.
package daemon

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/lifecycle"
)

// NewCommands returns the top-level lifecycle commands, tagged with the
// "daemon" help group.
func NewCommands() []*cobra.Command {
	cmds := []*cobra.Command{
		NewStartCommand(),
		NewStopCommand(),
		NewRestartCommand(),
		NewStatusCommand(),
		NewLogCommand(),
	}
	for _, c := range cmds {
		c.Annotations = map[string]string{"group": "daemon"}
	}
	return cmds
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// healthURL is the gateway's health endpoint as seen from this host.
// Wildcard listen addresses are reached over loopback.
func healthURL(cfg config.ServerConfig) string {
	scheme := "http"
	if cfg.TLSEnabled() {
		scheme = "https"
	}

	host, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return fmt.Sprintf("%s://%s/healthz", scheme, cfg.Listen)
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s://%s/healthz", scheme, net.JoinHostPort(host, port))
}

// healthClient trusts whatever certificate the local gateway presents;
// self-signed certificates are the norm on a NAS.
func healthClient(cfg config.ServerConfig) *http.Client {
	client := &http.Client{Timeout: 5 * time.Second}
	if cfg.TLSEnabled() {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // loopback check of our own listener
		}
	}
	return client
}

func newHealthChecker(cfg config.ServerConfig) *lifecycle.HealthChecker {
	return lifecycle.NewHealthChecker(healthURL(cfg)).WithHTTPClient(healthClient(cfg))
}

func record(log *lifecycle.EventLog, e lifecycle.Event) {
	if err := log.Record(e); err != nil {
		fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf("failed to write lifecycle log: %v", err)))
	}
}
