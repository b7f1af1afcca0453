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

// Package config loads launcher configuration from defaults, an optional
// YAML file, and XUNLEI_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tombee/xunlei/internal/engine"
	xerrors "github.com/tombee/xunlei/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete launcher configuration.
type Config struct {
	// Server configures the HTTP gateway.
	Server ServerConfig `yaml:"server"`

	// Auth configures token authentication and the login flow.
	Auth AuthConfig `yaml:"auth"`

	// Engine configures the supervised engine and its web frontend.
	Engine EngineConfig `yaml:"engine"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing"`

	// Daemon configures background mode (start/stop/status).
	Daemon DaemonConfig `yaml:"daemon"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	// Listen is the TCP address the gateway binds, host:port.
	Listen string `yaml:"listen"`

	// TLSCert is the PEM certificate path. TLS is enabled when both TLSCert and TLSKey are set.
	TLSCert string `yaml:"tls_cert,omitempty"`

	// TLSKey is the PEM private key path.
	TLSKey string `yaml:"tls_key,omitempty"`

	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout,omitempty"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// ShutdownTimeout bounds graceful draining of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TLSEnabled reports whether the gateway serves HTTPS.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// Port returns the port portion of Listen.
func (s ServerConfig) Port() string {
	_, port, err := net.SplitHostPort(s.Listen)
	if err != nil {
		return ""
	}
	return port
}

// AuthConfig configures token authentication.
type AuthConfig struct {
	// Password is the login credential. Empty disables authentication entirely.
	Password string `yaml:"password,omitempty"`

	// CookieName is the cookie carrying the access token.
	CookieName string `yaml:"cookie_name"`

	// PublicPaths are glob patterns (doublestar syntax) reachable without a token.
	PublicPaths []string `yaml:"public_paths,omitempty"`

	// LoginRate is the sustained number of login attempts per second per client.
	LoginRate float64 `yaml:"login_rate"`

	// LoginBurst is the number of login attempts a client may make back to back.
	LoginBurst int `yaml:"login_burst"`
}

// Enabled reports whether a credential is configured.
func (a AuthConfig) Enabled() bool {
	return a.Password != ""
}

// EngineConfig configures the supervised engine.
type EngineConfig struct {
	// PackageDir is the installed package target directory.
	PackageDir string `yaml:"package_dir"`

	// ConfigDir is the engine's HOME and configuration directory.
	ConfigDir string `yaml:"config_dir"`

	// DownloadDir is the real download directory on the host.
	DownloadDir string `yaml:"download_dir"`

	// MountPath is where DownloadDir is bind-mounted for the engine.
	MountPath string `yaml:"mount_path"`

	// UID is the user the engine and web frontend run as when launched by root.
	UID uint32 `yaml:"uid"`

	// GID is the group the engine and web frontend run as when launched by root.
	GID uint32 `yaml:"gid"`

	// Debug forwards engine and web frontend output to the launcher's stdio.
	Debug bool `yaml:"debug"`
}

// Layout returns the package layout for PackageDir.
func (e EngineConfig) Layout() engine.Layout {
	return engine.NewLayout(e.PackageDir)
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`

	// AddSource adds file:line to log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes metrics on Path.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	Path string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	// Enabled turns on span export.
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name"`

	// Exporter is one of stdout, otlp (gRPC) or otlp-http.
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address for the OTLP exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// SampleRate is the fraction of traces recorded, 0 to 1.
	SampleRate float64 `yaml:"sample_rate"`
}

// DaemonConfig configures background mode.
type DaemonConfig struct {
	// PIDFile records the pid of the running launcher.
	PIDFile string `yaml:"pid_file"`

	// StdoutFile receives stdout of a detached launcher.
	StdoutFile string `yaml:"stdout_file"`

	// StderrFile receives stderr of a detached launcher.
	StderrFile string `yaml:"stderr_file"`

	// LifecycleLog receives start/stop events as JSON lines.
	LifecycleLog string `yaml:"lifecycle_log"`

	// StartTimeout bounds how long start waits for the gateway to become healthy.
	StartTimeout time.Duration `yaml:"start_timeout"`

	// StopTimeout bounds how long stop waits for the launcher to exit.
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:            "0.0.0.0:5055",
			ReadHeaderTimeout: 30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Auth: AuthConfig{
			CookieName:  "access_token",
			PublicPaths: []string{"/js/*.js"},
			LoginRate:   1,
			LoginBurst:  5,
		},
		Engine: EngineConfig{
			PackageDir:  engine.DefaultPackageDir,
			ConfigDir:   engine.DefaultConfigDir,
			DownloadDir: engine.DefaultDownloadDir,
			MountPath:   engine.DefaultMountPath,
			UID:         uint32(os.Getuid()),
			GID:         uint32(os.Getgid()),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "xunlei",
			Exporter:    "stdout",
			SampleRate:  1,
		},
		Daemon: DaemonConfig{
			PIDFile:      "/var/run/xunlei.pid",
			StdoutFile:   "/var/run/xunlei.out",
			StderrFile:   "/var/run/xunlei.err",
			LifecycleLog: "/var/run/xunlei.lifecycle.log",
			StartTimeout: 10 * time.Second,
			StopTimeout:  30 * time.Second,
		},
	}
}

// Load reads configuration from configPath (or the default config file when
// it exists), applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		if p, err := ConfigPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				configPath = p
			}
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &xerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &xerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = d.Server.ReadHeaderTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = d.Auth.CookieName
	}
	if c.Auth.LoginRate == 0 {
		c.Auth.LoginRate = d.Auth.LoginRate
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = d.Auth.LoginBurst
	}
	if c.Engine.PackageDir == "" {
		c.Engine.PackageDir = d.Engine.PackageDir
	}
	if c.Engine.ConfigDir == "" {
		c.Engine.ConfigDir = d.Engine.ConfigDir
	}
	if c.Engine.DownloadDir == "" {
		c.Engine.DownloadDir = d.Engine.DownloadDir
	}
	if c.Engine.MountPath == "" {
		c.Engine.MountPath = d.Engine.MountPath
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = d.Daemon.PIDFile
	}
	if c.Daemon.StdoutFile == "" {
		c.Daemon.StdoutFile = d.Daemon.StdoutFile
	}
	if c.Daemon.StderrFile == "" {
		c.Daemon.StderrFile = d.Daemon.StderrFile
	}
	if c.Daemon.LifecycleLog == "" {
		c.Daemon.LifecycleLog = d.Daemon.LifecycleLog
	}
	if c.Daemon.StartTimeout == 0 {
		c.Daemon.StartTimeout = d.Daemon.StartTimeout
	}
	if c.Daemon.StopTimeout == 0 {
		c.Daemon.StopTimeout = d.Daemon.StopTimeout
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv applies XUNLEI_* overrides.
func (c *Config) loadFromEnv() error {
	if val, ok := os.LookupEnv("XUNLEI_AUTH_PASS"); ok {
		c.Auth.Password = val
	}
	if val := os.Getenv("XUNLEI_BIND"); val != "" {
		c.Server.Listen = val
	}
	if val := os.Getenv("XUNLEI_TLS_CERT"); val != "" {
		c.Server.TLSCert = val
	}
	if val := os.Getenv("XUNLEI_TLS_KEY"); val != "" {
		c.Server.TLSKey = val
	}
	if val := os.Getenv("XUNLEI_SHUTDOWN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Server.ShutdownTimeout = duration
		}
	}

	if val := os.Getenv("XUNLEI_UID"); val != "" {
		id, err := parseID(val)
		if err != nil {
			return &xerrors.ConfigError{Key: "engine.uid", Reason: fmt.Sprintf("invalid XUNLEI_UID %q", val), Cause: err}
		}
		c.Engine.UID = id
	}
	if val := os.Getenv("XUNLEI_GID"); val != "" {
		id, err := parseID(val)
		if err != nil {
			return &xerrors.ConfigError{Key: "engine.gid", Reason: fmt.Sprintf("invalid XUNLEI_GID %q", val), Cause: err}
		}
		c.Engine.GID = id
	}
	if val := os.Getenv("XUNLEI_DEBUG"); val != "" {
		c.Engine.Debug = val == "true" || val == "1"
	}
	if val := os.Getenv("XUNLEI_PACKAGE_DIR"); val != "" {
		c.Engine.PackageDir = val
	}
	if val := os.Getenv("XUNLEI_CONFIG_PATH"); val != "" {
		c.Engine.ConfigDir = val
	}
	if val := os.Getenv("XUNLEI_DOWNLOAD_PATH"); val != "" {
		c.Engine.DownloadDir = val
	}
	if val := os.Getenv("XUNLEI_MOUNT_PATH"); val != "" {
		c.Engine.MountPath = val
	}

	if val := os.Getenv("XUNLEI_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("XUNLEI_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}

	if val := os.Getenv("XUNLEI_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("XUNLEI_TRACING_EXPORTER"); val != "" {
		c.Tracing.Enabled = val != "none"
		c.Tracing.Exporter = val
	}
	if val := os.Getenv("XUNLEI_TRACING_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	if val := os.Getenv("XUNLEI_PID_FILE"); val != "" {
		c.Daemon.PIDFile = val
	}

	return nil
}

func parseID(val string) (uint32, error) {
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("server.listen must be host:port, got %q", c.Server.Listen))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, "server.tls_cert and server.tls_key must be set together")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}

	if c.Auth.CookieName == "" {
		errs = append(errs, "auth.cookie_name must not be empty")
	}
	for _, pattern := range c.Auth.PublicPaths {
		if !strings.HasPrefix(pattern, "/") || !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Sprintf("auth.public_paths entry %q is not a valid absolute glob", pattern))
		}
	}
	if c.Auth.LoginRate <= 0 {
		errs = append(errs, fmt.Sprintf("auth.login_rate must be positive, got %v", c.Auth.LoginRate))
	}
	if c.Auth.LoginBurst < 1 {
		errs = append(errs, fmt.Sprintf("auth.login_burst must be at least 1, got %d", c.Auth.LoginBurst))
	}

	for key, dir := range map[string]string{
		"engine.package_dir":  c.Engine.PackageDir,
		"engine.config_dir":   c.Engine.ConfigDir,
		"engine.download_dir": c.Engine.DownloadDir,
		"engine.mount_path":   c.Engine.MountPath,
	} {
		if !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Sprintf("%s must be an absolute path, got %q", key, dir))
		}
	}
	if filepath.Clean(c.Engine.DownloadDir) == filepath.Clean(c.Engine.MountPath) {
		errs = append(errs, "engine.download_dir and engine.mount_path must differ")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout":
		case "otlp", "otlp-http":
			if c.Tracing.Endpoint == "" {
				errs = append(errs, fmt.Sprintf("tracing.endpoint is required for the %s exporter", c.Tracing.Exporter))
			}
		default:
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [stdout, otlp, otlp-http], got %q", c.Tracing.Exporter))
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
		}
	}

	if c.Daemon.StopTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.stop_timeout must be positive, got %v", c.Daemon.StopTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}
