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

package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/log"
)

// RunOptions configures daemon execution.
type RunOptions struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is the config file; empty uses the default location.
	ConfigPath string

	// Config overrides
	Listen      string
	PackageDir  string
	ConfigDir   string
	DownloadDir string
	MountPath   string
	TLSCert     string
	TLSKey      string
	PIDFile     string
	Debug       bool
}

// Run starts the daemon and blocks until shutdown.
// This is the main entry point for daemon execution, used by both
// foreground mode (xunlei run) and the detached child spawned by
// xunlei start.
func Run(opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	})
	slog.SetDefault(logger)
	logger.Debug("configuration loaded",
		slog.String("listen", cfg.Server.Listen),
		slog.String("package_dir", cfg.Engine.PackageDir),
		slog.String("download_dir", cfg.Engine.DownloadDir),
		slog.String("mount_path", cfg.Engine.MountPath),
		slog.String("auth_password", log.SanitizeSecret(cfg.Auth.Password)))

	d, err := New(cfg, Options{
		Version:   opts.Version,
		Commit:    opts.Commit,
		BuildDate: opts.BuildDate,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create daemon", log.Error(err))
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()
	// A second signal gets the default behaviour and kills the process.
	context.AfterFunc(ctx, func() {
		logger.Info("shutdown signal received")
		stop()
	})

	if err := d.Start(ctx); err != nil {
		logger.Error("Daemon error", log.Error(err))
		return fmt.Errorf("daemon error: %w", err)
	}
	return nil
}

func applyOverrides(cfg *config.Config, opts RunOptions) {
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.TLSCert != "" {
		cfg.Server.TLSCert = opts.TLSCert
	}
	if opts.TLSKey != "" {
		cfg.Server.TLSKey = opts.TLSKey
	}
	if opts.PackageDir != "" {
		cfg.Engine.PackageDir = opts.PackageDir
	}
	if opts.ConfigDir != "" {
		cfg.Engine.ConfigDir = opts.ConfigDir
	}
	if opts.DownloadDir != "" {
		cfg.Engine.DownloadDir = opts.DownloadDir
	}
	if opts.MountPath != "" {
		cfg.Engine.MountPath = opts.MountPath
	}
	if opts.PIDFile != "" {
		cfg.Daemon.PIDFile = opts.PIDFile
	}
	if opts.Debug {
		cfg.Engine.Debug = true
		cfg.Log.Level = "debug"
	}
}
