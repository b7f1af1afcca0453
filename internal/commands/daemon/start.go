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
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/run"
	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/config"
	daemonpkg "github.com/tombee/xunlei/internal/daemon"
	"github.com/tombee/xunlei/internal/lifecycle"
)

// NewStartCommand creates the start command.
func NewStartCommand() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the launcher in the background",
		Long: `Start the launcher in the background and wait until the gateway is healthy.

The launcher writes its PID file and appends its output to the configured
stdout and stderr files. Use --foreground to run in the current terminal
instead, as 'xunlei run' does.

The start command is idempotent: if the launcher is already running and
healthy, it exits successfully without starting a new instance.`,
		Example: `  # Start in the background
  xunlei start

  # Wait longer for the engine on slow disks
  xunlei start --timeout 60s

  # Run in the foreground (for systemd or docker)
  xunlei start --foreground`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.foreground, "foreground", false, "Run in the foreground")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Health check timeout (default: daemon.start_timeout)")
	run.AddFlags(cmd, &opts.run)

	return cmd
}

type startOptions struct {
	foreground bool
	timeout    time.Duration
	run        daemonpkg.RunOptions
}

func runStart(ctx context.Context, opts startOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStartOverrides(cfg, opts.run)

	v, c, b := shared.GetVersion()
	events := lifecycle.NewEventLog(cfg.Daemon.LifecycleLog)
	childArgs := run.Args(opts.run)
	record(events, lifecycle.Event{Kind: lifecycle.EventStart, Version: v, Args: childArgs, Config: shared.GetConfigPath()})

	if opts.foreground {
		runOpts := opts.run
		runOpts.Version, runOpts.Commit, runOpts.BuildDate = v, c, b
		runOpts.ConfigPath = shared.GetConfigPath()
		if err := daemonpkg.Run(runOpts); err != nil {
			record(events, lifecycle.Event{Kind: lifecycle.EventStartFailed}.Failure(err))
			return err
		}
		return nil
	}

	pidFile := lifecycle.NewPIDFile(cfg.Daemon.PIDFile)
	if running, err := checkExisting(ctx, cfg, pidFile, events); err != nil {
		return err
	} else if running {
		return nil
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	pid, err := lifecycle.NewSpawner().SpawnDetached(binary, childArgs, cfg.Daemon.StdoutFile, cfg.Daemon.StderrFile)
	if err != nil {
		record(events, lifecycle.Event{Kind: lifecycle.EventStartFailed}.Failure(err))
		return fmt.Errorf("failed to spawn launcher: %w", err)
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Daemon.StartTimeout
	}

	start := time.Now()
	shared.Infof("Starting xunlei (PID %d)...", pid)

	attempts, err := newHealthChecker(cfg.Server).WaitUntilHealthy(ctx, timeout, func(res *lifecycle.HealthCheckResult, n int) {
		if shared.GetVerbose() && !res.Success {
			fmt.Println(shared.Muted.Render(fmt.Sprintf("  attempt %d: %v", n, res.Error)))
		}
	})
	if err != nil {
		// The launcher may still be mounting or may have died; either way
		// an interrupt leaves the host clean.
		_ = lifecycle.Signal(pid, syscall.SIGINT)
		record(events, lifecycle.Event{Kind: lifecycle.EventStartFailed, PID: pid, Attempts: attempts}.Failure(err))
		return fmt.Errorf("xunlei failed to become healthy within %v (see %s): %w", timeout, cfg.Daemon.StderrFile, err)
	}

	record(events, lifecycle.Event{Kind: lifecycle.EventStarted, PID: pid, Attempts: attempts, Duration: time.Since(start)})
	shared.Infof("%s", shared.RenderOK(fmt.Sprintf("xunlei started (PID %d) on %s", pid, cfg.Server.Listen)))
	return nil
}

// checkExisting reports whether a healthy launcher already owns the PID
// file. A stale file is left for the new launcher to replace.
func checkExisting(ctx context.Context, cfg *config.Config, pidFile *lifecycle.PIDFile, events *lifecycle.EventLog) (bool, error) {
	pid, err := pidFile.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, lifecycle.ErrInvalidPID) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existing launcher: %w", err)
	}

	if !lifecycle.IsRunning(pid) || !lifecycle.IsXunleiProcess(pid) {
		record(events, lifecycle.Event{Kind: lifecycle.EventStalePID, PID: pid, Message: "process not running"})
		fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf("stale PID file (process %d not running)", pid)))
		return false, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if res := newHealthChecker(cfg.Server).Check(checkCtx); res.Success {
		record(events, lifecycle.Event{Kind: lifecycle.EventAlreadyRunning, PID: pid})
		shared.Infof("xunlei is already running (PID %d)", pid)
		return true, nil
	}

	return false, fmt.Errorf("%w but not healthy; try 'xunlei restart'", &lifecycle.AlreadyRunningError{PID: pid})
}

// applyStartOverrides mirrors the flags the child will receive so the
// parent checks the same address and files.
func applyStartOverrides(cfg *config.Config, opts daemonpkg.RunOptions) {
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.TLSCert != "" {
		cfg.Server.TLSCert = opts.TLSCert
	}
	if opts.TLSKey != "" {
		cfg.Server.TLSKey = opts.TLSKey
	}
	if opts.PIDFile != "" {
		cfg.Daemon.PIDFile = opts.PIDFile
	}
}
