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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/lifecycle"
)

// NewStopCommand creates the stop command.
func NewStopCommand() *cobra.Command {
	var opts stopOptions

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background launcher",
		Long: `Stop the background launcher gracefully.

Sends SIGINT, which makes the launcher drain the gateway, interrupt the
engine and remove the download mount, then waits for it to exit. With
--force, a launcher still running after the timeout is killed; the mount
may then be left behind until the next start.

The stop command is idempotent: if the launcher is not running, it exits
successfully after cleaning up a stale PID file.`,
		Example: `  # Stop gracefully
  xunlei stop

  # Give the engine longer to flush downloads
  xunlei stop --timeout 60s

  # Kill the launcher if it does not exit in time
  xunlei stop --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Graceful shutdown timeout (default: daemon.stop_timeout)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Send SIGKILL if the timeout is exceeded")
	cmd.Flags().StringVar(&opts.pidFile, "pid-file", "", "PID file path")

	return cmd
}

type stopOptions struct {
	timeout time.Duration
	force   bool
	pidFile string
}

func runStop(opts stopOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.pidFile != "" {
		cfg.Daemon.PIDFile = opts.pidFile
	}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Daemon.StopTimeout
	}

	events := lifecycle.NewEventLog(cfg.Daemon.LifecycleLog)
	pidFile := lifecycle.NewPIDFile(cfg.Daemon.PIDFile)

	pid, err := pidFile.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			shared.Infof("xunlei is not running (no PID file)")
			return nil
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if !lifecycle.IsRunning(pid) {
		record(events, lifecycle.Event{Kind: lifecycle.EventStalePID, PID: pid, Message: "process not running"})
		shared.Infof("xunlei process %d is not running (removing stale PID file)", pid)
		if err := pidFile.Release(); err != nil {
			return fmt.Errorf("failed to remove stale PID file: %w", err)
		}
		return nil
	}

	if !lifecycle.IsXunleiProcess(pid) {
		return fmt.Errorf("PID %d is not an xunlei process (refusing to stop)", pid)
	}

	record(events, lifecycle.Event{Kind: lifecycle.EventStop, PID: pid, Force: opts.force})

	start := time.Now()
	shared.Infof("Stopping xunlei (PID %d)...", pid)

	if err := lifecycle.Stop(pid, timeout, opts.force); err != nil {
		record(events, lifecycle.Event{Kind: lifecycle.EventStopFailed, PID: pid}.Failure(err))
		if errors.Is(err, lifecycle.ErrStopTimeout) {
			return fmt.Errorf("xunlei did not exit within %v (use --force to kill it): %w", timeout, err)
		}
		return fmt.Errorf("failed to stop xunlei: %w", err)
	}

	// A graceful launcher removes its own PID file; a killed one cannot.
	if err := pidFile.Release(); err != nil {
		fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf("failed to remove PID file: %v", err)))
	}

	record(events, lifecycle.Event{Kind: lifecycle.EventStopped, PID: pid, Duration: time.Since(start)})
	shared.Infof("%s", shared.RenderOK("xunlei stopped"))
	return nil
}
