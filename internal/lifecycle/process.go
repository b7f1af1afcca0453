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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrNotXunleiProcess is returned when a pid does not belong to a launcher.
	ErrNotXunleiProcess = errors.New("process is not an xunlei launcher")

	// ErrStopTimeout is returned when the process outlives the stop timeout.
	ErrStopTimeout = errors.New("stop timeout exceeded")
)

// pollInterval is how often WaitForExit checks the process table.
const pollInterval = 100 * time.Millisecond

// ProcessInfo describes a pid for the status command.
type ProcessInfo struct {
	PID     int
	Running bool
	Command string
}

// IsRunning reports whether pid exists. Signal 0 checks existence and
// permission without delivering anything.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// IsXunleiProcess reports whether pid's executable is named like ours.
func IsXunleiProcess(pid int) bool {
	cmd, err := processCommand(pid)
	if err != nil {
		return false
	}
	return looksLikeXunlei(cmd)
}

func looksLikeXunlei(cmdline string) bool {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return false
	}
	return strings.Contains(filepath.Base(fields[0]), "xunlei")
}

// Signal delivers sig to pid.
func Signal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %v to process %d: %w", sig, pid, err)
	}
	return nil
}

// WaitForExit polls until pid is gone or timeout elapses.
func WaitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !IsRunning(pid) {
			return nil
		}
		time.Sleep(pollInterval)
	}
	if !IsRunning(pid) {
		return nil
	}
	return ErrStopTimeout
}

// Stop interrupts the launcher, which starts its own ordered shutdown
// (gateway drain, engine interrupt, unmount), and waits for it to exit.
// With force, a launcher still alive after timeout is killed.
func Stop(pid int, timeout time.Duration, force bool) error {
	if !IsRunning(pid) {
		return ErrProcessNotRunning
	}

	if err := Signal(pid, syscall.SIGINT); err != nil {
		return err
	}

	err := WaitForExit(pid, timeout)
	if err == nil || !force {
		return err
	}

	if err := Signal(pid, syscall.SIGKILL); err != nil {
		return err
	}
	if err := WaitForExit(pid, 5*time.Second); err != nil {
		return fmt.Errorf("process survived SIGKILL: %w", err)
	}
	return nil
}

// Inspect returns what the status command shows for pid.
func Inspect(pid int) ProcessInfo {
	info := ProcessInfo{PID: pid, Running: IsRunning(pid)}
	if info.Running {
		cmd, err := processCommand(pid)
		if err != nil {
			cmd = "<unknown>"
		}
		info.Command = cmd
	}
	return info
}
