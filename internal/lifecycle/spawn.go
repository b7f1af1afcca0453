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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// Spawner starts a launcher detached from the invoking terminal.
type Spawner struct {
	// Env is the child environment; defaults to ours.
	Env []string
}

// NewSpawner returns a Spawner passing through the current environment.
func NewSpawner() *Spawner {
	return &Spawner{Env: os.Environ()}
}

// SpawnDetached runs binary in a new session with stdin closed and
// stdout/stderr appended to the given files, and returns its pid without
// waiting for it. The two paths may be the same file.
func (s *Spawner) SpawnDetached(binary string, args []string, stdoutPath, stderrPath string) (int, error) {
	stdout, err := openAppend(stdoutPath)
	if err != nil {
		return 0, err
	}
	defer stdout.Close()

	stderr := stdout
	if stderrPath != stdoutPath {
		stderr, err = openAppend(stderrPath)
		if err != nil {
			return 0, err
		}
		defer stderr.Close()
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = s.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("process started but failed to release: %w", err)
	}
	return pid, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
