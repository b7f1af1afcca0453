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

package cgi

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	internallog "github.com/tombee/xunlei/internal/log"
	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// Invocation is one run of the web frontend.
type Invocation struct {
	Env Environment

	// Body is written to stdin when non-nil. Stdin is closed either way.
	Body []byte
}

// Runner executes an Invocation and returns everything it wrote to stdout.
type Runner interface {
	Run(inv *Invocation) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(inv *Invocation) ([]byte, error)

// Run implements Runner.
func (f RunnerFunc) Run(inv *Invocation) ([]byte, error) { return f(inv) }

// ExecRunner runs a CGI executable as a child process.
type ExecRunner struct {
	// Path is the executable.
	Path string

	// Dir is the working directory.
	Dir string

	// Credential, when set, is the uid/gid the child runs as.
	Credential *syscall.Credential

	// Stderr receives the child's stderr. Nil discards it.
	Stderr io.Writer

	// Logger reports non-fatal child failures.
	Logger *slog.Logger
}

// Run spawns the executable, feeds it the body and collects its stdout.
// A non-zero exit is logged but not an error: the output decides the
// response. A child that stops reading stdin early is not an error either.
func (r *ExecRunner) Run(inv *Invocation) ([]byte, error) {
	cmd := exec.Command(r.Path)
	cmd.Dir = r.Dir
	cmd.Env = inv.Env.List()
	if r.Credential != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: r.Credential}
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = r.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &xerrors.IOError{Op: "open stdin", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &xerrors.SpawnError{Path: r.Path, Cause: err}
	}

	writeErr := writeAndClose(stdin, inv.Body)
	waitErr := cmd.Wait()

	if writeErr != nil && !errors.Is(writeErr, syscall.EPIPE) {
		return nil, &xerrors.IOError{Op: "write stdin", Cause: writeErr}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &xerrors.IOError{Op: "read stdout", Cause: waitErr}
		}
		r.logger().Warn("cgi executable exited with failure",
			slog.String("path", r.Path),
			slog.Int("exit_code", exitErr.ExitCode()),
			slog.Int("stdout_bytes", stdout.Len()))
	}

	return stdout.Bytes(), nil
}

func (r *ExecRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return internallog.Discard()
}

func writeAndClose(w io.WriteCloser, body []byte) error {
	var writeErr error
	if body != nil {
		_, writeErr = w.Write(body)
	}
	closeErr := w.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}
