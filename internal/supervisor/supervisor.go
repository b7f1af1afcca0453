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

// Package supervisor runs the long-lived download engine: it prepares the
// bind mount the engine expects, launches it, and drives the shutdown
// sequence when the run context is cancelled.
//
// The sequence on shutdown is fixed: notify the shutdown coordinator, then
// interrupt the engine (escalating to SIGTERM if the interrupt cannot be
// delivered), then remove the bind mount. Teardown failures are logged and
// never returned.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/xunlei/internal/engine"
	internallog "github.com/tombee/xunlei/internal/log"
	"github.com/tombee/xunlei/internal/shutdown"
	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// ErrEngineExited is returned by Run when the engine exits without having
// been asked to.
var ErrEngineExited = errors.New("engine exited unexpectedly")

// Mounter establishes and removes the download bind mount.
type Mounter interface {
	BindMount(source, target string) error
	Unmount(target string) error
}

// Process is a running engine.
type Process interface {
	Pid() int
	Signal(sig os.Signal) error
	// Done is closed once the process has been reaped.
	Done() <-chan struct{}
	// Err is the wait result; valid after Done is closed.
	Err() error
}

// LaunchSpec describes one engine launch.
type LaunchSpec struct {
	Path       string
	Args       []string
	Dir        string
	Env        []string
	Credential *syscall.Credential

	// Attach forwards the engine's stdout and stderr to ours.
	Attach bool
}

// Launcher starts engine processes.
type Launcher interface {
	Launch(spec LaunchSpec) (Process, error)
}

// Config configures a Supervisor.
type Config struct {
	Layout      engine.Layout
	ConfigDir   string
	DownloadDir string
	MountPath   string

	// Env is the engine environment, usually Layout.Environment.
	Env map[string]string

	UID uint32
	GID uint32

	// Debug attaches the engine's output to the supervisor's.
	Debug bool

	// StopWait is how long to wait for the engine to exit after it was
	// signalled. Zero does not wait.
	StopWait time.Duration
}

// Supervisor owns the engine process and the bind mount.
type Supervisor struct {
	cfg      Config
	mounter  Mounter
	launcher Launcher
	notifier shutdown.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer

	state atomic.Int32
	pid   atomic.Int64
}

// New creates a Supervisor. The notifier is told about shutdown before the
// engine is signalled.
func New(cfg Config, mounter Mounter, launcher Launcher, notifier shutdown.Notifier, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = internallog.Discard()
	}
	s := &Supervisor{
		cfg:      cfg,
		mounter:  mounter,
		launcher: launcher,
		notifier: notifier,
		logger:   internallog.WithComponent(logger, "supervisor"),
		tracer:   otel.Tracer("github.com/tombee/xunlei/internal/supervisor"),
	}
	s.setState(StateIdle)
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Pid returns the engine pid, or 0 when it is not running.
func (s *Supervisor) Pid() int {
	return int(s.pid.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	engineState.Set(float64(st))
	s.logger.Debug("supervisor state changed", slog.String("state", st.String()))
}

// Run mounts, launches the engine and blocks until ctx is cancelled or the
// engine exits. A mount or launch failure is returned before the engine
// runs. Cancellation returns nil; an unexpected engine exit returns an error
// wrapping ErrEngineExited.
func (s *Supervisor) Run(ctx context.Context) error {
	if st := s.State(); st != StateIdle {
		return fmt.Errorf("supervisor already started (state %s)", st)
	}
	s.setState(StateMounting)

	if err := s.prepareDirs(); err != nil {
		return s.fail(err)
	}

	// A stale mount from an earlier run is the only case where this succeeds.
	if err := s.mounter.Unmount(s.cfg.MountPath); err != nil {
		s.logger.Debug("no stale mount removed", slog.String("target", s.cfg.MountPath), internallog.Error(err))
	}
	if err := s.mounter.BindMount(s.cfg.DownloadDir, s.cfg.MountPath); err != nil {
		return s.fail(err)
	}
	s.logger.Info("download directory mounted",
		slog.String("source", s.cfg.DownloadDir),
		slog.String("target", s.cfg.MountPath))

	proc, err := s.launch(ctx)
	if err != nil {
		s.unmount()
		return s.fail(err)
	}
	s.pid.Store(int64(proc.Pid()))
	s.setState(StateRunning)

	select {
	case <-ctx.Done():
		s.shutdown(proc)
		return nil

	case <-proc.Done():
		engineExits.Inc()
		s.logger.Error("engine exited without a shutdown signal",
			internallog.PID(proc.Pid()),
			internallog.Error(proc.Err()))

		s.setState(StateShuttingDown)
		s.notifier.Notify()
		s.pid.Store(0)
		s.unmount()
		s.setState(StateStopped)

		if werr := proc.Err(); werr != nil {
			return fmt.Errorf("%w: %v", ErrEngineExited, werr)
		}
		return ErrEngineExited
	}
}

// fail ends a run that never reached Running. The gateway still gets its
// shutdown notice, since the coordinator is the only thing it drains on.
func (s *Supervisor) fail(err error) error {
	s.setState(StateStopped)
	s.notifier.Notify()
	return err
}

func (s *Supervisor) launch(ctx context.Context) (Process, error) {
	spec := LaunchSpec{
		Path:       s.cfg.Layout.Launcher(),
		Args:       s.cfg.Layout.LaunchArgs(),
		Dir:        s.cfg.Layout.PackageDir,
		Env:        engine.EnvList(s.cfg.Env),
		Credential: engine.Credential(s.cfg.UID, s.cfg.GID),
		Attach:     s.cfg.Debug,
	}

	_, span := s.tracer.Start(ctx, "engine.launch", trace.WithAttributes(
		attribute.String("engine.path", spec.Path),
		attribute.StringSlice("engine.args", spec.Args),
	))
	defer span.End()

	proc, err := s.launcher.Launch(spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		var spawnErr *xerrors.SpawnError
		if !errors.As(err, &spawnErr) {
			err = &xerrors.SpawnError{Path: spec.Path, Cause: err}
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("process.pid", proc.Pid()))

	s.logger.Info("engine started",
		internallog.PID(proc.Pid()),
		slog.String("path", spec.Path))
	return proc, nil
}

func (s *Supervisor) shutdown(proc Process) {
	s.setState(StateShuttingDown)
	s.logger.Info("shutting down engine", internallog.PID(proc.Pid()))

	// The gateway gets its notice before the engine is touched.
	s.notifier.Notify()
	s.signal(proc)

	if s.cfg.StopWait > 0 {
		timer := time.NewTimer(s.cfg.StopWait)
		select {
		case <-proc.Done():
			s.logger.Info("engine exited", internallog.PID(proc.Pid()))
		case <-timer.C:
			s.logger.Warn("engine still running after stop wait",
				internallog.PID(proc.Pid()),
				slog.Duration("wait", s.cfg.StopWait))
		}
		timer.Stop()
	}

	s.pid.Store(0)
	s.unmount()
	s.setState(StateStopped)
}

// signal interrupts the engine, falling back to SIGTERM when the interrupt
// cannot be delivered.
func (s *Supervisor) signal(proc Process) {
	err := proc.Signal(os.Interrupt)
	if err == nil {
		return
	}
	s.logger.Error("failed to interrupt engine",
		internallog.Error(&xerrors.SignalError{PID: proc.Pid(), Signal: "SIGINT", Cause: err}))

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		s.logger.Error("failed to terminate engine",
			internallog.Error(&xerrors.SignalError{PID: proc.Pid(), Signal: "SIGTERM", Cause: err}))
	}
}

func (s *Supervisor) unmount() {
	if err := s.mounter.Unmount(s.cfg.MountPath); err != nil {
		s.logger.Error("failed to remove download mount",
			slog.String("target", s.cfg.MountPath),
			internallog.Error(err))
		return
	}
	s.logger.Info("download mount removed", slog.String("target", s.cfg.MountPath))
}

// prepareDirs creates the engine's state, config, download and mount
// directories. The state directory is handed to the engine user when we
// run as root.
func (s *Supervisor) prepareDirs() error {
	varDir := s.cfg.Layout.VarDir()
	if _, err := os.Stat(varDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(varDir, 0o777); err != nil {
			return &xerrors.IOError{Op: "create " + varDir, Cause: err}
		}
		if os.Geteuid() == 0 {
			if err := os.Chown(varDir, int(s.cfg.UID), int(s.cfg.GID)); err != nil {
				return &xerrors.IOError{Op: "chown " + varDir, Cause: err}
			}
		}
	}

	for _, dir := range []string{s.cfg.ConfigDir, s.cfg.DownloadDir, s.cfg.MountPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &xerrors.IOError{Op: "create " + dir, Cause: err}
		}
	}
	return nil
}
