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
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileExists is returned when the pid file is present and names a
	// live launcher.
	ErrPIDFileExists = errors.New("pid file already exists")

	// ErrPIDFileLocked is returned when another process holds the pid file lock.
	ErrPIDFileLocked = errors.New("pid file is locked by another process")

	// ErrInvalidPID is returned when the pid file does not hold a positive integer.
	ErrInvalidPID = errors.New("invalid pid in file")

	// ErrUnsafeDirectory is returned when the pid file parent is world-writable
	// without the sticky bit.
	ErrUnsafeDirectory = errors.New("pid file directory is world-writable")
)

// AlreadyRunningError reports the launcher that owns the pid file.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("xunlei is already running (pid %d)", e.PID)
}

// Unwrap lets callers match ErrPIDFileExists.
func (e *AlreadyRunningError) Unwrap() error { return ErrPIDFileExists }

// PIDFile is the launcher's pid file. A held PIDFile keeps its descriptor
// open with an exclusive flock until Release.
type PIDFile struct {
	path string
	lock *os.File
}

// NewPIDFile returns a PIDFile at path. Nothing is touched on disk.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Acquire writes pid to the file and locks it. A file left behind by a
// launcher that is no longer running is replaced; its pid is returned so
// the caller can log it. A live owner yields *AlreadyRunningError.
func (p *PIDFile) Acquire(pid int) (stale int, err error) {
	err = p.create(pid)
	if !errors.Is(err, ErrPIDFileExists) {
		return 0, err
	}

	owner, readErr := p.Read()
	if readErr == nil && IsRunning(owner) && IsXunleiProcess(owner) {
		return 0, &AlreadyRunningError{PID: owner}
	}

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to remove stale pid file: %w", err)
	}
	return owner, p.create(pid)
}

func (p *PIDFile) create(pid int) error {
	dir := filepath.Dir(p.path)
	if err := checkDirectory(dir); err != nil {
		return fmt.Errorf("unsafe pid file location: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pid file directory: %w", err)
	}

	// O_EXCL refuses an existing file or a planted symlink.
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrPIDFileExists
		}
		return fmt.Errorf("failed to create pid file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(p.path)
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrPIDFileLocked
		}
		return fmt.Errorf("failed to lock pid file: %w", err)
	}

	if _, err := f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		f.Close()
		os.Remove(p.path)
		return fmt.Errorf("failed to write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(p.path)
		return fmt.Errorf("failed to sync pid file: %w", err)
	}

	p.lock = f
	return nil
}

// Read returns the pid recorded in the file. A missing file yields an
// error satisfying os.IsNotExist.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, raw)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// Release unlocks and removes the file. Releasing twice is harmless.
func (p *PIDFile) Release() error {
	if p.lock != nil {
		syscall.Flock(int(p.lock.Fd()), syscall.LOCK_UN)
		p.lock.Close()
		p.lock = nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// Exists reports whether the file is present.
func (p *PIDFile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// checkDirectory rejects a world-writable parent unless it is sticky,
// where other users cannot replace our file.
func checkDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode()
	if mode&0o002 != 0 && mode&os.ModeSticky == 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}
	return nil
}
