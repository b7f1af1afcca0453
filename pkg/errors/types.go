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

package errors

import (
	"fmt"
	"os"
)

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "server.listen", "engine.uid")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsUserVisible implements UserVisibleError.
func (e *ConfigError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ConfigError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *ConfigError) Suggestion() string {
	if e.Key != "" {
		return fmt.Sprintf("Check the value of %q in the config file or its environment override", e.Key)
	}
	return "Check the config file syntax"
}

// SpawnError represents a subprocess that could not be created.
// Use this when an executable is missing, not executable, or the
// credentials for a privilege drop are rejected.
type SpawnError struct {
	// Path is the executable that failed to start
	Path string

	// Cause is the underlying exec error
	Cause error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *SpawnError) ErrorType() string { return "spawn" }

// ProtocolError represents CGI output that could not be split into a
// header block and a body.
type ProtocolError struct {
	// Reason describes what was wrong with the output
	Reason string

	// Line is the offending header line, if any
	Line string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("malformed CGI response: %s: %q", e.Reason, e.Line)
	}
	return fmt.Sprintf("malformed CGI response: %s", e.Reason)
}

// ErrorType implements ErrorClassifier.
func (e *ProtocolError) ErrorType() string { return "protocol" }

// IOError represents a failure moving bytes through a subprocess pipe.
type IOError struct {
	// Op is the pipe operation, e.g. "write stdin" or "read stdout"
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *IOError) ErrorType() string { return "io" }

// MountError represents a bind mount that could not be established or removed.
type MountError struct {
	// Op is "bind" or "unmount"
	Op string

	// Source is the directory being exposed (empty for unmount)
	Source string

	// Target is the mount point
	Target string

	// Cause is the underlying syscall error
	Cause error
}

// Error implements the error interface.
func (e *MountError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Source, e.Target, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *MountError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *MountError) ErrorType() string { return "mount" }

// IsUserVisible implements UserVisibleError.
func (e *MountError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *MountError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *MountError) Suggestion() string {
	if os.Geteuid() != 0 {
		return "Bind mounts need root (or CAP_SYS_ADMIN); run the launcher as root"
	}
	return fmt.Sprintf("Make sure %s exists and is a directory", e.Source)
}

// SignalError represents a signal that could not be delivered to a process.
type SignalError struct {
	// PID is the target process
	PID int

	// Signal is the signal name, e.g. "interrupt"
	Signal string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *SignalError) Error() string {
	return fmt.Sprintf("failed to send %s to pid %d: %v", e.Signal, e.PID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SignalError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *SignalError) ErrorType() string { return "signal" }
