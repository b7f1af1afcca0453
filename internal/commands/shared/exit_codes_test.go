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

package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/tombee/xunlei/pkg/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", &ExitError{Code: 42, Message: "custom"}, 42},
		{"not running", NewNotRunningError("xunlei is not running"), ExitNotRunning},
		{"config error", &pkgerrors.ConfigError{Key: "server.listen", Reason: "bad"}, ExitConfig},
		{"wrapped config error", fmt.Errorf("failed to load config: %w", &pkgerrors.ConfigError{Reason: "bad"}), ExitConfig},
		{"mount error", &pkgerrors.MountError{Op: "bind", Target: "/mnt"}, ExitEngine},
		{"spawn error", &pkgerrors.SpawnError{Path: "/bin/engine"}, ExitEngine},
		{"io error", &pkgerrors.IOError{Op: "write stdin"}, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	exitErr := &ExitError{Code: ExitFailure, Message: "start failed", Cause: innerErr}

	if errors.Unwrap(exitErr) != innerErr {
		t.Errorf("expected unwrapped error to be innerErr")
	}
	if exitErr.Error() != "start failed: inner error" {
		t.Errorf("Error() = %q", exitErr.Error())
	}
}

func TestSuggestionFor(t *testing.T) {
	wrapped := fmt.Errorf("daemon error: %w", &pkgerrors.ConfigError{Key: "engine.uid", Reason: "bad"})
	if s := suggestionFor(wrapped); !strings.Contains(s, "engine.uid") {
		t.Errorf("suggestionFor(wrapped config error) = %q", s)
	}

	if s := suggestionFor(errors.New("some internal error")); s != "" {
		t.Errorf("suggestionFor(plain error) = %q, want empty", s)
	}
}
