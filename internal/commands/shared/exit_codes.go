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
	"os"

	pkgerrors "github.com/tombee/xunlei/pkg/errors"
)

// Exit codes. ExitNotRunning follows the LSB convention for status.
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitNotRunning = 3
	ExitEngine     = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewNotRunningError reports that no launcher is running.
func NewNotRunningError(msg string) *ExitError {
	return &ExitError{Code: ExitNotRunning, Message: msg}
}

// ExitCodeFor picks the exit code for err: an ExitError's own code, or one
// derived from the error's class.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch pkgerrors.Classify(err) {
	case "config":
		return ExitConfig
	case "mount", "spawn", "signal":
		return ExitEngine
	default:
		return ExitFailure
	}
}

// HandleExitError prints err with any suggestion it carries and exits
// with the matching code.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, RenderError("Error: "+err.Error()))
	printUserVisibleSuggestion(err)

	os.Exit(ExitCodeFor(err))
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available.
func printUserVisibleSuggestion(err error) {
	if s := suggestionFor(err); s != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", s)
	}
}

func suggestionFor(err error) string {
	var userErr pkgerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		return userErr.Suggestion()
	}
	return ""
}
