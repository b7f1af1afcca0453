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

// ErrorClassifier is implemented by every typed error in this package.
// ErrorType is a short stable label ("config", "spawn", "protocol", "io",
// "mount", "signal") used in metrics, span status and exit code mapping.
type ErrorClassifier interface {
	error
	ErrorType() string
}

// UserVisibleError marks errors whose message is meant for the operator
// running the CLI, usually because they point at something in the config
// file or the host that the operator has to fix.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string

	// Suggestion is a one-line fix, or empty.
	Suggestion() string
}
