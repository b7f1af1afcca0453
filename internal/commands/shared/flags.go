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
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// globals holds the persistent flags bound by the root command.
type globals struct {
	verbose bool
	quiet   bool
	json    bool
	config  string
}

var flags globals

// Build-time version information
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// stdout is where Infof writes; tests swap it.
var stdout io.Writer = os.Stdout

// RegisterFlagPointers returns pointers to the verbose, quiet, json and
// config flag values for the root command to bind.
func RegisterFlagPointers() (*bool, *bool, *bool, *string) {
	return &flags.verbose, &flags.quiet, &flags.json, &flags.config
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

func GetVerbose() bool { return flags.verbose }
func GetQuiet() bool   { return flags.quiet }
func GetJSON() bool    { return flags.json }

// GetConfigPath returns the --config value, empty for the XDG default.
func GetConfigPath() string { return flags.config }

// SetConfigPathForTest sets the config path for testing purposes
func SetConfigPathForTest(path string) { flags.config = path }

// ConfigArgs returns the flags that forward --config to a detached
// `xunlei run`. The path is made absolute because the child starts in the
// package directory.
func ConfigArgs() []string {
	if flags.config == "" {
		return nil
	}
	path := flags.config
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []string{"--config", path}
}

// Infof prints a progress line unless --quiet is set.
func Infof(format string, args ...any) {
	if flags.quiet {
		return
	}
	fmt.Fprintf(stdout, format+"\n", args...)
}
