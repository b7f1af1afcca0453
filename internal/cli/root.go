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

package cli

import (
	"github.com/spf13/cobra"

	daemoncmd "github.com/tombee/xunlei/internal/commands/daemon"
	"github.com/tombee/xunlei/internal/commands/run"
	"github.com/tombee/xunlei/internal/commands/shared"
	versioncmd "github.com/tombee/xunlei/internal/commands/version"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command with every subcommand
// registered.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xunlei",
		Short: "xunlei - launcher and authenticated gateway for the Xunlei download engine",
		Long: `xunlei runs the Xunlei download engine outside its NAS package manager.

It bind-mounts the download directory where the engine expects it, starts
the engine, and serves the engine's web UI through a password-protected
CGI gateway. On SIGINT, SIGHUP or SIGTERM it drains the gateway, stops the
engine and removes the mount.

Run 'xunlei run' to stay in the foreground, or 'xunlei start' to run in
the background.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/xunlei/config.yaml)")

	cmd.AddCommand(run.NewCommand())
	cmd.AddCommand(daemoncmd.NewCommands()...)
	cmd.AddCommand(versioncmd.NewVersionCommand())
	cmd.SetHelpCommand(NewHelpCommand(cmd))

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
