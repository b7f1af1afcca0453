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

package daemon

import (
	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/run"
)

// NewRestartCommand creates the restart command.
func NewRestartCommand() *cobra.Command {
	var (
		stop  stopOptions
		start startOptions
	)

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background launcher",
		Long: `Restart the launcher by stopping and starting it.

This is equivalent to running 'xunlei stop' followed by 'xunlei start'.
Use this after configuration changes.`,
		Example: `  # Restart
  xunlei restart

  # Restart, killing a launcher that does not stop in time
  xunlei restart --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stop.pidFile = start.run.PIDFile
			if err := runStop(stop); err != nil {
				return err
			}
			return runStart(cmd.Context(), start)
		},
	}

	cmd.Flags().DurationVar(&stop.timeout, "stop-timeout", 0, "Graceful shutdown timeout (default: daemon.stop_timeout)")
	cmd.Flags().BoolVar(&stop.force, "force", false, "Send SIGKILL if the stop timeout is exceeded")
	cmd.Flags().DurationVar(&start.timeout, "timeout", 0, "Health check timeout (default: daemon.start_timeout)")
	run.AddFlags(cmd, &start.run)

	return cmd
}
