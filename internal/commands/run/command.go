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

// Package run implements the foreground launcher command.
package run

import (
	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/daemon"
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var opts daemon.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the launcher in the foreground",
		Long: `Run the launcher in the current terminal.

The launcher bind-mounts the download directory, starts the engine and
serves the web UI through the authenticated CGI gateway. SIGINT, SIGHUP
or SIGTERM stop the gateway, interrupt the engine and remove the mount.

Flags override the config file and XUNLEI_* environment variables.`,
		Example: `  # Run with the default config
  xunlei run

  # Serve on another port with a separate download disk
  xunlei run --listen 0.0.0.0:2345 --download-dir /mnt/disk1/downloads

  # Forward engine output for debugging
  xunlei run --debug`,
		Annotations: map[string]string{"group": "daemon"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, c, b := shared.GetVersion()
			opts.Version, opts.Commit, opts.BuildDate = v, c, b
			opts.ConfigPath = shared.GetConfigPath()
			if shared.GetVerbose() {
				opts.Debug = true
			}
			return daemon.Run(opts)
		},
	}

	AddFlags(cmd, &opts)
	return cmd
}

// AddFlags registers the config override flags on cmd.
func AddFlags(cmd *cobra.Command, opts *daemon.RunOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.Listen, "listen", "", "Gateway listen address (host:port)")
	f.StringVar(&opts.PackageDir, "package-dir", "", "Installed engine package directory")
	f.StringVar(&opts.ConfigDir, "config-dir", "", "Engine config and HOME directory")
	f.StringVar(&opts.DownloadDir, "download-dir", "", "Real download directory on the host")
	f.StringVar(&opts.MountPath, "mount-path", "", "Path the download directory is bind-mounted to")
	f.StringVar(&opts.TLSCert, "tls-cert", "", "Path to TLS certificate file")
	f.StringVar(&opts.TLSKey, "tls-key", "", "Path to TLS private key file")
	f.StringVar(&opts.PIDFile, "pid-file", "", "PID file path")
	f.BoolVar(&opts.Debug, "debug", false, "Forward engine output and log at debug level")
}

// Args rebuilds the command line for a detached child from opts.
func Args(opts daemon.RunOptions) []string {
	args := []string{"run"}
	add := func(flag, value string) {
		if value != "" {
			args = append(args, "--"+flag, value)
		}
	}
	add("listen", opts.Listen)
	add("package-dir", opts.PackageDir)
	add("config-dir", opts.ConfigDir)
	add("download-dir", opts.DownloadDir)
	add("mount-path", opts.MountPath)
	add("tls-cert", opts.TLSCert)
	add("tls-key", opts.TLSKey)
	add("pid-file", opts.PIDFile)
	if opts.Debug {
		args = append(args, "--debug")
	}
	return append(args, shared.ConfigArgs()...)
}
