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

package version

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/engine"
)

// Info is the build and target description printed by `xunlei version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`

	// Launcher is the engine binary name this build starts.
	Launcher string `json:"launcher"`

	// DSM is the NAS firmware version reported to the engine.
	DSM string `json:"dsm"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the xunlei build, the platform it was built for and the
engine binary it launches on this architecture.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}
}

func currentInfo() Info {
	v, c, b := shared.GetVersion()
	return Info{
		Version:   v,
		Commit:    c,
		BuildDate: b,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Launcher:  filepath.Base(engine.NewLayout("").Launcher()),
		DSM:       engine.DSMVersionMajor + "." + engine.DSMVersionMinor + "-" + engine.DSMVersionBuild,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := currentInfo()

	if shared.GetJSON() {
		return shared.WriteJSON(cmd.OutOrStdout(), info)
	}

	cmd.Printf("xunlei version %s\n", info.Version)
	cmd.Printf("  commit:     %s\n", info.Commit)
	cmd.Printf("  build date: %s\n", info.BuildDate)
	cmd.Printf("  go:         %s (%s)\n", info.GoVersion, info.Platform)
	cmd.Printf("  engine:     %s (DSM %s)\n", info.Launcher, info.DSM)
	return nil
}
