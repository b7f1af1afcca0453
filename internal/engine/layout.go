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

// Package engine describes the on-disk layout of the vendor engine package
// and the environment and flags it expects when launched.
package engine

import (
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
)

// Package identity and the DSM version the engine is told it runs on.
const (
	PackageName     = "pan-xunlei-com"
	DSMVersionMajor = "7"
	DSMVersionMinor = "0"
	DSMVersionBuild = "1"
)

// Defaults for a stock installation.
const (
	DefaultPackageDir  = "/var/packages/" + PackageName + "/target"
	DefaultConfigDir   = "/opt/xunlei"
	DefaultDownloadDir = "/opt/xunlei/downloads"
	DefaultMountPath   = "/xunlei"

	// HomePath is the web UI entry point served by the web frontend.
	HomePath = "/webman/3rdparty/" + PackageName + "/index.cgi/"
)

// Layout resolves the fixed file names inside an installed package directory.
type Layout struct {
	// PackageDir is the package target directory, e.g. /var/packages/pan-xunlei-com/target.
	PackageDir string
}

// NewLayout returns a Layout rooted at dir, or at DefaultPackageDir when dir is empty.
func NewLayout(dir string) Layout {
	if dir == "" {
		dir = DefaultPackageDir
	}
	return Layout{PackageDir: filepath.Clean(dir)}
}

// VarDir is the runtime state directory holding sockets, pid files and logs.
func (l Layout) VarDir() string { return filepath.Join(l.PackageDir, "var") }

// WebFrontend is the CGI executable invoked once per request.
func (l Layout) WebFrontend() string { return filepath.Join(l.PackageDir, "xunlei-pan-cli-web") }

// Launcher is the long-lived engine binary for the host architecture.
func (l Layout) Launcher() string {
	return filepath.Join(l.PackageDir, "xunlei-pan-cli-launcher."+launcherArch(runtime.GOARCH))
}

// Socket is the listen address handed to the engine as DriveListen.
func (l Layout) Socket() string { return "unix://" + l.varFile(".sock") }

// LauncherSocket is the launcher's control socket address.
func (l Layout) LauncherSocket() string { return "unix://" + l.varFile("-launcher.sock") }

// PIDFile is where the engine records its own pid.
func (l Layout) PIDFile() string { return l.varFile(".pid") }

// EnvFile is the engine's persisted environment file.
func (l Layout) EnvFile() string { return l.varFile(".env") }

// LogFile is the engine's log file.
func (l Layout) LogFile() string { return l.varFile(".log") }

// LaunchPIDFile is the launcher's pid file.
func (l Layout) LaunchPIDFile() string { return l.varFile("-launcher.pid") }

// LaunchLogFile is the launcher's log file.
func (l Layout) LaunchLogFile() string { return l.varFile("-launcher.log") }

// InstallLog is the package install log.
func (l Layout) InstallLog() string { return l.varFile("_install.log") }

func (l Layout) varFile(suffix string) string {
	return filepath.Join(l.VarDir(), PackageName+suffix)
}

// LaunchArgs are the fixed flags the launcher is started with.
func (l Layout) LaunchArgs() []string {
	return []string{
		"-launcher_listen=" + l.LauncherSocket(),
		"-pid=" + l.PIDFile(),
		"-logfile=" + l.LaunchLogFile(),
	}
}

// Environment returns the static environment shared by the launcher and
// every web frontend invocation. configDir becomes the engine's HOME and
// downloadPath is the path the engine sees downloads under (the mount target).
func (l Layout) Environment(configDir, downloadPath string) map[string]string {
	return map[string]string{
		"DriveListen":               l.Socket(),
		"OS_VERSION":                fmt.Sprintf("dsm %s.%s-%s", DSMVersionMajor, DSMVersionMinor, DSMVersionBuild),
		"HOME":                      configDir,
		"ConfigPath":                configDir,
		"DownloadPATH":              downloadPath,
		"SYNOPKG_DSM_VERSION_MAJOR": DSMVersionMajor,
		"SYNOPKG_DSM_VERSION_MINOR": DSMVersionMinor,
		"SYNOPKG_DSM_VERSION_BUILD": DSMVersionBuild,
		"SYNOPKG_PKGDEST":           l.PackageDir,
		"SYNOPKG_PKGNAME":           PackageName,
		"SVC_CWD":                   l.PackageDir,
		"PID_FILE":                  l.PIDFile(),
		"ENV_FILE":                  l.EnvFile(),
		"LOG_FILE":                  l.LogFile(),
		"LAUNCH_LOG_FILE":           l.LaunchLogFile(),
		"LAUNCH_PID_FILE":           l.LaunchPIDFile(),
		"INST_LOG":                  l.InstallLog(),
		"GIN_MODE":                  "release",
	}
}

func launcherArch(goarch string) string {
	switch goarch {
	case "arm64":
		return "arm64"
	case "amd64":
		return "amd64"
	default:
		return goarch
	}
}

// EnvList renders env as sorted KEY=VALUE pairs for exec.
func EnvList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
