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

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLayout_Default(t *testing.T) {
	l := NewLayout("")
	assert.Equal(t, DefaultPackageDir, l.PackageDir)
	assert.Equal(t, "/var/packages/pan-xunlei-com/target/var", l.VarDir())
	assert.Equal(t, "/var/packages/pan-xunlei-com/target/xunlei-pan-cli-web", l.WebFrontend())
	assert.Equal(t, "unix:///var/packages/pan-xunlei-com/target/var/pan-xunlei-com.sock", l.Socket())
	assert.Equal(t, "/var/packages/pan-xunlei-com/target/var/pan-xunlei-com-launcher.pid", l.LaunchPIDFile())
	assert.Equal(t, "/var/packages/pan-xunlei-com/target/var/pan-xunlei-com_install.log", l.InstallLog())
}

func TestLayout_LaunchArgs(t *testing.T) {
	l := NewLayout("/pkg/")
	assert.Equal(t, []string{
		"-launcher_listen=unix:///pkg/var/pan-xunlei-com-launcher.sock",
		"-pid=/pkg/var/pan-xunlei-com.pid",
		"-logfile=/pkg/var/pan-xunlei-com-launcher.log",
	}, l.LaunchArgs())
}

func TestLayout_Environment(t *testing.T) {
	env := NewLayout("/pkg").Environment("/opt/xunlei", "/xunlei")

	assert.Equal(t, "unix:///pkg/var/pan-xunlei-com.sock", env["DriveListen"])
	assert.Equal(t, "dsm 7.0-1", env["OS_VERSION"])
	assert.Equal(t, "/opt/xunlei", env["HOME"])
	assert.Equal(t, "/opt/xunlei", env["ConfigPath"])
	assert.Equal(t, "/xunlei", env["DownloadPATH"])
	assert.Equal(t, "/pkg", env["SYNOPKG_PKGDEST"])
	assert.Equal(t, "/pkg", env["SVC_CWD"])
	assert.Equal(t, PackageName, env["SYNOPKG_PKGNAME"])
	assert.Equal(t, "release", env["GIN_MODE"])
	assert.Len(t, env, 18)
}

func TestLauncherArch(t *testing.T) {
	assert.Equal(t, "amd64", launcherArch("amd64"))
	assert.Equal(t, "arm64", launcherArch("arm64"))
	assert.Equal(t, "riscv64", launcherArch("riscv64"))
}

func TestEnvList(t *testing.T) {
	got := EnvList(map[string]string{"b": "2", "A": "1", "HOME": "/opt/xunlei"})
	assert.Equal(t, []string{"A=1", "HOME=/opt/xunlei", "b=2"}, got)
}
