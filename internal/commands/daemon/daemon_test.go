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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/lifecycle"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ServerConfig
		want string
	}{
		{"wildcard v4", config.ServerConfig{Listen: "0.0.0.0:5055"}, "http://127.0.0.1:5055/healthz"},
		{"wildcard v6", config.ServerConfig{Listen: "[::]:5055"}, "http://127.0.0.1:5055/healthz"},
		{"empty host", config.ServerConfig{Listen: ":2345"}, "http://127.0.0.1:2345/healthz"},
		{"specific host", config.ServerConfig{Listen: "192.168.1.10:5055"}, "http://192.168.1.10:5055/healthz"},
		{"tls", config.ServerConfig{Listen: "0.0.0.0:5055", TLSCert: "c.pem", TLSKey: "k.pem"}, "https://127.0.0.1:5055/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, healthURL(tt.cfg))
		})
	}
}

func TestTailLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xunlei.out")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	got, err := tailLines(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four"}, got)

	got, err = tailLines(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four"}, got)

	got, err = tailLines(path, 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = tailLines(filepath.Join(t.TempDir(), "missing"), 5)
	assert.True(t, os.IsNotExist(err))
}

func TestPrintLogs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "xunlei.out")
	errFile := filepath.Join(dir, "xunlei.err")
	require.NoError(t, os.WriteFile(out, []byte("listening\n"), 0o644))
	require.NoError(t, os.WriteFile(errFile, []byte("mount failed\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, printLogs(&buf, []string{out, errFile, filepath.Join(dir, "absent")}, 10, false))
	assert.Equal(t, "listening\nmount failed\n", buf.String())

	buf.Reset()
	require.NoError(t, printLogs(&buf, []string{out, errFile}, 10, true))
	assert.Contains(t, buf.String(), out)
	assert.Contains(t, buf.String(), errFile)
}

func TestCollectStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.2.3","engine":"running"}`))
	}))
	defer server.Close()

	pidPath := filepath.Join(t.TempDir(), "xunlei.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	cfg := config.Default()
	cfg.Server.Listen = strings.TrimPrefix(server.URL, "http://")
	cfg.Daemon.PIDFile = pidPath

	report := collectStatus(context.Background(), cfg, server.Client())
	assert.True(t, report.Running)
	assert.Equal(t, os.Getpid(), report.PID)
	assert.True(t, report.Healthy)
	assert.Equal(t, "running", report.Engine)
	assert.Equal(t, "1.2.3", report.Version)
	assert.Empty(t, report.Error)
}

func TestCollectStatus_EngineStopped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable","engine":"stopped"}`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Server.Listen = strings.TrimPrefix(server.URL, "http://")
	cfg.Daemon.PIDFile = filepath.Join(t.TempDir(), "absent.pid")

	report := collectStatus(context.Background(), cfg, server.Client())
	assert.False(t, report.Running)
	assert.Zero(t, report.PID)
	assert.False(t, report.Healthy)
	assert.Equal(t, "stopped", report.Engine)
}

func TestCollectStatus_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	listen := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	cfg := config.Default()
	cfg.Server.Listen = listen
	cfg.Daemon.PIDFile = filepath.Join(t.TempDir(), "absent.pid")

	report := collectStatus(context.Background(), cfg, http.DefaultClient)
	assert.False(t, report.Healthy)
	assert.NotEmpty(t, report.Error)
}

func TestCheckExisting(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	events := lifecycle.NewEventLog("")

	t.Run("no pid file", func(t *testing.T) {
		running, err := checkExisting(context.Background(), cfg, lifecycle.NewPIDFile(filepath.Join(dir, "none.pid")), events)
		require.NoError(t, err)
		assert.False(t, running)
	})

	t.Run("stale pid file", func(t *testing.T) {
		cmd := exec.Command("true")
		require.NoError(t, cmd.Run())

		path := filepath.Join(dir, "stale.pid")
		require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644))

		running, err := checkExisting(context.Background(), cfg, lifecycle.NewPIDFile(path), events)
		require.NoError(t, err)
		assert.False(t, running)
	})
}

func writeConfig(t *testing.T, pidFile string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "daemon:\n  pid_file: " + pidFile + "\n  lifecycle_log: " + filepath.Join(filepath.Dir(pidFile), "lifecycle.log") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
}

func TestRunStop_NotRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "xunlei.pid")
	writeConfig(t, pidFile)

	require.NoError(t, runStop(stopOptions{}))
}

func TestRunStop_StalePIDFile(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "xunlei.pid")
	writeConfig(t, pidFile)

	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644))

	require.NoError(t, runStop(stopOptions{}))

	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")

	data, err := os.ReadFile(filepath.Join(dir, "lifecycle.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"stale_pid"`)
}

func TestRunStop_RefusesForeignProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "xunlei.pid")
	writeConfig(t, pidFile)

	// The test binary is alive but is not an xunlei launcher.
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

	err := runStop(stopOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to stop")
}

func TestNewCommands(t *testing.T) {
	var names []string
	for _, cmd := range NewCommands() {
		names = append(names, cmd.Name())
	}
	assert.Equal(t, []string{"start", "stop", "restart", "status", "log"}, names)
}
