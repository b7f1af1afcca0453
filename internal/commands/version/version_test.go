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
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/xunlei/internal/commands/shared"
)

func withVersion(t *testing.T) {
	t.Helper()
	shared.SetVersion("3.11.2", "a1b2c3d", "2024-05-01")
	t.Cleanup(func() { shared.SetVersion("dev", "unknown", "unknown") })
}

func TestVersionCommand_Text(t *testing.T) {
	withVersion(t)

	cmd := NewVersionCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "xunlei version 3.11.2")
	assert.Contains(t, out, "commit:     a1b2c3d")
	assert.Contains(t, out, "xunlei-pan-cli-launcher."+runtime.GOARCH)
	assert.Contains(t, out, "DSM 7.0-1")
}

func TestVersionCommand_RejectsArgs(t *testing.T) {
	cmd := NewVersionCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand_JSON(t *testing.T) {
	withVersion(t)

	root := &cobra.Command{Use: "xunlei"}
	_, _, jsonFlag, _ := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(jsonFlag, "json", false, "JSON output")
	t.Cleanup(func() { *jsonFlag = false })

	root.AddCommand(NewVersionCommand())
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info), buf.String())
	assert.Equal(t, "3.11.2", info.Version)
	assert.Equal(t, "a1b2c3d", info.Commit)
	assert.Equal(t, "2024-05-01", info.BuildDate)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, "xunlei-pan-cli-launcher."+runtime.GOARCH, info.Launcher)
	assert.NotEmpty(t, info.GoVersion)
}
