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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/xunlei/internal/commands/shared"
	"github.com/tombee/xunlei/internal/config"
	"github.com/tombee/xunlei/internal/daemon/api"
	"github.com/tombee/xunlei/internal/lifecycle"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show launcher status",
		Long: `Show whether the launcher is running, whether its gateway answers
health checks, and the engine state it reports.

Exits with status 3 when the launcher is not running.`,
		Example: `  # Show status
  xunlei status

  # Machine-readable
  xunlei status --json | jq -r '.engine'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			report := collectStatus(ctx, cfg, healthClient(cfg.Server))
			if shared.GetJSON() {
				if err := shared.EmitJSON(report); err != nil {
					return err
				}
			} else {
				printStatus(report)
			}

			if !report.Running && !report.Healthy {
				return shared.NewNotRunningError("xunlei is not running")
			}
			return nil
		},
	}
}

type statusReport struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Command string `json:"command,omitempty"`
	PIDFile string `json:"pid_file"`
	Listen  string `json:"listen"`
	Healthy bool   `json:"healthy"`
	Engine  string `json:"engine,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func collectStatus(ctx context.Context, cfg *config.Config, client *http.Client) statusReport {
	report := statusReport{
		PIDFile: cfg.Daemon.PIDFile,
		Listen:  cfg.Server.Listen,
	}

	if pid, err := lifecycle.NewPIDFile(cfg.Daemon.PIDFile).Read(); err == nil {
		info := lifecycle.Inspect(pid)
		report.PID = pid
		report.Running = info.Running
		report.Command = info.Command
	}

	health, err := fetchHealth(ctx, client, healthURL(cfg.Server))
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Healthy = health.Status == "ok"
	report.Engine = health.Engine
	report.Version = health.Version
	return report
}

func fetchHealth(ctx context.Context, client *http.Client, url string) (*api.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("unexpected health response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &health, nil
}

func printStatus(r statusReport) {
	fmt.Println(shared.Header.Render("xunlei status"))
	fmt.Println()

	if r.Running {
		fmt.Printf("%s %s\n", shared.RenderLabel("Launcher:"), shared.StatusOK.Render(fmt.Sprintf("running (PID %d)", r.PID)))
		if r.Command != "" {
			fmt.Printf("%s %s\n", shared.RenderLabel("Command:"), r.Command)
		}
	} else if r.PID != 0 {
		fmt.Printf("%s %s\n", shared.RenderLabel("Launcher:"), shared.StatusWarn.Render(fmt.Sprintf("not running (stale PID %d)", r.PID)))
	} else {
		fmt.Printf("%s %s\n", shared.RenderLabel("Launcher:"), shared.StatusError.Render("not running"))
	}
	fmt.Printf("%s %s\n", shared.RenderLabel("PID file:"), r.PIDFile)
	fmt.Printf("%s %s\n", shared.RenderLabel("Listen:"), r.Listen)

	switch {
	case r.Healthy:
		fmt.Printf("%s %s\n", shared.RenderLabel("Gateway:"), shared.StatusOK.Render("healthy"))
	case r.Error != "":
		fmt.Printf("%s %s %s\n", shared.RenderLabel("Gateway:"), shared.StatusError.Render("unreachable"), shared.Muted.Render(r.Error))
	default:
		fmt.Printf("%s %s\n", shared.RenderLabel("Gateway:"), shared.StatusWarn.Render("unavailable"))
	}
	if r.Engine != "" {
		fmt.Printf("%s %s\n", shared.RenderLabel("Engine:"), shared.RenderEngineState(r.Engine))
	}
	if r.Version != "" {
		fmt.Printf("%s %s\n", shared.RenderLabel("Version:"), shared.Bold.Render(r.Version))
	}
}
