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
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Colour is off when stdout is not a terminal or NO_COLOR is set, so piped
// status output stays plain.
var colour = IsTerminal(os.Stdout) && os.Getenv("NO_COLOR") == ""

func fg(c string) lipgloss.Style {
	s := lipgloss.NewStyle()
	if colour {
		s = s.Foreground(lipgloss.Color(c))
	}
	return s
}

func bold() lipgloss.Style {
	return lipgloss.NewStyle().Bold(colour)
}

// Styles used by status and error output.
var (
	StatusOK    = fg("42")  // green
	StatusWarn  = fg("214") // orange
	StatusError = fg("196") // red
	Muted       = fg("245") // gray
	Bold        = bold()
	Header      = bold().Inherit(fg("39"))
)

const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// RenderOK renders a success message with green checkmark
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn renders a warning message with orange symbol
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderError renders an error message with red X
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderLabel renders a dim label for key: value lines.
func RenderLabel(label string) string {
	return Muted.Render(label)
}

// RenderEngineState colours a supervisor state name as reported by
// /healthz.
func RenderEngineState(state string) string {
	switch state {
	case "running":
		return StatusOK.Render(state)
	case "idle", "mounting", "shutting_down":
		return StatusWarn.Render(state)
	case "stopped":
		return StatusError.Render(state)
	default:
		return state
	}
}
