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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventStart          EventKind = "start"
	EventStarted        EventKind = "start_success"
	EventStartFailed    EventKind = "start_failure"
	EventStop           EventKind = "stop"
	EventStopped        EventKind = "stop_success"
	EventStopFailed     EventKind = "stop_failure"
	EventStalePID       EventKind = "stale_pid"
	EventAlreadyRunning EventKind = "already_running"
)

// Event is one line of the lifecycle log.
type Event struct {
	Time     time.Time     `json:"time"`
	Kind     EventKind     `json:"event"`
	PID      int           `json:"pid,omitempty"`
	Version  string        `json:"version,omitempty"`
	Args     []string      `json:"args,omitempty"`
	Config   string        `json:"config,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Force    bool          `json:"force,omitempty"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// EventLog appends events as JSON lines. A zero path disables it.
type EventLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewEventLog returns a log writing to path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path, now: time.Now}
}

// Record appends e, stamping the time when unset.
func (l *EventLog) Record(e Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lifecycle log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write lifecycle event: %w", err)
	}
	return nil
}

// Failure fills Error from err, if any, and returns e for chaining.
func (e Event) Failure(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
