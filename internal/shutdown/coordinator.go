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

// Package shutdown provides the one-shot notification the supervisor uses
// to tell the gateway's serve loop to stop admitting work.
package shutdown

import "sync"

// Notifier is the producer side of a Coordinator.
type Notifier interface {
	// Notify fires the notification. It reports whether this call was
	// the one that fired it; later calls are no-ops.
	Notify() bool
}

// Coordinator is a single-fire, one-directional notification. The zero
// value is not usable; create one with New.
type Coordinator struct {
	once sync.Once
	done chan struct{}
}

// New creates a Coordinator that has not fired.
func New() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// Notify fires the coordinator. Only the first call has an effect.
// It never blocks and never waits for the consumer.
func (c *Coordinator) Notify() bool {
	fired := false
	c.once.Do(func() {
		close(c.done)
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once Notify has been called.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Fired reports whether Notify has been called.
func (c *Coordinator) Fired() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
