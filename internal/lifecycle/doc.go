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

/*
Package lifecycle backs the start, stop and status commands: the pid file
of a running launcher, signalling it, spawning it detached and waiting for
its gateway to answer health checks.

The pid file is created with O_EXCL and held under flock for the lifetime
of the launcher, so a second launcher on the same host refuses to start:

	pf := lifecycle.NewPIDFile("/var/run/xunlei.pid")
	if _, err := pf.Acquire(os.Getpid()); err != nil {
	    // another launcher is running
	}
	defer pf.Release()

Signals are only sent to pids whose command line names xunlei, so a stale
pid file that now points at an unrelated process is never acted upon:

	pid, _ := pf.Read()
	if lifecycle.IsXunleiProcess(pid) {
	    err := lifecycle.Stop(pid, 30*time.Second, false)
	}

Start and stop transitions are appended to a JSON-lines event log:

	events := lifecycle.NewEventLog("/var/run/xunlei.lifecycle.log")
	events.Record(lifecycle.Event{Kind: lifecycle.EventStart, Version: version})
*/
package lifecycle
