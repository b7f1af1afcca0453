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

//go:build linux

package supervisor

import (
	"golang.org/x/sys/unix"

	xerrors "github.com/tombee/xunlei/pkg/errors"
)

// OSMounter manages bind mounts with mount(2).
type OSMounter struct{}

// BindMount makes source visible at target.
func (OSMounter) BindMount(source, target string) error {
	if err := unix.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
		return &xerrors.MountError{Op: "bind", Source: source, Target: target, Cause: err}
	}
	return nil
}

// Unmount lazily detaches target so a busy mount does not block shutdown.
func (OSMounter) Unmount(target string) error {
	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
		return &xerrors.MountError{Op: "unmount", Target: target, Cause: err}
	}
	return nil
}
