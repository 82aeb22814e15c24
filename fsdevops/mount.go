// Copyright 2015 Google Inc. All Rights Reserved.
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

package fsdevops

import "github.com/spdk-go/fsdev/fsdev"

// MountInput carries the caller's desired mount options.
type MountInput struct {
	Opts fsdev.MountOpts
}

// MountResult carries the backend's negotiated mount options, which may
// only be a reduction of what was requested (spec §4.3, §9 open
// question: "conflates 'feature was initially off -> cannot be turned
// on' with forward-compatibility size-check"; this builder does not
// attempt to disentangle that, per the spec's instruction to preserve
// the behavior rather than fix it), plus the root FileObject.
type MountResult struct {
	Opts fsdev.MountOpts
	Root fsdev.FileObject
}

// MountCompletionFunc receives the negotiated mount result.
type MountCompletionFunc func(status error, result *MountResult)

// Mount begins a session against desc's Fsdev. The dispatcher calls this
// exactly once per FUSE INIT that successfully negotiates a protocol
// major (spec §4.4).
func Mount(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, opts fsdev.MountOpts, cb MountCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpMount, &MountInput{Opts: opts}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*MountResult)
		cb(status, res)
	})
}

// UmountCompletionFunc receives only a status: umount has no outputs.
type UmountCompletionFunc func(status error)

// Umount ends the session against desc's Fsdev, implicitly dropping every
// cached lookup reference (spec §4.3). Called on FUSE DESTROY, or as part
// of the dispatcher's mount-rollback path (spec §4.4).
func Umount(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, cb UmountCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpUmount, nil, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}
