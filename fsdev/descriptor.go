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

package fsdev

import (
	"sync"

	"github.com/spdk-go/fsdev/fsdevthread"
)

// Descriptor is an open handle to an Fsdev held by a client (spec §3
// FsdevDescriptor). It pins its Fsdev against removal until Close and
// receives a single EventRemove event if the Fsdev is torn down while the
// descriptor is still open.
type Descriptor struct {
	Fsdev *Fsdev

	thread   fsdevthread.Thread
	eventCB  EventCB
	eventCtx any

	mu     sync.Mutex
	closed bool

	// refs counts in-flight remove notifications posted to thread but not
	// yet delivered, grounded on struct spdk_fsdev_desc's refs field. It is
	// bookkeeping only: Go's garbage collector frees the Descriptor itself,
	// and Close does not consult refs.
	refs int
}

func newDescriptor(fsdev *Fsdev, thread fsdevthread.Thread, cb EventCB, ctx any) *Descriptor {
	return &Descriptor{Fsdev: fsdev, thread: thread, eventCB: cb, eventCtx: ctx}
}

// Thread returns the thread this descriptor was opened on; every core
// call that must run on "the opening thread" checks against it.
func (d *Descriptor) Thread() fsdevthread.Thread { return d.thread }

// Close marks the descriptor closed and detaches it from its Fsdev
// immediately, even while a remove notification is still in flight (that
// notification then sees closed and delivers no event). It must be called
// on the thread that opened the descriptor.
func (d *Descriptor) Close() error {
	if !d.thread.IsCurrent() {
		return ErrNotSupported
	}

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	empty, removing := d.Fsdev.removeDescriptor(d)
	if empty && removing {
		d.Fsdev.registry.finishRemoval(d.Fsdev)
	}
	return nil
}

// bumpRefForNotify is called by the registry, under the Fsdev's lock,
// once per descriptor immediately before posting notifyRemove to it
// (grounded on fsdev_unregister_unsafe's refs++ before
// spdk_thread_send_msg).
func (d *Descriptor) bumpRefForNotify() {
	d.mu.Lock()
	d.refs++
	d.mu.Unlock()
}

// notifyRemove delivers one EventRemove to the descriptor's owner, or —
// if the descriptor was already closed by the time this notification was
// delivered — simply accounts for the fact that Close could not have
// finished tearing the Fsdev down while this notification was still in
// flight (grounded on _remove_notify in the original source). It must
// only ever run on d.thread.
func (d *Descriptor) notifyRemove() {
	d.mu.Lock()
	d.refs--
	closed := d.closed
	d.mu.Unlock()

	if !closed {
		d.eventCB(EventRemove, d.Fsdev, d.eventCtx)
	}
}
