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

import "sync"

// Fsdev is a named filesystem device exported by a backend. It is created
// by a backend at registration time and lives until it has no open
// descriptors and its backend's Destruct has completed.
type Fsdev struct {
	// Name is globally unique among registered Fsdevs.
	Name string

	// Ctx is the backend-private context passed back into every FnTable
	// method.
	Ctx any

	// FnTable is the backend's function table (spec §4.5).
	FnTable FnTable

	// Module is the backend family that registered this Fsdev.
	Module *Module

	// registry is the owning Registry, needed by Descriptor.Close to
	// finish a teardown that was only waiting on the last open
	// descriptor.
	registry *Registry

	// mu guards the fields below, ordered after the registry lock and
	// before any Descriptor's own lock (spec §5).
	mu        sync.Mutex
	status    Status
	openDescs map[*Descriptor]struct{}
	unregCB   func(error)
}

func newFsdev(name string, ctx any, fn FnTable, mod *Module, r *Registry) *Fsdev {
	return &Fsdev{
		Name:      name,
		Ctx:       ctx,
		FnTable:   fn,
		Module:    mod,
		registry:  r,
		status:    StatusReady,
		openDescs: make(map[*Descriptor]struct{}),
	}
}

// Status returns the Fsdev's current lifecycle state.
func (f *Fsdev) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// addDescriptor registers an open Descriptor against this Fsdev. Fails with
// KindNoDevice if the Fsdev is no longer accepting new opens.
func (f *Fsdev) addDescriptor(d *Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != StatusReady {
		return ErrNoDevice
	}

	f.openDescs[d] = struct{}{}
	return nil
}

func (f *Fsdev) removeDescriptor(d *Descriptor) (empty bool, removing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.openDescs, d)
	return len(f.openDescs) == 0, f.status == StatusRemoving
}

func (f *Fsdev) descriptors() []*Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Descriptor, 0, len(f.openDescs))
	for d := range f.openDescs {
		out = append(out, d)
	}
	return out
}

// beginUnregister is the sole teardown entry point, reached both when a
// caller explicitly tears an Fsdev down and when a backend detects its own
// hot-removal and unregisters itself the same way (spdk_fsdev_unregister has
// no separate hot-remove API; both paths are this one function). It guards
// against a double teardown, latches the completion callback, and flips
// status to Unregistering.
func (f *Fsdev) beginUnregister(cb func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status == StatusUnregistering || f.status == StatusRemoving {
		return ErrBusy
	}

	f.status = StatusUnregistering
	f.unregCB = cb
	return nil
}

// enterRemoving flips Unregistering to Removing immediately before the
// registry fans the REMOVE event out to open descriptors, mirroring
// fsdev_unregister() in the original: status becomes Removing only once
// channels are about to be aborted, so a descriptor's last Close racing
// against this fan-out never unregisters the I/O device twice.
func (f *Fsdev) enterRemoving() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = StatusRemoving
}

func (f *Fsdev) finishTeardown(err error) {
	f.mu.Lock()
	cb := f.unregCB
	f.unregCB = nil
	f.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}
