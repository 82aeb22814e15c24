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

import "io"

// BackendChannel is the handle a backend's GetIOChannel returns: a
// thread-bound I/O endpoint usable only from the thread that obtained it.
// The core treats it as opaque and compares instances for identity when
// coalescing SharedResources (spec §4.2).
type BackendChannel interface {
	// Close releases the backend channel. Called when the last Channel
	// referencing it through a SharedResource is destroyed.
	Close()
}

// FnTable is the Backend Adapter Contract (spec §4.5): the function table
// every backend exposes. Destruct, SubmitRequest, and GetIOChannel are
// mandatory; WriteConfigJSON and GetMemoryDomains are optional and default
// to no-ops/NotSupported when embedded via NoOptionalMethods.
type FnTable interface {
	// Destruct tears down the backend context. A synchronous backend
	// returns nil directly; an asynchronous one returns ErrDestructPending
	// and later calls Registry.DestructDone for its Fsdev.
	Destruct(ctx any) error

	// SubmitRequest processes one OperationDescriptor on the given
	// channel. The backend must eventually call op.Complete (directly or
	// later, from any thread), possibly inline before SubmitRequest
	// returns.
	SubmitRequest(ch BackendChannel, op *OperationDescriptor)

	// GetIOChannel returns a channel usable only from the calling thread.
	GetIOChannel(ctx any) BackendChannel

	// WriteConfigJSON writes backend-specific RPC configuration. Optional:
	// embed NoOptionalMethods to report KindNotSupported instead.
	WriteConfigJSON(w io.Writer) error

	// GetMemoryDomains reports the memory domains this backend can source
	// read/write payloads from. Optional: embed NoOptionalMethods to
	// report KindNotSupported instead.
	GetMemoryDomains(ctx any) ([]any, error)
}

// NoOptionalMethods is embeddable in a backend's FnTable implementation to
// supply KindNotSupported for the two optional methods, so the core never
// has to nil-check a function pointer at the call site (spec §9: "dynamic
// function tables with optional entries").
type NoOptionalMethods struct{}

func (NoOptionalMethods) WriteConfigJSON(w io.Writer) error {
	return NewError(KindNotSupported, "write_config_json not implemented")
}

func (NoOptionalMethods) GetMemoryDomains(ctx any) ([]any, error) {
	return nil, NewError(KindNotSupported, "get_memory_domains not implemented")
}

// DestructDoneCB is the signature of a teardown-completion callback. The
// Registry does not accept or call one; a backend whose Destruct returned
// ErrDestructPending reports completion through Registry.DestructDone.
type DestructDoneCB func(ctx any, err error)

// ErrDestructPending is returned by FnTable.Destruct to indicate
// asynchronous teardown is in progress; the backend must later call
// Registry.DestructDone for the Fsdev being torn down.
var ErrDestructPending = NewError(KindNone, "destruct pending")

// Module is a backend family: it registers itself once at process init,
// contributes a per-op driver-context size to the pool's descriptor tail
// (spec §4.1), and is torn down in reverse registration order at Finish.
type Module struct {
	// Name must be unique among registered modules.
	Name string

	// Init runs once during Initialize, in registration order. Modules
	// are not required to do anything here.
	Init func() error

	// Fini runs once during Finish, in reverse registration order, after
	// every Fsdev for every module has been unregistered. Optional.
	Fini func()

	// GetCtxSize returns the maximum per-operation driver scratch region
	// this module's backends need appended to each pooled
	// OperationDescriptor.
	GetCtxSize func() int

	// ConfigJSON writes module-level (not per-fsdev) RPC configuration.
	// Optional.
	ConfigJSON func(w io.Writer) error
}
