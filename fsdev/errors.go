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
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind enumerates the error taxonomy the fsdev core and the FUSE dispatcher
// surface. Every error returned across a package boundary in this module
// carries one of these.
type Kind int

const (
	// KindNone is the zero value; never returned as an error.
	KindNone Kind = iota

	// KindInvalid indicates a malformed request, unknown configuration
	// field, or invariant-violating argument.
	KindInvalid

	// KindNoDevice indicates the named fsdev is not present or not Ready.
	KindNoDevice

	// KindExists indicates a duplicate name on registration.
	KindExists

	// KindNoBuffers indicates the operation-descriptor pool is exhausted;
	// callers may retry.
	KindNoBuffers

	// KindOutOfMemory indicates a non-pool allocation failed.
	KindOutOfMemory

	// KindNotSupported indicates the backend (or dispatcher) does not
	// implement the requested operation.
	KindNotSupported

	// KindBusy indicates a transient conflict, e.g. double-unregister or
	// rmdir on a non-empty directory.
	KindBusy

	// KindIO indicates a backend data-path error propagated from the OS.
	KindIO

	// KindProtocol indicates a FUSE version mismatch or malformed header.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNoDevice:
		return "no such device"
	case KindExists:
		return "already exists"
	case KindNoBuffers:
		return "no buffers available"
	case KindOutOfMemory:
		return "out of memory"
	case KindNotSupported:
		return "not supported"
	case KindBusy:
		return "busy"
	case KindIO:
		return "I/O error"
	case KindProtocol:
		return "protocol error"
	default:
		return "unknown error"
	}
}

// Errno returns the syscall.Errno this Kind is conventionally reported as
// on the FUSE wire (negated in the out_header.error field).
func (k Kind) Errno() syscall.Errno {
	switch k {
	case KindInvalid:
		return unix.EINVAL
	case KindNoDevice:
		return unix.ENODEV
	case KindExists:
		return unix.EEXIST
	case KindNoBuffers:
		return unix.ENOBUFS
	case KindOutOfMemory:
		return unix.ENOMEM
	case KindNotSupported:
		return unix.ENOSYS
	case KindBusy:
		return unix.EBUSY
	case KindIO:
		return unix.EIO
	case KindProtocol:
		return unix.EPROTO
	default:
		return unix.EIO
	}
}

// Error is the error type returned across fsdev/fsdevops/fusedispatch
// boundaries. It always carries a Kind and, optionally, a more specific
// errno than the Kind's default (e.g. a backend reporting ENOENT, which
// still maps to no single Kind above but must round-trip to the wire
// exactly).
type Error struct {
	Kind  Kind
	Errno syscall.Errno
	msg   string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Kind.String()
}

// Unwrap lets callers use errors.Is/As against the underlying errno.
func (e *Error) Unwrap() error { return e.Errno }

// NewError builds an *Error of the given kind, deriving its errno from the
// kind's conventional mapping.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Errno: kind.Errno(), msg: msg}
}

// NewErrnoError builds an *Error that reports errno verbatim on the wire
// while still classifying under kind for callers that switch on Kind.
func NewErrnoError(kind Kind, errno syscall.Errno, msg string) *Error {
	return &Error{Kind: kind, Errno: errno, msg: msg}
}

// ErrNoBuffers, ErrOutOfMemory etc. are convenience sentinels for the most
// common synchronous-failure cases (§4.3: NoBuffers/OutOfMemory return
// synchronously from submit, never via the completion callback).
var (
	ErrNoBuffers    = NewError(KindNoBuffers, "no buffers available")
	ErrOutOfMemory  = NewError(KindOutOfMemory, "out of memory")
	ErrInvalid      = NewError(KindInvalid, "invalid argument")
	ErrNoDevice     = NewError(KindNoDevice, "no such device")
	ErrExists       = NewError(KindExists, "already exists")
	ErrBusy         = NewError(KindBusy, "busy")
	ErrNotSupported = NewError(KindNotSupported, "not supported")
)

// AsErrno converts any error into the errno that should be reported on the
// FUSE wire. A plain syscall.Errno is passed through; an *Error reports its
// Errno field; anything else maps to EIO.
func AsErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var fe *Error
	if e, ok := err.(*Error); ok {
		fe = e
	} else if ok := asError(err, &fe); ok {
		// fall through, fe is set
	}
	if fe != nil {
		return fe.Errno
	}

	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}

	return unix.EIO
}

func asError(err error, target **Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
