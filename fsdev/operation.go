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
	"context"

	"github.com/jacobsa/reqtrace"

	"github.com/spdk-go/fsdev/fsdevthread"
	"github.com/spdk-go/fsdev/internal/iopool"
)

// OpKind tags an OperationDescriptor with the catalog entry it carries
// (spec §4.3's operation table).
type OpKind int

const (
	OpMount OpKind = iota
	OpUmount
	OpLookup
	OpForget
	OpGetAttr
	OpSetAttr
	OpReadlink
	OpSymlink
	OpMknod
	OpMkdir
	OpCreate
	OpUnlink
	OpRmdir
	OpRename
	OpLink
	OpOpen
	OpRelease
	OpRead
	OpWrite
	OpStatfs
	OpFsync
	OpFlush
	OpFsyncdir
	OpSetxattr
	OpGetxattr
	OpListxattr
	OpRemovexattr
	OpOpendir
	OpReaddir
	OpReleasedir
	OpFlock
	OpFallocate
	OpCopyFileRange
	OpAbort
)

func (k OpKind) String() string {
	switch k {
	case OpMount:
		return "mount"
	case OpUmount:
		return "umount"
	case OpLookup:
		return "lookup"
	case OpForget:
		return "forget"
	case OpGetAttr:
		return "getattr"
	case OpSetAttr:
		return "setattr"
	case OpReadlink:
		return "readlink"
	case OpSymlink:
		return "symlink"
	case OpMknod:
		return "mknod"
	case OpMkdir:
		return "mkdir"
	case OpCreate:
		return "create"
	case OpUnlink:
		return "unlink"
	case OpRmdir:
		return "rmdir"
	case OpRename:
		return "rename"
	case OpLink:
		return "link"
	case OpOpen:
		return "open"
	case OpRelease:
		return "release"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpStatfs:
		return "statfs"
	case OpFsync:
		return "fsync"
	case OpFlush:
		return "flush"
	case OpFsyncdir:
		return "fsyncdir"
	case OpSetxattr:
		return "setxattr"
	case OpGetxattr:
		return "getxattr"
	case OpListxattr:
		return "listxattr"
	case OpRemovexattr:
		return "removexattr"
	case OpOpendir:
		return "opendir"
	case OpReaddir:
		return "readdir"
	case OpReleasedir:
		return "releasedir"
	case OpFlock:
		return "flock"
	case OpFallocate:
		return "fallocate"
	case OpCopyFileRange:
		return "copy_file_range"
	case OpAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// CompletionFunc is the internal callback every Operation Engine builder
// in package fsdevops supplies to Submit. output is whatever the backend
// passed to Complete, still untyped; each fsdevops builder wraps this in
// its own typed callback and type-asserts output back to its own result
// struct before handing it to its caller (spec §4.3 step 5: "invokes the
// caller callback with the stored status and per-op outputs").
type CompletionFunc func(status error, output any)

// OperationDescriptor is one in-flight operation (spec §3). It is a pool
// item: acquired by Submit, owned exclusively by the submit call, then the
// backend, then the completion path, and released back to the pool just
// before the caller callback is invoked.
type OperationDescriptor struct {
	Kind       OpKind
	Unique     uint64
	Channel    *Channel
	Descriptor *Descriptor

	// Input and Output hold the op-specific argument/result structs built
	// by package fsdevops. The core never inspects them; it only threads
	// them through to the backend and back (spec §3's "input union" /
	// "output union", represented here as a tagged `any` rather than an
	// actual union since Go has none).
	Input  any
	Output any

	// Status is the completion status a backend reports via Complete.
	Status error

	// DriverCtx is the per-module driver-private scratch tail appended to
	// every pooled descriptor, sized to the maximum GetCtxSize() across
	// registered modules (spec §4.1).
	DriverCtx []byte

	internalCB  func(*OperationDescriptor)
	userCB      CompletionFunc
	submitting  bool
	traceReport reqtrace.ReportFunc
}

func newOperationDescriptor(ctxSize int) *OperationDescriptor {
	return &OperationDescriptor{DriverCtx: make([]byte, ctxSize)}
}

func resetOperationDescriptor(op *OperationDescriptor) {
	op.Kind = 0
	op.Unique = 0
	op.Channel = nil
	op.Descriptor = nil
	op.Input = nil
	op.Output = nil
	op.Status = nil
	op.internalCB = nil
	op.userCB = nil
	op.submitting = false
	op.traceReport = nil
	for i := range op.DriverCtx {
		op.DriverCtx[i] = 0
	}
}

// NewOperationPool builds the pool backing every Operation Engine call,
// sized per the fsdev library's own Opts and the largest driver-context
// size contributed by any registered Module (spec §4.1).
func NewOperationPool(total, cacheSize, ctxSize int) *iopool.Pool[OperationDescriptor] {
	return iopool.New(total, cacheSize,
		func() *OperationDescriptor { return newOperationDescriptor(ctxSize) },
		resetOperationDescriptor)
}

// Submit implements the five-step submit protocol shared by every
// fsdevops builder (spec §4.3): acquire a descriptor from pool, populate
// it, call the backend's SubmitRequest, and arrange for cb to run on
// completion. A completion that arrives before SubmitRequest returns (an
// inline completion) is deferred to thread's next poll so a callback can
// never reenter its own submit frame (spec §5's no-reentry invariant).
func Submit(
	pool *iopool.Pool[OperationDescriptor],
	ch *Channel,
	desc *Descriptor,
	thread fsdevthread.Thread,
	kind OpKind,
	unique uint64,
	input any,
	cb CompletionFunc,
) (*OperationDescriptor, error) {
	tid := iopool.ThreadID(thread.ID())

	op := pool.Acquire(tid)
	if op == nil {
		return nil, ErrNoBuffers
	}

	op.Kind = kind
	op.Unique = unique
	op.Channel = ch
	op.Descriptor = desc
	op.Input = input
	op.userCB = cb
	op.submitting = true

	// Trace this op's lifetime the way commonOp.init traces a fuseops.Op:
	// one span per submission, reported on the submitting thread when the
	// op finishes, tagged by the op kind rather than a Go request type
	// name.
	_, op.traceReport = reqtrace.StartSpan(context.Background(), kind.String())

	ch.addInFlight(op)

	op.internalCB = func(completed *OperationDescriptor) {
		finish := func() {
			ch.removeInFlight(completed)

			userCB := completed.userCB
			status := completed.Status
			output := completed.Output
			report := completed.traceReport

			pool.Release(tid, completed)

			if report != nil {
				report(status)
			}

			if userCB != nil {
				userCB(status, output)
			}
		}

		// Inline completions are deferred to break reentry; completions
		// reported from another thread are moved back onto the submitting
		// thread, so the caller callback always runs there.
		if completed.submitting || !thread.IsCurrent() {
			thread.Post(finish)
			return
		}
		finish()
	}

	ch.Fsdev.FnTable.SubmitRequest(ch.BackendChannel(), op)
	op.submitting = false

	return op, nil
}

// Complete is invoked by a backend (inline from SubmitRequest, or later
// from any thread) to report op's outcome. output, when non-nil, is the
// op-specific result struct the builder that submitted op will type-assert
// back out of op.Output before handing it to its own, typed caller
// callback.
func Complete(op *OperationDescriptor, status error, output any) {
	op.Status = status
	op.Output = output
	op.internalCB(op)
}
