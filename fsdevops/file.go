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

// CreateInput creates and opens Name under Parent in one step.
type CreateInput struct {
	Parent fsdev.FileObject
	Name   string
	Mode   uint32
	Flags  uint32
	Umask  uint32
	EUID   uint32
	EGID   uint32
}

type CreateResult struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Attr       fsdev.FileAttr
}

type CreateCompletionFunc func(status error, result *CreateResult)

func Create(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in CreateInput, cb CreateCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpCreate, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*CreateResult)
		cb(status, res)
	})
}

// OpenInput opens an existing FileObject with the given FUSE open Flags.
type OpenInput struct {
	FileObject fsdev.FileObject
	Flags      uint32
}

type OpenResult struct {
	Handle fsdev.FileHandle
}

type OpenCompletionFunc func(status error, result *OpenResult)

func Open(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, flags uint32, cb OpenCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpOpen, &OpenInput{FileObject: fobj, Flags: flags}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*OpenResult)
		cb(status, res)
	})
}

// ReleaseInput closes a previously opened Handle.
type ReleaseInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
}

type ReleaseCompletionFunc func(status error)

func Release(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, handle fsdev.FileHandle, cb ReleaseCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpRelease, &ReleaseInput{FileObject: fobj, Handle: handle}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// ReadInput reads Size bytes at Offset into IOVec, a borrowed gather
// list the caller must keep alive for the duration of the operation
// (spec §5 "buffers passed to read/write via iovecs are borrowed from
// the caller"). Opts carries the optional memory-domain pass-through
// (spec §1: DMA translation is out of scope, the field is opaque here).
type ReadInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Size       uint32
	Offset     uint64
	Flags      uint32
	IOVec      [][]byte
	Opts       fsdev.IOOpts
}

type ReadResult struct {
	DataSize uint32
}

type ReadCompletionFunc func(status error, result *ReadResult)

func Read(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in ReadInput, cb ReadCompletionFunc) error {
	if len(in.IOVec) == 0 {
		return fsdev.ErrInvalid
	}
	return submit(p, ch, desc, unique, fsdev.OpRead, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*ReadResult)
		cb(status, res)
	})
}

// WriteInput writes IOVec at Offset. MaxWrite, the negotiated ceiling
// from mount (spec §6), is checked by the caller (typically the
// dispatcher) before this is submitted; this builder itself only
// enforces that some data was supplied.
type WriteInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Offset     uint64
	Flags      uint64
	IOVec      [][]byte
	Opts       fsdev.IOOpts
}

type WriteResult struct {
	DataSize uint32
}

type WriteCompletionFunc func(status error, result *WriteResult)

func Write(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in WriteInput, cb WriteCompletionFunc) error {
	if len(in.IOVec) == 0 {
		return fsdev.ErrInvalid
	}
	return submit(p, ch, desc, unique, fsdev.OpWrite, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*WriteResult)
		cb(status, res)
	})
}

// StatfsInput requests filesystem-wide statistics as seen from
// FileObject.
type StatfsInput struct {
	FileObject fsdev.FileObject
}

type StatfsResult struct {
	Stats fsdev.StatFS
}

type StatfsCompletionFunc func(status error, result *StatfsResult)

func Statfs(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, cb StatfsCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpStatfs, &StatfsInput{FileObject: fobj}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*StatfsResult)
		cb(status, res)
	})
}

// FsyncInput requests Handle's data (and, unless Datasync, metadata) be
// flushed to stable storage.
type FsyncInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Datasync   bool
}

type FsyncCompletionFunc func(status error)

func Fsync(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in FsyncInput, cb FsyncCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpFsync, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// FlushInput is issued on every close(2) of a file descriptor referring
// to Handle, not just the last one; see fuseops.FlushFileOp's doc for the
// dup2/mmap edge cases this implies for a real backend.
type FlushInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
}

type FlushCompletionFunc func(status error)

func Flush(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, handle fsdev.FileHandle, cb FlushCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpFlush, &FlushInput{FileObject: fobj, Handle: handle}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// FsyncdirInput is Fsync for a directory Handle.
type FsyncdirInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Datasync   bool
}

type FsyncdirCompletionFunc func(status error)

func Fsyncdir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in FsyncdirInput, cb FsyncdirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpFsyncdir, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// FlockInput applies an flock(2)-style Operation to Handle.
type FlockInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Operation  int
}

type FlockCompletionFunc func(status error)

func Flock(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in FlockInput, cb FlockCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpFlock, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// FallocateInput reserves or punches a hole in Handle, per fallocate(2)
// Mode semantics.
type FallocateInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Mode       int32
	Offset     int64
	Length     int64
}

type FallocateCompletionFunc func(status error)

func Fallocate(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in FallocateInput, cb FallocateCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpFallocate, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// CopyFileRangeInput copies Len bytes from (FileIn, HandleIn, OffsetIn)
// to (FileOut, HandleOut, OffsetOut).
type CopyFileRangeInput struct {
	FileIn    fsdev.FileObject
	HandleIn  fsdev.FileHandle
	OffsetIn  int64
	FileOut   fsdev.FileObject
	HandleOut fsdev.FileHandle
	OffsetOut int64
	Len       uint64
	Flags     uint32
}

type CopyFileRangeResult struct {
	DataSize uint64
}

type CopyFileRangeCompletionFunc func(status error, result *CopyFileRangeResult)

func CopyFileRange(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in CopyFileRangeInput, cb CopyFileRangeCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpCopyFileRange, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*CopyFileRangeResult)
		cb(status, res)
	})
}
