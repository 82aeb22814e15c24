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

import (
	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/internal/fusewire"
)

// OpendirInput opens FileObject as a directory stream.
type OpendirInput struct {
	FileObject fsdev.FileObject
	Flags      uint32
}

type OpendirResult struct {
	Handle fsdev.FileHandle
}

type OpendirCompletionFunc func(status error, result *OpendirResult)

func Opendir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, flags uint32, cb OpendirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpOpendir, &OpendirInput{FileObject: fobj, Flags: flags}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*OpendirResult)
		cb(status, res)
	})
}

// Dirent is one directory entry, as reported by a readdir per-entry
// callback, grounded on the teacher's fuseutil.Dirent / WriteDirent
// (fuseutil/dirent.go): Ino/Off/Name/Type are exactly the fields
// fuse_dirent carries on the wire.
type Dirent struct {
	Ino    uint64
	Offset uint64
	Name   string
	Type   uint32
}

// DirentPlus is a Dirent carrying the readdirplus attribute payload, for
// FUSE_READDIRPLUS responses.
type DirentPlus struct {
	Dirent
	Attr fsdev.FileAttr
}

// AppendDirent appends d's wire representation (fuse_dirent, padded to 8
// bytes) to buf and returns the grown slice, or buf unchanged with ok
// false if d would not fit within max total bytes — the caller's readdir
// entry callback uses that signal to stop enumeration early (spec §4.4).
func AppendDirent(buf []byte, max int, d Dirent) (out []byte, ok bool) {
	return fusewire.AppendDirent(buf, max, d.Ino, d.Offset, d.Type, d.Name)
}

// AppendDirentPlus is AppendDirent for a FUSE_READDIRPLUS response,
// prefixing each entry with a full fuse_entry_out.
func AppendDirentPlus(buf []byte, max int, d DirentPlus) (out []byte, ok bool) {
	return fusewire.AppendDirentPlus(buf, max, d.Ino, d.Offset, d.Type, d.Name, fusewire.AttrFromCore(d.Attr))
}

// ReaddirEntryFunc is invoked once per directory entry; returning false
// stops enumeration (spec §4.3: "readdir invokes per-entry callback;
// returning non-zero terminates enumeration").
type ReaddirEntryFunc func(d Dirent) (keepGoing bool)

// ReaddirInput streams FileObject's directory entries starting at
// Offset through Entry. Only the backend's own children are streamed:
// neither this builder nor fusedispatch's READDIR handler emits "." or
// "..".
type ReaddirInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Offset     uint64
	Entry      ReaddirEntryFunc
}

type ReaddirCompletionFunc func(status error)

func Readdir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in ReaddirInput, cb ReaddirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpReaddir, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// ReleasedirInput closes a directory Handle opened by Opendir.
type ReleasedirInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
}

type ReleasedirCompletionFunc func(status error)

func Releasedir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, handle fsdev.FileHandle, cb ReleasedirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpReleasedir, &ReleasedirInput{FileObject: fobj, Handle: handle}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}
