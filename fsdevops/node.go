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

// LookupInput resolves Name under Parent. Name == "" with a zero Parent
// resolves to the root FileObject (spec §4.3).
type LookupInput struct {
	Parent fsdev.FileObject
	Name   string
}

// LookupResult reports the resolved node and its attributes.
type LookupResult struct {
	FileObject fsdev.FileObject
	Attr       fsdev.FileAttr
}

type LookupCompletionFunc func(status error, result *LookupResult)

func Lookup(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, parent fsdev.FileObject, name string, cb LookupCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpLookup, &LookupInput{Parent: parent, Name: name}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*LookupResult)
		cb(status, res)
	})
}

// ForgetInput decrements FileObject's lookup refcount by Nlookup. It has
// no result: the FUSE FORGET opcode never produces a reply.
type ForgetInput struct {
	FileObject fsdev.FileObject
	Nlookup    uint64
}

type ForgetCompletionFunc func(status error)

func Forget(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, nlookup uint64, cb ForgetCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpForget, &ForgetInput{FileObject: fobj, Nlookup: nlookup}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// GetAttrInput reads FileObject's attributes, optionally through an
// already-open Handle (zero value if none).
type GetAttrInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
}

type GetAttrResult struct {
	Attr fsdev.FileAttr
}

type GetAttrCompletionFunc func(status error, result *GetAttrResult)

func GetAttr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, handle fsdev.FileHandle, cb GetAttrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpGetAttr, &GetAttrInput{FileObject: fobj, Handle: handle}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*GetAttrResult)
		cb(status, res)
	})
}

// SetAttrInput applies the fields named by ToSet from Attr (spec §4.3:
// "to_set bits enumerate which fields apply").
type SetAttrInput struct {
	FileObject fsdev.FileObject
	Handle     fsdev.FileHandle
	Attr       fsdev.FileAttr
	ToSet      fsdev.SetAttrMask
}

type SetAttrResult struct {
	Attr fsdev.FileAttr
}

type SetAttrCompletionFunc func(status error, result *SetAttrResult)

func SetAttr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in SetAttrInput, cb SetAttrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpSetAttr, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*SetAttrResult)
		cb(status, res)
	})
}

// ReadlinkInput names the symlink FileObject to resolve.
type ReadlinkInput struct {
	FileObject fsdev.FileObject
}

// ReadlinkResult is the symlink's target text.
type ReadlinkResult struct {
	Target string
}

type ReadlinkCompletionFunc func(status error, result *ReadlinkResult)

func Readlink(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, cb ReadlinkCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpReadlink, &ReadlinkInput{FileObject: fobj}, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*ReadlinkResult)
		cb(status, res)
	})
}

// SymlinkInput creates LinkPath under Parent pointing at Target.
//
// Both Target and LinkPath must be validated/copied by the caller before
// this is submitted: the original source's handler strdup's each in turn
// and leaks the first if the second strdup fails (spec §9 open
// question). This port avoids the bug by construction — Go string values
// are already independent, immutable copies, so there is no equivalent
// partial-failure window — but the two-strings-up-front shape is kept
// because it's what a reader of the original would expect to see.
type SymlinkInput struct {
	Parent   fsdev.FileObject
	LinkPath string
	Target   string
	EUID     uint32
	EGID     uint32
}

type SymlinkResult struct {
	FileObject fsdev.FileObject
	Attr       fsdev.FileAttr
}

type SymlinkCompletionFunc func(status error, result *SymlinkResult)

func Symlink(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in SymlinkInput, cb SymlinkCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpSymlink, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*SymlinkResult)
		cb(status, res)
	})
}

// MknodInput creates a special file Name under Parent.
type MknodInput struct {
	Parent fsdev.FileObject
	Name   string
	Mode   uint32
	Rdev   uint32
	EUID   uint32
	EGID   uint32
}

type MknodResult struct {
	FileObject fsdev.FileObject
	Attr       fsdev.FileAttr
}

type MknodCompletionFunc func(status error, result *MknodResult)

func Mknod(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in MknodInput, cb MknodCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpMknod, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*MknodResult)
		cb(status, res)
	})
}

// MkdirInput creates directory Name under Parent.
type MkdirInput struct {
	Parent fsdev.FileObject
	Name   string
	Mode   uint32
	EUID   uint32
	EGID   uint32
}

type MkdirResult struct {
	FileObject fsdev.FileObject
	Attr       fsdev.FileAttr
}

type MkdirCompletionFunc func(status error, result *MkdirResult)

func Mkdir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in MkdirInput, cb MkdirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpMkdir, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*MkdirResult)
		cb(status, res)
	})
}

// UnlinkInput removes Name from Parent.
type UnlinkInput struct {
	Parent fsdev.FileObject
	Name   string
}

type UnlinkCompletionFunc func(status error)

func Unlink(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, parent fsdev.FileObject, name string, cb UnlinkCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpUnlink, &UnlinkInput{Parent: parent, Name: name}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// RmdirInput removes empty directory Name from Parent.
type RmdirInput struct {
	Parent fsdev.FileObject
	Name   string
}

type RmdirCompletionFunc func(status error)

func Rmdir(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, parent fsdev.FileObject, name string, cb RmdirCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpRmdir, &RmdirInput{Parent: parent, Name: name}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// RenameInput moves Name under Parent to NewName under NewParent.
type RenameInput struct {
	Parent    fsdev.FileObject
	Name      string
	NewParent fsdev.FileObject
	NewName   string
	Flags     uint32
}

type RenameCompletionFunc func(status error)

func Rename(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in RenameInput, cb RenameCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpRename, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// LinkInput creates a new hard link Name under NewParent pointing at the
// existing FileObject.
type LinkInput struct {
	FileObject fsdev.FileObject
	NewParent  fsdev.FileObject
	Name       string
}

type LinkResult struct {
	FileObject fsdev.FileObject
	Attr       fsdev.FileAttr
}

type LinkCompletionFunc func(status error, result *LinkResult)

func Link(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in LinkInput, cb LinkCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpLink, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*LinkResult)
		cb(status, res)
	})
}
