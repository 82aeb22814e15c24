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

package memfsdev

import (
	"os"
	"sort"
	"time"

	"github.com/spdk-go/fsdev/fsdev"
)

// Linux dirent d_type values, as carried on the wire unmodified by
// fsdevops.Dirent.Type (spec §4.4).
const (
	dtUnknown = 0
	dtDir     = 4
	dtReg     = 8
	dtLnk     = 10
)

// node is one file, directory, or symlink in the in-memory tree, grounded
// on memfs/inode.go's inode type: the same attrs/entries/contents/target
// union of mutable state, adapted from a single fuseops.InodeID keyspace
// to this module's fsdev.FileObject one.
//
// INVARIANT: mode&^(os.ModePerm|os.ModeDir|os.ModeSymlink) == 0
// INVARIANT: isDir() == (children != nil)
// INVARIANT: size == len(contents) for a regular file
type node struct {
	id fsdev.FileObject

	mode  os.FileMode
	nlink uint32
	uid   uint32
	gid   uint32
	rdev  uint32

	atime time.Time
	mtime time.Time
	ctime time.Time

	// contents holds a regular file's data.
	contents []byte

	// target holds a symlink's destination text.
	target string

	// children maps a directory's entry names to the child's id. nil for
	// anything that is not a directory.
	children map[string]fsdev.FileObject

	xattrs map[string][]byte

	// lookupCount mirrors the core's per-FileObject reference count (spec
	// §4.3): Lookup/Mknod/Mkdir/etc. increment it, Forget decrements it.
	// Forget reaching zero does not itself free the node; only dropLink
	// (when nlink and lookupCount are both zero) and Umount remove nodes.
	lookupCount uint64
}

func (n *node) isDir() bool     { return n.mode&os.ModeDir != 0 }
func (n *node) isSymlink() bool { return n.mode&os.ModeSymlink != 0 }

func newNode(id fsdev.FileObject, mode os.FileMode, uid, gid uint32, now time.Time) *node {
	n := &node{
		id:    id,
		mode:  mode,
		nlink: 1,
		uid:   uid,
		gid:   gid,
		atime: now,
		mtime: now,
		ctime: now,
	}
	if mode&os.ModeDir != 0 {
		n.children = make(map[string]fsdev.FileObject)
		n.nlink = 2 // "." plus the entry in its parent
	}
	return n
}

func (n *node) attr() fsdev.FileAttr {
	return fsdev.FileAttr{
		Ino:     uint64(n.id),
		Size:    uint64(len(n.contents) + len(n.target)),
		Blocks:  (uint64(len(n.contents)) + 511) / 512,
		Atime:   n.atime,
		Mtime:   n.mtime,
		Ctime:   n.ctime,
		Mode:    uint32(n.mode.Perm()) | typeBits(n.mode),
		Nlink:   n.nlink,
		UID:     n.uid,
		GID:     n.gid,
		Rdev:    n.rdev,
		BlkSize: 4096,
	}
}

// typeBits reports the S_IFDIR/S_IFLNK/S_IFREG high bits attr() must OR
// into the wire Mode, since os.FileMode's own bit layout isn't the POSIX
// one the FUSE wire format expects.
func typeBits(mode os.FileMode) uint32 {
	const (
		sIFDIR = 0040000
		sIFLNK = 0120000
		sIFREG = 0100000
	)
	switch {
	case mode&os.ModeDir != 0:
		return sIFDIR
	case mode&os.ModeSymlink != 0:
		return sIFLNK
	default:
		return sIFREG
	}
}

func (n *node) dirType() uint32 {
	switch {
	case n.isDir():
		return dtDir
	case n.isSymlink():
		return dtLnk
	default:
		return dtReg
	}
}

// sortedNames returns a directory's entry names in a fixed order, so
// repeated Readdir calls at increasing offsets observe a stable sequence
// even though the underlying map has none of its own (spec §4.3's
// "readdir invokes per-entry callback" contract implies a stable
// enumeration order across calls that don't mutate the directory).
func (n *node) sortedNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
