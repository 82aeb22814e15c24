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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"

	"github.com/spdk-go/fsdev/fsdev"
)

// Backend is a complete fsdev.FnTable implementation backed by an
// in-memory node tree, grounded on samples/memfs's memFS: the same
// single-mutex, map-of-inodes design, generalized from fuseops's typed
// request/reply structs to this module's untyped OperationDescriptor
// Input/Output pair (spec §4.3, §4.5).
type Backend struct {
	fsdev.NoOptionalMethods

	// clock is consulted for every attribute timestamp a node acquires,
	// mirroring memFS's own injected clock dependency.
	clock timeutil.Clock

	// When acquiring this lock, the caller must hold no per-node locks;
	// this backend has none, so the rule is trivially satisfied.
	mu syncutil.InvariantMutex

	nodes     map[fsdev.FileObject]*node            // GUARDED_BY(mu)
	nextID    uint64                                // GUARDED_BY(mu)
	nextHndl  uint64                                // GUARDED_BY(mu)
	handles   map[fsdev.FileHandle]fsdev.FileObject  // GUARDED_BY(mu)
	mountedAt time.Time                              // GUARDED_BY(mu)
}

// New builds a Backend with just a root directory present.
func New() *Backend {
	clock := timeutil.RealClock()
	now := clock.Now()
	root := newNode(fsdev.RootFileObject, os.ModeDir|0755, 0, 0, now)
	root.lookupCount = 1

	b := &Backend{
		clock:   clock,
		nodes:   map[fsdev.FileObject]*node{fsdev.RootFileObject: root},
		nextID:  uint64(fsdev.RootFileObject) + 1,
		handles: make(map[fsdev.FileHandle]fsdev.FileObject),
	}
	b.mu = syncutil.NewInvariantMutex(b.checkInvariants)
	return b
}

// checkInvariants re-asserts inode.go's doc-commented per-node invariants
// plus the tree-wide ones implied by them, panicking the way memFS's own
// checkInvariants does on violation, grounded on samples/memfs/fs.go.
func (b *Backend) checkInvariants() {
	root, ok := b.nodes[fsdev.RootFileObject]
	if !ok {
		panic("root file object missing from node table")
	}
	if !root.isDir() {
		panic("root file object is not a directory")
	}

	for id, n := range b.nodes {
		if n.id != id {
			panic(fmt.Sprintf("node stored under %d reports id %d", id, n.id))
		}
		if n.mode&^(os.ModePerm|os.ModeDir|os.ModeSymlink) != 0 {
			panic(fmt.Sprintf("node %d has unexpected mode bits: %v", id, n.mode))
		}
		if n.isDir() != (n.children != nil) {
			panic(fmt.Sprintf("node %d: isDir()=%v but children=%v", id, n.isDir(), n.children))
		}
		if !n.isDir() && !n.isSymlink() && uint64(len(n.contents)) != n.attr().Size {
			panic(fmt.Sprintf("node %d: size mismatch with contents", id))
		}
	}

	for h, target := range b.handles {
		if _, ok := b.nodes[target]; !ok {
			panic(fmt.Sprintf("handle %d references missing node %d", h, target))
		}
	}
}

// Module builds the fsdev.Module descriptor this backend registers under.
// GetCtxSize is zero: memfsdev keeps all of its per-operation state in
// Go-managed structures, needing no driver-private scratch tail on the
// pooled OperationDescriptor (spec §4.1).
func Module() *fsdev.Module {
	return &fsdev.Module{
		Name:       "memfsdev",
		GetCtxSize: func() int { return 0 },
	}
}

// Register creates the backend and its Fsdev in one step: RegisterModule
// followed by Register, mirroring the two-step registration samples/memfs's
// mount commands perform against a real spdk_fsdev.
func Register(r *fsdev.Registry, name string) (*fsdev.Fsdev, *Backend, error) {
	mod := Module()
	if err := r.RegisterModule(mod); err != nil {
		return nil, nil, err
	}
	b := New()
	f, err := r.Register(name, b, b, mod.Name)
	if err != nil {
		return nil, nil, err
	}
	return f, b, nil
}

// memChannel is the BackendChannel this module hands back from
// GetIOChannel: there is no real I/O device to bind to, so it is a bare
// marker value, one instance shared by every calling thread (every
// channel therefore coalesces into a single SharedResource, spec §4.2).
type memChannel struct{}

func (memChannel) Close() {}

var sharedChannel = memChannel{}

func (b *Backend) GetIOChannel(ctx any) fsdev.BackendChannel {
	return sharedChannel
}

// Destruct tears down synchronously: there is no outstanding I/O to drain
// and no external resource to release.
func (b *Backend) Destruct(ctx any) error {
	return nil
}

func (b *Backend) lock() func() {
	b.mu.Lock()
	return b.mu.Unlock
}

func (b *Backend) allocID() fsdev.FileObject {
	id := fsdev.FileObject(b.nextID)
	b.nextID++
	return id
}

func (b *Backend) allocHandle(target fsdev.FileObject) fsdev.FileHandle {
	b.nextHndl++
	h := fsdev.FileHandle(b.nextHndl)
	b.handles[h] = target
	return h
}

func (b *Backend) lookupNode(id fsdev.FileObject) (*node, error) {
	n, ok := b.nodes[id]
	if !ok {
		return nil, errNoEnt
	}
	return n, nil
}

func (b *Backend) lookupDir(id fsdev.FileObject) (*node, error) {
	n, err := b.lookupNode(id)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, errNotDir
	}
	return n, nil
}

func (b *Backend) resolveHandle(h fsdev.FileHandle) (fsdev.FileObject, error) {
	id, ok := b.handles[h]
	if !ok {
		return 0, errBadFD
	}
	return id, nil
}

var (
	errNoEnt    = fsdev.NewErrnoError(fsdev.KindInvalid, unix.ENOENT, "no such file or directory")
	errExist    = fsdev.NewErrnoError(fsdev.KindExists, unix.EEXIST, "file exists")
	errNotDir   = fsdev.NewErrnoError(fsdev.KindInvalid, unix.ENOTDIR, "not a directory")
	errIsDir    = fsdev.NewErrnoError(fsdev.KindInvalid, unix.EISDIR, "is a directory")
	errNotEmpty = fsdev.NewErrnoError(fsdev.KindBusy, unix.ENOTEMPTY, "directory not empty")
	errBadFD    = fsdev.NewErrnoError(fsdev.KindInvalid, unix.EBADF, "bad file descriptor")
	errNoAttr   = fsdev.NewErrnoError(fsdev.KindInvalid, unix.ENODATA, "no such attribute")
	errNoEOF    = io.EOF
)
