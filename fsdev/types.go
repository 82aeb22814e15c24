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

import "time"

// FileObject is an opaque handle to a filesystem node, minted by a backend
// and threaded back through the core unchanged. The root of any mounted
// tree is always RootFileObject.
type FileObject uint64

// RootFileObject is the fixed handle for the root of a mounted tree,
// matching FUSE_ROOT_ID / SPDK_FUSE_ROOT_ID so the dispatcher needs no
// translation for it.
const RootFileObject FileObject = 1

// FileHandle is an opaque handle to an open file or directory, minted by a
// backend in response to open/opendir/create.
type FileHandle uint64

// Status is an Fsdev's lifecycle state.
type Status int

const (
	StatusInvalid Status = iota
	StatusReady
	StatusUnregistering
	StatusRemoving
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusUnregistering:
		return "unregistering"
	case StatusRemoving:
		return "removing"
	default:
		return "invalid"
	}
}

// EventType enumerates asynchronous events an Fsdev can deliver to an open
// Descriptor.
type EventType int

const (
	// EventRemove is sent once to every open descriptor when the owning
	// Fsdev begins hot-removal.
	EventRemove EventType = iota
)

// EventCB is the per-descriptor asynchronous event callback, always
// invoked on the thread that opened the descriptor.
type EventCB func(typ EventType, fsdev *Fsdev, ctx any)

// FileAttr mirrors the POSIX-ish attribute set the operation set reports
// and accepts, grounded on struct spdk_fsdev_file_attr.
type FileAttr struct {
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint32
	BlkSize uint32
}

// SetAttrMask enumerates which FileAttr fields a SetAttr call should apply,
// grounded on the FSDEV_SET_ATTR_* bitmask.
type SetAttrMask uint32

const (
	SetAttrMode SetAttrMask = 1 << iota
	SetAttrUID
	SetAttrGID
	SetAttrSize
	SetAttrAtime
	SetAttrMtime
	SetAttrAtimeNow
	SetAttrMtimeNow
	SetAttrCtime
)

// StatFS mirrors struct spdk_fsdev_file_statfs.
type StatFS struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
}

// Opts are the fsdev library's own tunables: the size of the operation
// descriptor pool and of its per-thread cache (spec §4.1, §6).
type Opts struct {
	// OptsSize carries the caller's struct size for forward-compatible
	// decoding, mirroring spdk_fsdev_opts.opts_size.
	OptsSize uint32

	IOPoolSize  uint32
	IOCacheSize uint32
}

// DefaultOpts returns the library defaults used until SetOpts is called.
func DefaultOpts() Opts {
	return Opts{
		OptsSize:    8,
		IOPoolSize:  4096,
		IOCacheSize: 64,
	}
}

// MountOpts are the negotiable mount-time options (spec §6). A caller
// supplies desired values; a backend may only reduce them, never expand.
type MountOpts struct {
	OptsSize uint32

	// MaxWrite is the maximum size of a single write the backend will
	// accept; the backend may reduce it.
	MaxWrite uint32

	// WritebackCacheEnabled requests writeback caching; the backend may
	// clear it but must never set it if the caller requested false.
	WritebackCacheEnabled bool
}

// IOOpts are optional per-operation parameters, primarily the memory
// domain used for read/write payload translation. The memory-domain field
// is an opaque pass-through (spec §1: DMA translation is out of scope);
// the core never dereferences it.
type IOOpts struct {
	MemoryDomain    any
	MemoryDomainCtx any
}
