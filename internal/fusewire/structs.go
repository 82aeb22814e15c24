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

package fusewire

import "time"

// InHeader is the fixed 40-byte header prefixing every request.
type InHeader struct {
	Length uint32
	Opcode uint32
	Unique uint64
	Nodeid uint64
	UID    uint32
	GID    uint32
	PID    uint32
	_      uint32
}

const InHeaderSize = 40

// OutHeader is the fixed 16-byte header prefixing every reply.
type OutHeader struct {
	Length uint32
	Error  int32
	Unique uint64
}

const OutHeaderSize = 16

// Attr is the wire attribute struct embedded in EntryOut/AttrOut.
type Attr struct {
	Ino        uint64
	Size       uint64
	Blocks     uint64
	Atime      uint64
	Mtime      uint64
	Ctime      uint64
	AtimeNsec  uint32
	MtimeNsec  uint32
	CtimeNsec  uint32
	Mode       uint32
	Nlink      uint32
	UID        uint32
	GID        uint32
	Rdev       uint32
	BlkSize    uint32
	_          uint32
}

const AttrSize = 88
const CompatAttrOutSize = 96
const CompatEntryOutSize = 120
const CompatStatfsSize = 48
const CompatWriteInSize = 24
const CompatMknodInSize = 8

// EntryOut replies to LOOKUP/MKNOD/MKDIR/SYMLINK/LINK/CREATE.
type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// AttrOut replies to GETATTR/SETATTR.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	_             uint32
	Attr          Attr
}

// OpenOut replies to OPEN/OPENDIR/CREATE's open half.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	_         uint32
}

// WriteOut replies to WRITE.
type WriteOut struct {
	Size uint32
	_    uint32
}

// StatfsOut replies to STATFS.
type StatfsOut struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
	_       uint32
	_       [6]uint32
}

// InitIn is the kernel's negotiation request.
type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

const CompatInitInSize = 8

// InitOut is this module's negotiation reply.
type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	_                   uint16
	_                   [8]uint32
}

const CompatInitOutSize = 8
const Init76OutSize = 24

// SetattrIn is SETATTR's request body.
type SetattrIn struct {
	Valid     uint32
	_         uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	_         uint64
	AtimeNsec uint32
	MtimeNsec uint32
	_         uint32
	Mode      uint32
	_         uint32
	UID       uint32
	GID       uint32
	_         uint32
}

// MknodIn is MKNOD's request body, name follows on the wire.
type MknodIn struct {
	Mode  uint32
	Rdev  uint32
	Umask uint32
	_     uint32
}

// CreateIn is CREATE's request body, name follows on the wire.
type CreateIn struct {
	Flags uint32
	Mode  uint32
	Umask uint32
	_     uint32
}

// ReadIn is READ's request body.
type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	_         uint32
}

// WriteIn is WRITE's request body, data follows on the wire.
type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	_          uint32
}

// ReleaseIn is RELEASE/RELEASEDIR's request body.
type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

// FlushIn is FLUSH's request body.
type FlushIn struct {
	Fh        uint64
	_         uint32
	_         uint32
	LockOwner uint64
}

// FsyncIn is FSYNC/FSYNCDIR's request body.
type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	_          uint32
}

// OpenIn is OPEN/OPENDIR's request body.
type OpenIn struct {
	Flags uint32
	_     uint32
}

// FileLock is the POSIX lock descriptor embedded in LkIn, fuse_file_lock
// on the wire.
type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	Pid   uint32
}

// LkIn is SETLK/SETLKW/GETLK's request body, fuse_lk_in on the wire.
type LkIn struct {
	Fh      uint64
	Owner   uint64
	Lk      FileLock
	LkFlags uint32
	_       uint32
}

// LkFlock is the one Lk_in.LkFlags bit this module reads: set when the
// kernel is relaying a flock(2) call rather than a POSIX fcntl(2) lock,
// the only SETLK variant this module services (spec §4.4).
const LkFlock uint32 = 1 << 0

// RenameIn is RENAME's request body, oldname/newname follow on the wire.
type RenameIn struct {
	Newdir uint64
}

// Rename2In is RENAME2's request body.
type Rename2In struct {
	Newdir uint64
	Flags  uint32
	_      uint32
}

// LinkIn is LINK's request body, newname follows on the wire.
type LinkIn struct {
	Oldnodeid uint64
}

// GetattrIn is GETATTR's request body.
type GetattrIn struct {
	Flags uint32
	_     uint32
	Fh    uint64
}

// SetxattrIn is SETXATTR's request body, name\0value follow on the wire.
type SetxattrIn struct {
	Size  uint32
	Flags uint32
}

// GetxattrIn is GETXATTR/LISTXATTR's request body, name follows on the
// wire for GETXATTR.
type GetxattrIn struct {
	Size uint32
	_    uint32
}

// GetxattrOut replies to a GETXATTR/LISTXATTR size query.
type GetxattrOut struct {
	Size uint32
	_    uint32
}

// ForgetIn is FORGET's request body.
type ForgetIn struct {
	Nlookup uint64
}

// ForgetOne is one entry of a BATCH_FORGET request body.
type ForgetOne struct {
	Nodeid  uint64
	Nlookup uint64
}

// BatchForgetIn prefixes a BATCH_FORGET request's repeated ForgetOne list.
type BatchForgetIn struct {
	Count uint32
	_     uint32
}

// InterruptIn is INTERRUPT's request body.
type InterruptIn struct {
	Unique uint64
}

// FallocateIn is FALLOCATE's request body.
type FallocateIn struct {
	Fh     uint64
	Offset uint64
	Length uint64
	Mode   uint32
	_      uint32
}

// CopyFileRangeIn is COPY_FILE_RANGE's request body.
type CopyFileRangeIn struct {
	FhIn      uint64
	OffIn     uint64
	NodeidOut uint64
	FhOut     uint64
	OffOut    uint64
	Len       uint64
	Flags     uint64
}

func secNsec(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}

func timeFromSecNsec(sec uint64, nsec uint32) time.Time {
	if sec == 0 && nsec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64(nsec))
}
