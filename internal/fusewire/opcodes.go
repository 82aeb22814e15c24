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

// Opcode is a FUSE request's operation code, exactly as it appears on the
// wire in InHeader.Opcode.
type Opcode uint32

const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2 // no reply
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpReadlink    Opcode = 5
	OpSymlink     Opcode = 6
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpLink        Opcode = 13
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFsync       Opcode = 20
	OpSetxattr    Opcode = 21
	OpGetxattr    Opcode = 22
	OpListxattr   Opcode = 23
	OpRemovexattr Opcode = 24
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
	OpFsyncdir    Opcode = 30
	OpGetlk       Opcode = 31
	OpSetlk       Opcode = 32
	OpSetlkw      Opcode = 33
	OpAccess      Opcode = 34
	OpCreate      Opcode = 35
	OpInterrupt   Opcode = 36
	OpBmap        Opcode = 37
	OpDestroy     Opcode = 38
	OpIoctl       Opcode = 39
	OpPoll        Opcode = 40
	OpBatchForget Opcode = 42
	OpFallocate   Opcode = 43
	OpReaddirplus Opcode = 44
	OpRename2     Opcode = 45
	OpCopyFileRange Opcode = 47
)

func (op Opcode) String() string {
	switch op {
	case OpLookup:
		return "LOOKUP"
	case OpForget:
		return "FORGET"
	case OpGetattr:
		return "GETATTR"
	case OpSetattr:
		return "SETATTR"
	case OpReadlink:
		return "READLINK"
	case OpSymlink:
		return "SYMLINK"
	case OpMknod:
		return "MKNOD"
	case OpMkdir:
		return "MKDIR"
	case OpUnlink:
		return "UNLINK"
	case OpRmdir:
		return "RMDIR"
	case OpRename:
		return "RENAME"
	case OpLink:
		return "LINK"
	case OpOpen:
		return "OPEN"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpStatfs:
		return "STATFS"
	case OpRelease:
		return "RELEASE"
	case OpFsync:
		return "FSYNC"
	case OpSetxattr:
		return "SETXATTR"
	case OpGetxattr:
		return "GETXATTR"
	case OpListxattr:
		return "LISTXATTR"
	case OpRemovexattr:
		return "REMOVEXATTR"
	case OpFlush:
		return "FLUSH"
	case OpInit:
		return "INIT"
	case OpOpendir:
		return "OPENDIR"
	case OpReaddir:
		return "READDIR"
	case OpReleasedir:
		return "RELEASEDIR"
	case OpFsyncdir:
		return "FSYNCDIR"
	case OpAccess:
		return "ACCESS"
	case OpCreate:
		return "CREATE"
	case OpInterrupt:
		return "INTERRUPT"
	case OpDestroy:
		return "DESTROY"
	case OpBatchForget:
		return "BATCH_FORGET"
	case OpFallocate:
		return "FALLOCATE"
	case OpReaddirplus:
		return "READDIRPLUS"
	case OpRename2:
		return "RENAME2"
	case OpCopyFileRange:
		return "COPY_FILE_RANGE"
	default:
		return "UNKNOWN"
	}
}

// RootID is the fixed node id of a mount's root, FUSE_ROOT_ID.
const RootID uint64 = 1

// Init negotiation flags (a subset of fuse_kernel.h's FUSE_* bits this
// module actually negotiates; spec §6).
const (
	InitAsyncRead       uint32 = 1 << 0
	InitPosixLocks      uint32 = 1 << 1
	InitAtomicOTrunc    uint32 = 1 << 3
	InitExportSupport   uint32 = 1 << 4
	InitBigWrites       uint32 = 1 << 5
	InitDontMask        uint32 = 1 << 6
	InitWritebackCache  uint32 = 1 << 16
	InitParallelDirops  uint32 = 1 << 18
	InitMaxPages        uint32 = 1 << 22
)

// FattrFlags are the FATTR_* bits of Setattr_in.Valid, mirrored as
// fsdev.SetAttrMask (internal/fusewire owns the wire encoding, package
// fsdev owns the core-facing enum).
const (
	FattrMode     uint32 = 1 << 0
	FattrUID      uint32 = 1 << 1
	FattrGID      uint32 = 1 << 2
	FattrSize     uint32 = 1 << 3
	FattrAtime    uint32 = 1 << 4
	FattrMtime    uint32 = 1 << 5
	FattrFh       uint32 = 1 << 6
	FattrAtimeNow uint32 = 1 << 7
	FattrMtimeNow uint32 = 1 << 8
	FattrCtime    uint32 = 1 << 10
)

// ReleaseFlush is the one Release_in.Release_flags bit this module reads.
const ReleaseFlush uint32 = 1 << 0

// direntAlign is the alignment FUSE_DIRENT_ALIGN rounds every directory
// entry record up to.
const direntAlign = 8
