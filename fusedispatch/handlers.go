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

package fusedispatch

import (
	"golang.org/x/sys/unix"

	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/fsdevops"
	"github.com/spdk-go/fsdev/internal/fusewire"
)

// handlerFunc decodes one already-header-consumed request from in and
// drives the matching fsdevops builder, mirroring ops.go's per-opcode
// dispatch table for jacobsa/fuse's Connection.
type handlerFunc func(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor)

// buildHandlerTable wires every opcode this module actually services.
// INIT is handled by handleInit before the table is even consulted;
// INTERRUPT is handled inline in dispatchOne. Everything absent here
// (GETLK/ACCESS/BMAP/IOCTL/POLL) falls through dispatchOne's
// unknown-opcode path and gets ENOSYS. SETLK is serviced only for its
// FUSE_LK_FLOCK-flagged form (routed to fsdevops.Flock); SETLKW always
// replies ENOSYS, matching do_setlkw.
func buildHandlerTable() map[fusewire.Opcode]handlerFunc {
	return map[fusewire.Opcode]handlerFunc{
		fusewire.OpDestroy:         handleDestroy,
		fusewire.OpSetlk:           handleSetlk,
		fusewire.OpSetlkw:          handleSetlkw,
		fusewire.OpLookup:          handleLookup,
		fusewire.OpForget:          handleForget,
		fusewire.OpBatchForget:     handleBatchForget,
		fusewire.OpGetattr:         handleGetattr,
		fusewire.OpSetattr:         handleSetattr,
		fusewire.OpReadlink:        handleReadlink,
		fusewire.OpSymlink:         handleSymlink,
		fusewire.OpMknod:           handleMknod,
		fusewire.OpMkdir:           handleMkdir,
		fusewire.OpUnlink:          handleUnlink,
		fusewire.OpRmdir:           handleRmdir,
		fusewire.OpRename:          handleRename,
		fusewire.OpRename2:         handleRename2,
		fusewire.OpLink:            handleLink,
		fusewire.OpOpen:            handleOpen,
		fusewire.OpRead:            handleRead,
		fusewire.OpWrite:           handleWrite,
		fusewire.OpStatfs:          handleStatfs,
		fusewire.OpRelease:         handleRelease,
		fusewire.OpFsync:           handleFsync,
		fusewire.OpSetxattr:        handleSetxattr,
		fusewire.OpGetxattr:        handleGetxattr,
		fusewire.OpListxattr:       handleListxattr,
		fusewire.OpRemovexattr:     handleRemovexattr,
		fusewire.OpFlush:           handleFlush,
		fusewire.OpOpendir:         handleOpendir,
		fusewire.OpReaddir:         handleReaddir,
		fusewire.OpReaddirplus:     handleReaddirplus,
		fusewire.OpReleasedir:      handleReleasedir,
		fusewire.OpFsyncdir:        handleFsyncdir,
		fusewire.OpCreate:          handleCreate,
		fusewire.OpFallocate:       handleFallocate,
		fusewire.OpCopyFileRange:   handleCopyFileRange,
	}
}

// session returns the Pool/Channel/Descriptor triple a handler needs to
// submit a fsdevops call, or ok=false if DESTROY (or a rolled-back INIT)
// has already torn the session down out from under an in-flight request.
func (d *Dispatcher) session() (pool *fsdevops.Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, ok bool) {
	d.mu.Lock()
	ch, desc = d.ch, d.desc
	d.mu.Unlock()
	if ch == nil || desc == nil {
		return nil, nil, nil, false
	}
	return poolOf(d.cfg.Registry), ch, desc, true
}

func entryOutFrom(fobj fsdev.FileObject, attr fsdev.FileAttr) fusewire.EntryOut {
	return fusewire.EntryOut{
		Nodeid: uint64(fobj),
		Attr:   fusewire.AttrFromCore(attr),
	}
}

func attrOutFrom(attr fsdev.FileAttr) fusewire.AttrOut {
	return fusewire.AttrOut{Attr: fusewire.AttrFromCore(attr)}
}

func handleLookup(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Lookup(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), name, func(status error, res *fsdevops.LookupResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := entryOutFrom(res.FileObject, res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

// handleForget never replies, per the FUSE ABI: the backend call still
// runs so the lookup-count bookkeeping (spec §4.3) stays correct.
func handleForget(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var fi fusewire.ForgetIn
	if err := in.Fixed(&fi, 8); err != nil {
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		return
	}
	_ = fsdevops.Forget(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), fi.Nlookup, nil)
}

// handleBatchForget reads BatchForgetIn.Count ForgetOne entries and
// forgets each in turn, never replying even if an individual Forget
// fails internally — the preserved Open Question decision (DESIGN.md).
func handleBatchForget(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var bf fusewire.BatchForgetIn
	if err := in.Fixed(&bf, 8); err != nil {
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		return
	}
	for i := uint32(0); i < bf.Count; i++ {
		var fo fusewire.ForgetOne
		if err := in.Fixed(&fo, 16); err != nil {
			return
		}
		_ = fsdevops.Forget(pool, ch, desc, hdr.Unique, fsdev.FileObject(fo.Nodeid), fo.Nlookup, nil)
	}
}

func handleGetattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var gi fusewire.GetattrIn
	if err := in.Fixed(&gi, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.GetAttr(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), fsdev.FileHandle(gi.Fh), func(status error, res *fsdevops.GetAttrResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := attrOutFrom(res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleSetattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var si fusewire.SetattrIn
	if err := in.Fixed(&si, 88); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}

	attr := fsdev.FileAttr{
		Size:  si.Size,
		Mode:  si.Mode,
		UID:   si.UID,
		GID:   si.GID,
		Atime: fusewire.AttrToCore(fusewire.Attr{Atime: si.Atime, AtimeNsec: si.AtimeNsec}).Atime,
		Mtime: fusewire.AttrToCore(fusewire.Attr{Mtime: si.Mtime, MtimeNsec: si.MtimeNsec}).Mtime,
	}

	in2 := fsdevops.SetAttrInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(si.Fh),
		Attr:       attr,
		ToSet:      fusewire.SetAttrMaskFromWire(si.Valid),
	}

	fsdevops.SetAttr(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.SetAttrResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := attrOutFrom(res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleReadlink(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Readlink(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), func(status error, res *fsdevops.ReadlinkResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		oc := fusewire.NewOutCursor()
		oc.Raw([]byte(res.Target))
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleSymlink(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	linkName, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	target, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.SymlinkInput{
		Parent:   fsdev.FileObject(hdr.Nodeid),
		LinkPath: linkName,
		Target:   target,
		EUID:     hdr.UID,
		EGID:     hdr.GID,
	}
	fsdevops.Symlink(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.SymlinkResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := entryOutFrom(res.FileObject, res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleMknod(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var mi fusewire.MknodIn
	if err := in.Fixed(&mi, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.MknodInput{
		Parent: fsdev.FileObject(hdr.Nodeid),
		Name:   name,
		Mode:   mi.Mode,
		Rdev:   mi.Rdev,
		EUID:   hdr.UID,
		EGID:   hdr.GID,
	}
	fsdevops.Mknod(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.MknodResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := entryOutFrom(res.FileObject, res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleMkdir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var mi struct {
		Mode  uint32
		Umask uint32
	}
	if err := in.Fixed(&mi, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.MkdirInput{
		Parent: fsdev.FileObject(hdr.Nodeid),
		Name:   name,
		Mode:   mi.Mode,
		EUID:   hdr.UID,
		EGID:   hdr.GID,
	}
	fsdevops.Mkdir(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.MkdirResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := entryOutFrom(res.FileObject, res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleUnlink(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Unlink(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), name, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleRmdir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Rmdir(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), name, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleRename(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ri fusewire.RenameIn
	if err := in.Fixed(&ri, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	doRename(d, hdr, in, ri.Newdir, 0)
}

func handleRename2(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ri fusewire.Rename2In
	if err := in.Fixed(&ri, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	doRename(d, hdr, in, ri.Newdir, ri.Flags)
}

func doRename(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor, newdir uint64, flags uint32) {
	oldName, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	newName, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.RenameInput{
		Parent:    fsdev.FileObject(hdr.Nodeid),
		Name:      oldName,
		NewParent: fsdev.FileObject(newdir),
		NewName:   newName,
		Flags:     flags,
	}
	fsdevops.Rename(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleLink(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var li fusewire.LinkIn
	if err := in.Fixed(&li, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.LinkInput{
		FileObject: fsdev.FileObject(li.Oldnodeid),
		NewParent:  fsdev.FileObject(hdr.Nodeid),
		Name:       name,
	}
	fsdevops.Link(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.LinkResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := entryOutFrom(res.FileObject, res.Attr)
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleOpen(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var oi fusewire.OpenIn
	if err := in.Fixed(&oi, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	flags := fusewire.TranslateOpenFlags(d.cfg.Arch, oi.Flags)
	fsdevops.Open(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), flags, func(status error, res *fsdevops.OpenResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := fusewire.OpenOut{Fh: uint64(res.Handle)}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleCreate(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ci fusewire.CreateIn
	if err := in.Fixed(&ci, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.CreateInput{
		Parent: fsdev.FileObject(hdr.Nodeid),
		Name:   name,
		Mode:   ci.Mode,
		Flags:  fusewire.TranslateOpenFlags(d.cfg.Arch, ci.Flags),
		Umask:  ci.Umask,
		EUID:   hdr.UID,
		EGID:   hdr.GID,
	}
	fsdevops.Create(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.CreateResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		entry := entryOutFrom(res.FileObject, res.Attr)
		open := fusewire.OpenOut{Fh: uint64(res.Handle)}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&entry)
		_ = oc.Fixed(&open)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleRelease(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ri fusewire.ReleaseIn
	if err := in.Fixed(&ri, 24); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Release(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), fsdev.FileHandle(ri.Fh), func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleRead(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ri fusewire.ReadIn
	if err := in.Fixed(&ri, 40); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	data := make([]byte, ri.Size)
	in2 := fsdevops.ReadInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(ri.Fh),
		Size:       ri.Size,
		Offset:     ri.Offset,
		Flags:      ri.Flags,
		IOVec:      [][]byte{data},
	}
	fsdevops.Read(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.ReadResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		d.reply(hdr.Unique, data[:res.DataSize])
	})
}

func handleWrite(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var wi fusewire.WriteIn
	if err := in.Fixed(&wi, 40); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	if wi.Size > d.maxWrite {
		d.replyStatus(hdr.Unique, fsdev.ErrInvalid, nil)
		return
	}
	payload, err := in.Bytes(int(wi.Size))
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	// Copied out of Run's reusable request buffer: the backend call may
	// be deferred onto the fsdev thread and outlive this request's slot
	// in that buffer.
	owned := append([]byte(nil), payload...)
	in2 := fsdevops.WriteInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(wi.Fh),
		Offset:     wi.Offset,
		Flags:      uint64(wi.Flags),
		IOVec:      [][]byte{owned},
	}
	fsdevops.Write(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.WriteResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := fusewire.WriteOut{Size: res.DataSize}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleStatfs(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Statfs(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), func(status error, res *fsdevops.StatfsResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := fusewire.StatfsOut{
			Blocks:  res.Stats.Blocks,
			Bfree:   res.Stats.Bfree,
			Bavail:  res.Stats.Bavail,
			Files:   res.Stats.Files,
			Ffree:   res.Stats.Ffree,
			Bsize:   res.Stats.Bsize,
			NameLen: res.Stats.NameLen,
			Frsize:  res.Stats.Frsize,
		}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleFsync(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var fi fusewire.FsyncIn
	if err := in.Fixed(&fi, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.FsyncInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(fi.Fh),
		Datasync:   fi.FsyncFlags&1 != 0,
	}
	fsdevops.Fsync(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleFsyncdir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var fi fusewire.FsyncIn
	if err := in.Fixed(&fi, 16); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.FsyncdirInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(fi.Fh),
		Datasync:   fi.FsyncFlags&1 != 0,
	}
	fsdevops.Fsyncdir(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleFlush(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var fi fusewire.FlushIn
	if err := in.Fixed(&fi, 24); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Flush(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), fsdev.FileHandle(fi.Fh), func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleSetxattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var si fusewire.SetxattrIn
	if err := in.Fixed(&si, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	value, err := in.Bytes(int(si.Size))
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.SetxattrInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Name:       name,
		Value:      append([]byte(nil), value...),
		Flags:      si.Flags,
	}
	fsdevops.Setxattr(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleGetxattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var gi fusewire.GetxattrIn
	if err := in.Fixed(&gi, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.GetxattrInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Name:       name,
		Size:       gi.Size,
	}
	fsdevops.Getxattr(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.GetxattrResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		if res.SizeOnly {
			out := fusewire.GetxattrOut{Size: res.ValueSize}
			oc := fusewire.NewOutCursor()
			_ = oc.Fixed(&out)
			d.reply(hdr.Unique, oc.Bytes())
			return
		}
		d.reply(hdr.Unique, res.Value)
	})
}

func handleListxattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var gi fusewire.GetxattrIn
	if err := in.Fixed(&gi, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.ListxattrInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Size:       gi.Size,
	}
	fsdevops.Listxattr(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.ListxattrResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		if res.SizeOnly {
			out := fusewire.GetxattrOut{Size: res.DataSize}
			oc := fusewire.NewOutCursor()
			_ = oc.Fixed(&out)
			d.reply(hdr.Unique, oc.Bytes())
			return
		}
		d.reply(hdr.Unique, res.Data)
	})
}

func handleRemovexattr(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	name, err := in.CString()
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Removexattr(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), name, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleOpendir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var oi fusewire.OpenIn
	if err := in.Fixed(&oi, 8); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Opendir(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), oi.Flags, func(status error, res *fsdevops.OpendirResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := fusewire.OpenOut{Fh: uint64(res.Handle)}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

func handleReleasedir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ri fusewire.ReleaseIn
	if err := in.Fixed(&ri, 24); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	fsdevops.Releasedir(pool, ch, desc, hdr.Unique, fsdev.FileObject(hdr.Nodeid), fsdev.FileHandle(ri.Fh), func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

// readdirRequest decodes the ReadIn struct READDIR/READDIRPLUS reuse verbatim
// (fuse_kernel.h gives both the same request body as READ).
func readdirRequest(in *fusewire.InCursor) (fusewire.ReadIn, error) {
	var ri fusewire.ReadIn
	err := in.Fixed(&ri, 40)
	return ri, err
}

func handleReaddir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	doReaddir(d, hdr, in, false)
}

func handleReaddirplus(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	doReaddir(d, hdr, in, true)
}

func doReaddir(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor, plus bool) {
	ri, err := readdirRequest(in)
	if err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}

	max := int(ri.Size)
	buf := make([]byte, 0, max)

	in2 := fsdevops.ReaddirInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(ri.Fh),
		Offset:     ri.Offset,
		Entry: func(ent fsdevops.Dirent) bool {
			var grown []byte
			var fit bool
			if plus {
				grown, fit = fsdevops.AppendDirentPlus(buf, max, fsdevops.DirentPlus{Dirent: ent})
			} else {
				grown, fit = fsdevops.AppendDirent(buf, max, ent)
			}
			if !fit {
				return false
			}
			buf = grown
			return true
		},
	}

	fsdevops.Readdir(pool, ch, desc, hdr.Unique, in2, func(status error) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		d.reply(hdr.Unique, buf)
	})
}

func handleFallocate(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var fi fusewire.FallocateIn
	if err := in.Fixed(&fi, 32); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.FallocateInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(fi.Fh),
		Mode:       int32(fi.Mode),
		Offset:     int64(fi.Offset),
		Length:     int64(fi.Length),
	}
	fsdevops.Fallocate(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

func handleCopyFileRange(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var ci fusewire.CopyFileRangeIn
	if err := in.Fixed(&ci, 56); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}
	pool, ch, desc, ok := d.session()
	if !ok {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.CopyFileRangeInput{
		FileIn:    fsdev.FileObject(hdr.Nodeid),
		HandleIn:  fsdev.FileHandle(ci.FhIn),
		OffsetIn:  int64(ci.OffIn),
		FileOut:   fsdev.FileObject(ci.NodeidOut),
		HandleOut: fsdev.FileHandle(ci.FhOut),
		OffsetOut: int64(ci.OffOut),
		Len:       ci.Len,
		Flags:     uint32(ci.Flags),
	}
	fsdevops.CopyFileRange(pool, ch, desc, hdr.Unique, in2, func(status error, res *fsdevops.CopyFileRangeResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			return
		}
		out := fusewire.WriteOut{Size: uint32(res.DataSize)}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
	})
}

// flockOpFromLockType maps a fuse_file_lock.type (F_RDLCK/F_WRLCK/F_UNLCK)
// to the flock(2) operation spdk_fsdev_flock expects, mirroring
// do_setlk_common's switch.
func flockOpFromLockType(typ uint32) (int, bool) {
	switch typ {
	case unix.F_RDLCK:
		return unix.LOCK_SH, true
	case unix.F_WRLCK:
		return unix.LOCK_EX, true
	case unix.F_UNLCK:
		return unix.LOCK_UN, true
	default:
		return 0, false
	}
}

// handleSetlk services only the FUSE_LK_FLOCK-flagged form of SETLK,
// routed to fsdevops.Flock; a plain POSIX fcntl(2) lock request (no
// FUSE_LK_FLOCK) is not supported, matching do_setlk_common's ENOSYS
// fallback.
func handleSetlk(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	var li fusewire.LkIn
	if err := in.Fixed(&li, 48); err != nil {
		d.replyStatus(hdr.Unique, err, nil)
		return
	}

	if li.LkFlags&fusewire.LkFlock == 0 {
		d.replyErrno(hdr.Unique, fsdev.KindNotSupported.Errno())
		return
	}

	op, ok := flockOpFromLockType(li.Lk.Type)
	if !ok {
		d.replyErrno(hdr.Unique, fsdev.KindNotSupported.Errno())
		return
	}

	pool, ch, desc, sessionOK := d.session()
	if !sessionOK {
		d.reply(hdr.Unique, nil)
		return
	}
	in2 := fsdevops.FlockInput{
		FileObject: fsdev.FileObject(hdr.Nodeid),
		Handle:     fsdev.FileHandle(li.Fh),
		Operation:  op,
	}
	fsdevops.Flock(pool, ch, desc, hdr.Unique, in2, func(status error) {
		d.replyStatus(hdr.Unique, status, nil)
	})
}

// handleSetlkw always replies ENOSYS: this module never blocks a
// dispatch thread waiting on a contested lock, matching do_setlkw.
func handleSetlkw(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	d.replyErrno(hdr.Unique, fsdev.KindNotSupported.Errno())
}
