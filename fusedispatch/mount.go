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
	"fmt"
	"syscall"

	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/fsdevops"
	"github.com/spdk-go/fsdev/internal/fusewire"
)

// handleInit performs the work Connection.Init does for jacobsa/fuse:
// validate the kernel's requested protocol, open a Descriptor and
// Channel against this Dispatcher's Fsdev, begin a mount session, and
// reply with this module's own negotiated InitOut.
func (d *Dispatcher) handleInit(hdr fusewire.InHeader, in *fusewire.InCursor) error {
	var ii fusewire.InitIn
	if err := in.Fixed(&ii, 16); err != nil {
		return err
	}

	if ii.Major < 7 {
		d.replyErrno(hdr.Unique, syscall.EPROTO)
		return fmt.Errorf("kernel protocol too old: %d.%d", ii.Major, ii.Minor)
	}

	// A kernel speaking a newer major than this module understands is
	// told to retry with major=7: this module's own InitOut is sent back
	// unmounted and Uninitialized is never left, matching do_init's
	// "wait for a second INIT request with a 7.X version" branch.
	if ii.Major > 7 {
		out := fusewire.InitOut{Major: 7, Minor: protocolMinorVersion}
		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)
		d.reply(hdr.Unique, oc.Bytes())
		return nil
	}

	desc, err := d.cfg.Registry.Open(d.cfg.FsdevName, d.cfg.Thread, d.onFsdevEvent, nil)
	if err != nil {
		d.replyErrno(hdr.Unique, fsdev.AsErrno(err))
		return fmt.Errorf("open %q: %w", d.cfg.FsdevName, err)
	}

	ch, err := d.cfg.Registry.GetIOChannel(desc)
	if err != nil {
		desc.Close()
		d.replyErrno(hdr.Unique, fsdev.AsErrno(err))
		return fmt.Errorf("get io channel: %w", err)
	}

	d.mu.Lock()
	d.desc, d.ch = desc, ch
	d.protoMajor, d.protoMinor = 7, ii.Minor
	d.mu.Unlock()

	maxWrite := d.maxWrite
	wantOpts := fsdev.MountOpts{
		MaxWrite:              maxWrite,
		WritebackCacheEnabled: !d.cfg.DisableWritebackCache,
	}

	pool := poolOf(d.cfg.Registry)
	return fsdevops.Mount(pool, ch, desc, hdr.Unique, wantOpts, func(status error, res *fsdevops.MountResult) {
		if status != nil {
			d.replyStatus(hdr.Unique, status, nil)
			desc.Close()
			return
		}

		d.mu.Lock()
		d.maxWrite = res.Opts.MaxWrite
		d.state = stateMounted
		d.mu.Unlock()

		out := fusewire.InitOut{
			Major:                7,
			Minor:                ii.Minor,
			MaxReadahead:         maxReadahead,
			Flags:                d.negotiatedInitFlags(ii.Flags, res.Opts),
			MaxBackground:        64,
			CongestionThreshold:  48,
			MaxWrite:             res.Opts.MaxWrite,
		}

		oc := fusewire.NewOutCursor()
		_ = oc.Fixed(&out)

		if !d.sendReplyRollback(hdr.Unique, oc.Bytes()) {
			d.mu.Lock()
			d.state = stateUninitialized
			d.desc, d.ch = nil, nil
			d.mu.Unlock()
			fsdevops.Umount(pool, ch, desc, nextInternalUnique(), nil)
			desc.Close()
		}
	})
}

// negotiatedInitFlags always offers big writes and max pages, and adds
// writeback caching when the mount result enables it. kernelFlags is not
// consulted, and every other optional flag is left off.
func (d *Dispatcher) negotiatedInitFlags(kernelFlags uint32, opts fsdev.MountOpts) uint32 {
	var flags uint32
	flags |= fusewire.InitBigWrites
	flags |= fusewire.InitMaxPages
	if opts.WritebackCacheEnabled {
		flags |= fusewire.InitWritebackCache
	}
	return flags
}

// sendReplyRollback sends the INIT reply and reports whether the write
// succeeded, so handleInit can roll the mount back on failure rather than
// leave the Fsdev mounted against a transport the kernel never actually
// received a reply from (spec §4.4's "mount rollback-on-response-failure").
func (d *Dispatcher) sendReplyRollback(unique uint64, payload []byte) bool {
	out := fusewire.OutHeader{
		Length: uint32(fusewire.OutHeaderSize + len(payload)),
		Unique: unique,
	}
	oc := fusewire.NewOutCursor()
	if err := oc.Fixed(&out); err != nil {
		d.errorf("fusedispatch: encode init reply: %v", err)
		return false
	}
	oc.Raw(payload)

	if err := d.cfg.Transport.WriteV([][]byte{oc.Bytes()}); err != nil {
		d.errorf("fusedispatch: write init reply: %v", err)
		return false
	}
	return true
}

// onFsdevEvent handles an asynchronous Fsdev event delivered to this
// session's Descriptor — today just EventRemove, a hot-unplug of the
// backing Fsdev while mounted. Further requests will fail with
// KindNoDevice once the descriptor itself is gone; this only logs.
func (d *Dispatcher) onFsdevEvent(typ fsdev.EventType, f *fsdev.Fsdev, ctx any) {
	if typ == fsdev.EventRemove {
		d.debugf("fsdev %q removed out from under mounted session", f.Name)
	}
}

// handleDestroy ends the mount session: umount the Fsdev, reply with an
// empty payload, and return to Uninitialized so a subsequent INIT could
// in principle remount (matching the teacher's Connection, which is
// always torn down and rebuilt per mount rather than reused).
func handleDestroy(d *Dispatcher, hdr fusewire.InHeader, in *fusewire.InCursor) {
	d.mu.Lock()
	ch, desc := d.ch, d.desc
	d.mu.Unlock()
	if ch == nil || desc == nil {
		d.reply(hdr.Unique, nil)
		return
	}

	pool := poolOf(d.cfg.Registry)
	fsdevops.Umount(pool, ch, desc, hdr.Unique, func(status error) {
		d.mu.Lock()
		d.state = stateUninitialized
		d.desc, d.ch = nil, nil
		d.mu.Unlock()
		desc.Close()
		d.replyStatus(hdr.Unique, status, nil)
	})
}
