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
	"io"
	"log"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/fsdevops"
	"github.com/spdk-go/fsdev/fsdevthread"
	"github.com/spdk-go/fsdev/internal/fusewire"
)

// maxReadahead mirrors connection.go's own constant: ask the kernel for
// large read requests rather than a page at a time.
const maxReadahead = 1 << 20

// defaultMaxWrite is this module's own negotiated ceiling, analogous to
// buffer.MaxWriteSize in the teacher.
const defaultMaxWrite = 1 << 20

// protocolMinorVersion is this module's own FUSE_KERNEL_MINOR_VERSION,
// reported back to a kernel that opens with a newer major than this
// module speaks so it knows which 7.X to retry with.
const protocolMinorVersion = 38

// Transport is the minimal abstraction over the kernel FUSE channel a
// Dispatcher needs: one request per Read, one reply per WriteV. It plays
// the role connection.go's *os.File dev field plays for jacobsa/fuse,
// generalized so this module is testable without an actual mounted
// kernel session.
type Transport interface {
	// Read blocks for the next request and returns the number of bytes
	// placed in buf. Returning io.EOF signals the kernel has hung up.
	Read(buf []byte) (int, error)

	// WriteV sends one reply as a list of buffers (OutHeader followed by
	// the op-specific payload).
	WriteV(iovecs [][]byte) error
}

type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateMounted
)

// Config supplies everything a Dispatcher needs to run one FUSE session
// against one named Fsdev.
type Config struct {
	FsdevName string
	Registry  *fsdev.Registry
	Thread    fsdevthread.Thread
	Transport Transport
	Arch      fusewire.Arch

	// DebugLogger and ErrorLogger are optional, mirroring
	// Connection.debugLogger/errorLogger: nil disables that stream.
	DebugLogger *log.Logger
	ErrorLogger *log.Logger

	// DisableWritebackCache matches MountConfig.DisableWritebackCaching:
	// writeback caching is requested unless this is set.
	DisableWritebackCache bool
}

// Dispatcher is a single FUSE session's state machine: Uninitialized
// until INIT negotiates the protocol and opens a Descriptor/Channel
// against its Fsdev, Mounted from then until DESTROY ends the session (a
// failed INIT reply also rolls it back). A hot-remove event is only
// logged; it does not end the session.
type Dispatcher struct {
	cfg Config

	byteOrder fusewire.ByteOrderHook

	mu    sync.Mutex
	state lifecycleState
	desc  *fsdev.Descriptor
	ch    *fsdev.Channel

	protoMajor uint32
	protoMinor uint32
	maxWrite   uint32

	handlers map[fusewire.Opcode]handlerFunc
}

// NewDispatcher builds a Dispatcher in the Uninitialized state. Run must
// be called to actually drive it.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		byteOrder: fusewire.IdentityByteOrder(),
		state:     stateUninitialized,
		maxWrite:  defaultMaxWrite,
	}
	d.handlers = buildHandlerTable()
	return d
}

func (d *Dispatcher) debugf(format string, args ...any) {
	if d.cfg.DebugLogger != nil {
		d.cfg.DebugLogger.Printf(format, args...)
	}
}

func (d *Dispatcher) errorf(format string, args ...any) {
	if d.cfg.ErrorLogger != nil {
		d.cfg.ErrorLogger.Printf(format, args...)
	}
}

// Run reads and dispatches requests until the transport reports io.EOF
// (the kernel hung up) or a fatal error occurs. It must be called from
// cfg.Thread's own goroutine.
func (d *Dispatcher) Run() error {
	buf := make([]byte, fusewire.InHeaderSize+1<<20)
	for {
		n, err := d.cfg.Transport.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fusedispatch: read: %w", err)
		}

		if err := d.dispatchOne(buf[:n]); err != nil {
			d.errorf("fusedispatch: %v", err)
		}
	}
}

func (d *Dispatcher) dispatchOne(msg []byte) error {
	in := fusewire.NewInCursor([][]byte{msg})

	var hdr fusewire.InHeader
	if err := in.Fixed(&hdr, fusewire.InHeaderSize); err != nil {
		return err
	}
	hdr.Opcode = d.byteOrder.D2H(hdr.Opcode)

	op := fusewire.Opcode(hdr.Opcode)
	d.debugf("<- %s unique=%d nodeid=%d", op, hdr.Unique, hdr.Nodeid)

	// INTERRUPT is handled inline, never through the opcode table and
	// never replied to directly — the interrupted op's own eventual
	// reply (typically EINTR, at the backend's discretion) is the only
	// response the kernel expects, matching
	// Connection.handleInterrupt/ReadOp's special case.
	if op == fusewire.OpInterrupt {
		var ii fusewire.InterruptIn
		if err := in.Fixed(&ii, 8); err != nil {
			return err
		}
		d.handleInterrupt(ii.Unique)
		return nil
	}

	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state == stateUninitialized {
		if op != fusewire.OpInit {
			d.replyErrno(hdr.Unique, fsdev.KindProtocol.Errno())
			return fmt.Errorf("request %s before INIT", op)
		}
		return d.handleInit(hdr, in)
	}

	h, ok := d.handlers[op]
	if !ok {
		if op != fusewire.OpForget && op != fusewire.OpBatchForget {
			d.replyErrno(hdr.Unique, fsdev.KindNotSupported.Errno())
		}
		return nil
	}

	h(d, hdr, in)
	return nil
}

// reply sends one OutHeader+payload for unique, with error 0.
func (d *Dispatcher) reply(unique uint64, payload []byte) {
	d.replyStatus(unique, nil, payload)
}

// replyErrno sends an error-only reply (no payload).
func (d *Dispatcher) replyErrno(unique uint64, errno syscall.Errno) {
	d.sendReply(unique, -int32(errno), nil)
}

// replyStatus sends payload on success or translates err to the FUSE
// wire errno on failure, mirroring Reply/kernelResponse's status mapping.
func (d *Dispatcher) replyStatus(unique uint64, err error, payload []byte) {
	if err != nil {
		errno := fsdev.AsErrno(err)
		d.debugf("-> unique=%d error=%v", unique, err)
		d.sendReply(unique, -int32(errno), nil)
		return
	}
	d.debugf("-> unique=%d ok (%d bytes)", unique, len(payload))
	d.sendReply(unique, 0, payload)
}

func (d *Dispatcher) sendReply(unique uint64, errno int32, payload []byte) {
	out := fusewire.OutHeader{
		Length: uint32(fusewire.OutHeaderSize + len(payload)),
		Error:  errno,
		Unique: unique,
	}

	oc := fusewire.NewOutCursor()
	if err := oc.Fixed(&out); err != nil {
		d.errorf("fusedispatch: encode header: %v", err)
		return
	}
	oc.Raw(payload)

	if err := d.cfg.Transport.WriteV([][]byte{oc.Bytes()}); err != nil {
		d.errorf("fusedispatch: write reply: %v", err)
	}
}

// handleInterrupt asks the backend to make a best-effort attempt at
// cancelling the op tagged unique, per the INTERRUPT->abort translation
// (spec §4.4). It is fire-and-forget: abort's own completion carries no
// reply obligation back to the kernel.
func (d *Dispatcher) handleInterrupt(unique uint64) {
	d.mu.Lock()
	ch, desc := d.ch, d.desc
	d.mu.Unlock()
	if ch == nil || desc == nil {
		return
	}
	_ = fsdevops.Abort(poolOf(d.cfg.Registry), ch, desc, nextInternalUnique(), unique, nil)
}

func poolOf(r *fsdev.Registry) *fsdevops.Pool { return r.Pool() }

var internalUniqueCounter uint64

// nextInternalUnique mints a "unique" id for requests this module
// originates itself (the ABORT it issues in response to an INTERRUPT and
// the UMOUNT of a rolled-back INIT), kept disjoint from kernel-assigned uniques by starting
// at a high bit no 64-bit kernel counter will reach in practice.
func nextInternalUnique() uint64 {
	return 1<<63 | atomic.AddUint64(&internalUniqueCounter, 1)
}
