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

import (
	"io"
	"syscall"
	"testing"

	"github.com/spdk-go/fsdev/fsdevthread"
)

// fakeChannel is the simplest possible BackendChannel: an identity marker
// with no real resource behind it, enough to exercise SharedResource
// coalescing in GetIOChannel.
type fakeChannel struct{ closed *bool }

func (c fakeChannel) Close() { *c.closed = true }

// fakeBackend completes every SubmitRequest inline, synchronously, from
// whatever goroutine called it — the simplest FnTable that still
// exercises Submit's reentry-guarding Post.
type fakeBackend struct {
	NoOptionalMethods
	channel    BackendChannel
	lastKind   OpKind
	destructed bool
}

func (b *fakeBackend) Destruct(ctx any) error {
	b.destructed = true
	return nil
}

func (b *fakeBackend) SubmitRequest(ch BackendChannel, op *OperationDescriptor) {
	b.lastKind = op.Kind
	Complete(op, nil, "ok")
}

func (b *fakeBackend) GetIOChannel(ctx any) BackendChannel {
	return b.channel
}

func newTestRegistry(t *testing.T) (*Registry, *fakeBackend) {
	t.Helper()
	r := NewRegistry()
	closed := false
	backend := &fakeBackend{channel: fakeChannel{closed: &closed}}

	if err := r.RegisterModule(&Module{Name: "fake", GetCtxSize: func() int { return 0 }}); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := r.Register("dev0", nil, backend, "fake"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r, backend
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r, backend := newTestRegistry(t)
	if _, err := r.Register("dev0", nil, backend, "fake"); err != ErrExists {
		t.Fatalf("got %v, want ErrExists", err)
	}
}

func TestOpenUnknownFsdevFails(t *testing.T) {
	r, _ := newTestRegistry(t)
	loop := fsdevthread.NewLoop(4)
	_, err := r.Open("missing", loop, func(EventType, *Fsdev, any) {}, nil)
	if err != ErrNoDevice {
		t.Fatalf("got %v, want ErrNoDevice", err)
	}
}

func TestOpenRequiresCallingThread(t *testing.T) {
	r, _ := newTestRegistry(t)
	loop := fsdevthread.NewLoop(4)

	// IsCurrent is only true while Loop is actually executing a function
	// it dequeued; calling Open directly, outside of a Post, must fail.
	_, err := r.Open("dev0", loop, func(EventType, *Fsdev, any) {}, nil)
	if err != ErrNotSupported {
		t.Fatalf("got %v, want ErrNotSupported when not called from loop's own dequeue", err)
	}
}

func TestSubmitCompleteRoundTrip(t *testing.T) {
	r, backend := newTestRegistry(t)
	loop := fsdevthread.NewLoop(4)

	var desc *Descriptor
	var ch *Channel
	loop.Post(func() {
		var err error
		desc, err = r.Open("dev0", loop, func(EventType, *Fsdev, any) {}, nil)
		if err != nil {
			t.Errorf("Open: %v", err)
			return
		}
		ch, err = r.GetIOChannel(desc)
		if err != nil {
			t.Errorf("GetIOChannel: %v", err)
		}
	})
	loop.PollOnce()

	if n := loop.PollOnce(); n != 0 {
		t.Fatalf("unexpected extra posted work: %d", n)
	}

	var status error
	var output any
	loop.Post(func() {
		_, err := Submit(r.Pool(), ch, desc, loop, OpGetAttr, 42, "input", func(s error, out any) {
			status, output = s, out
		})
		if err != nil {
			t.Errorf("Submit: %v", err)
		}
	})
	// One PollOnce drains both: the Post above (which synchronously calls
	// SubmitRequest and reenters via Complete) and the completion it
	// defers onto the same queue, since PollOnce keeps draining until the
	// channel is actually empty rather than stopping after one dequeue.
	loop.PollOnce()

	if backend.lastKind != OpGetAttr {
		t.Fatalf("backend saw kind %v, want OpGetAttr", backend.lastKind)
	}
	if status != nil {
		t.Fatalf("status = %v, want nil", status)
	}
	if output != "ok" {
		t.Fatalf("output = %v, want \"ok\"", output)
	}
	if n := ch.InFlightCount(); n != 0 {
		t.Fatalf("InFlightCount = %d, want 0 after completion", n)
	}
}

func TestSubmitNoBuffersReturnsSynchronously(t *testing.T) {
	r, _ := newTestRegistry(t)
	loop := fsdevthread.NewLoop(4)

	var desc *Descriptor
	var ch *Channel
	loop.Post(func() {
		var err error
		desc, err = r.Open("dev0", loop, func(EventType, *Fsdev, any) {}, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		ch, err = r.GetIOChannel(desc)
		if err != nil {
			t.Fatalf("GetIOChannel: %v", err)
		}
	})
	loop.PollOnce()

	// Drain the pool to zero by acquiring every descriptor the default
	// Opts allow, without releasing any.
	pool := r.Pool()
	var acquired []*OperationDescriptor
	for {
		op := pool.Acquire(1)
		if op == nil {
			break
		}
		acquired = append(acquired, op)
	}
	if len(acquired) == 0 {
		t.Fatal("expected the pool to have a finite, exhaustible size")
	}

	_, err := Submit(pool, ch, desc, loop, OpGetAttr, 1, nil, nil)
	if err != ErrNoBuffers {
		t.Fatalf("got %v, want ErrNoBuffers", err)
	}
}

func TestUnregisterWaitsForOpenDescriptors(t *testing.T) {
	r, backend := newTestRegistry(t)
	loop := fsdevthread.NewLoop(4)

	var desc *Descriptor
	var removed bool
	loop.Post(func() {
		var err error
		desc, err = r.Open("dev0", loop, func(typ EventType, f *Fsdev, ctx any) {
			if typ == EventRemove {
				removed = true
			}
		}, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
	})
	loop.PollOnce()

	unregDone := false
	if err := r.Unregister("dev0", func(error) { unregDone = true }); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if unregDone {
		t.Fatal("Unregister completed before the open descriptor's removal notification was even delivered")
	}

	loop.PollOnce() // delivers notifyRemove, whose event callback sets removed

	if !removed {
		t.Fatal("descriptor never observed EventRemove")
	}

	loop.Post(func() {
		if err := desc.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	loop.PollOnce()

	if !unregDone {
		t.Fatal("Unregister callback never fired after the last descriptor closed")
	}
	if !backend.destructed {
		t.Fatal("backend Destruct never called")
	}

	if _, ok := r.Lookup("dev0"); ok {
		t.Fatal("fsdev still present in registry after teardown")
	}
}

func TestAsErrnoPassesThroughPlainErrno(t *testing.T) {
	if got := AsErrno(syscall.ENOENT); got != syscall.ENOENT {
		t.Fatalf("AsErrno(ENOENT) = %v, want ENOENT", got)
	}
	if got := AsErrno(io.EOF); got == 0 {
		t.Fatal("AsErrno(io.EOF) should not report success")
	}
	if got := AsErrno(nil); got != 0 {
		t.Fatalf("AsErrno(nil) = %v, want 0", got)
	}
}

func TestNewErrnoErrorReportsGivenErrnoNotKindDefault(t *testing.T) {
	e := NewErrnoError(KindInvalid, 2, "no such file or directory")
	if e.Kind != KindInvalid {
		t.Fatalf("Kind = %v, want KindInvalid", e.Kind)
	}
	if AsErrno(e) != 2 {
		t.Fatalf("AsErrno = %v, want 2 (not KindInvalid's own EINVAL default)", AsErrno(e))
	}
}
