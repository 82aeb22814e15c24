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

import (
	"testing"

	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/fsdevthread"
)

// recordingBackend completes every op inline with a canned result keyed by
// OpKind, and records the last Input it saw so a test can assert the
// builder populated it correctly.
type recordingBackend struct {
	fsdev.NoOptionalMethods
	channel fsdev.BackendChannel

	lastInput any
	results   map[fsdev.OpKind]any
	fail      map[fsdev.OpKind]error
}

type recordingChannel struct{}

func (recordingChannel) Close() {}

func (b *recordingBackend) Destruct(ctx any) error { return nil }

func (b *recordingBackend) GetIOChannel(ctx any) fsdev.BackendChannel { return b.channel }

func (b *recordingBackend) SubmitRequest(ch fsdev.BackendChannel, op *fsdev.OperationDescriptor) {
	b.lastInput = op.Input
	if err := b.fail[op.Kind]; err != nil {
		fsdev.Complete(op, err, nil)
		return
	}
	fsdev.Complete(op, nil, b.results[op.Kind])
}

func newHarness(t *testing.T) (*Pool, *fsdev.Channel, *fsdev.Descriptor, *fsdevthread.Loop, *recordingBackend) {
	t.Helper()

	backend := &recordingBackend{
		channel: recordingChannel{},
		results: make(map[fsdev.OpKind]any),
		fail:    make(map[fsdev.OpKind]error),
	}

	r := fsdev.NewRegistry()
	if err := r.RegisterModule(&fsdev.Module{Name: "rec", GetCtxSize: func() int { return 0 }}); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := r.Register("dev0", nil, backend, "rec"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	loop := fsdevthread.NewLoop(8)

	var desc *fsdev.Descriptor
	var ch *fsdev.Channel
	loop.Post(func() {
		var err error
		desc, err = r.Open("dev0", loop, func(fsdev.EventType, *fsdev.Fsdev, any) {}, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		ch, err = r.GetIOChannel(desc)
		if err != nil {
			t.Fatalf("GetIOChannel: %v", err)
		}
	})
	loop.PollOnce()

	return r.Pool(), ch, desc, loop, backend
}

func TestLookupBuildsInputAndUnwrapsResult(t *testing.T) {
	pool, ch, desc, loop, backend := newHarness(t)

	want := &LookupResult{FileObject: fsdev.RootFileObject + 1, Attr: fsdev.FileAttr{Ino: 2}}
	backend.results[fsdev.OpLookup] = want

	var status error
	var got *LookupResult
	if err := Lookup(pool, ch, desc, 1, fsdev.RootFileObject, "child", func(s error, r *LookupResult) {
		status, got = s, r
	}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	loop.PollOnce()

	if status != nil {
		t.Fatalf("status = %v, want nil", status)
	}
	if got != want {
		t.Fatalf("result = %+v, want the backend's own %+v", got, want)
	}

	in, ok := backend.lastInput.(*LookupInput)
	if !ok {
		t.Fatalf("backend saw Input of type %T, want *LookupInput", backend.lastInput)
	}
	if in.Parent != fsdev.RootFileObject || in.Name != "child" {
		t.Fatalf("LookupInput = %+v, want Parent=%d Name=child", in, fsdev.RootFileObject)
	}
}

func TestLookupPropagatesBackendError(t *testing.T) {
	pool, ch, desc, loop, backend := newHarness(t)
	backend.fail[fsdev.OpLookup] = fsdev.NewError(fsdev.KindInvalid, "no such file or directory")

	var status error
	if err := Lookup(pool, ch, desc, 1, fsdev.RootFileObject, "missing", func(s error, _ *LookupResult) {
		status = s
	}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	loop.PollOnce()

	if status == nil {
		t.Fatal("expected a non-nil status")
	}
}

func TestMkdirRoundTrip(t *testing.T) {
	pool, ch, desc, loop, backend := newHarness(t)
	want := &MkdirResult{FileObject: 7, Attr: fsdev.FileAttr{Ino: 7}}
	backend.results[fsdev.OpMkdir] = want

	var got *MkdirResult
	if err := Mkdir(pool, ch, desc, 1, MkdirInput{Parent: fsdev.RootFileObject, Name: "d", Mode: 0755}, func(s error, r *MkdirResult) {
		got = r
	}); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	loop.PollOnce()

	if got != want {
		t.Fatalf("result = %+v, want %+v", got, want)
	}

	in, ok := backend.lastInput.(*MkdirInput)
	if !ok || in.Name != "d" || in.Mode != 0755 {
		t.Fatalf("MkdirInput = %+v", backend.lastInput)
	}
}

func TestReadRejectsEmptyIOVec(t *testing.T) {
	pool, ch, desc, _, _ := newHarness(t)

	err := Read(pool, ch, desc, 1, ReadInput{FileObject: fsdev.RootFileObject}, nil)
	if err != fsdev.ErrInvalid {
		t.Fatalf("got %v, want ErrInvalid for a Read with no IOVec", err)
	}
}

func TestWriteRejectsEmptyIOVec(t *testing.T) {
	pool, ch, desc, _, _ := newHarness(t)

	err := Write(pool, ch, desc, 1, WriteInput{FileObject: fsdev.RootFileObject}, nil)
	if err != fsdev.ErrInvalid {
		t.Fatalf("got %v, want ErrInvalid for a Write with no IOVec", err)
	}
}

func TestForgetAndUmountHaveNoOutputButStillSignalStatus(t *testing.T) {
	pool, ch, desc, loop, _ := newHarness(t)

	var status error
	if err := Forget(pool, ch, desc, 1, fsdev.RootFileObject, 1, func(s error) { status = s }); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	loop.PollOnce()
	if status != nil {
		t.Fatalf("status = %v, want nil", status)
	}

	if err := Umount(pool, ch, desc, 2, func(s error) { status = s }); err != nil {
		t.Fatalf("Umount: %v", err)
	}
	loop.PollOnce()
	if status != nil {
		t.Fatalf("status = %v, want nil", status)
	}
}

func TestReaddirCarriesEntryCallbackToBackend(t *testing.T) {
	pool, ch, desc, loop, backend := newHarness(t)
	backend.results[fsdev.OpReaddir] = nil

	var seen []string
	var status error
	err := Readdir(pool, ch, desc, 1, ReaddirInput{
		FileObject: fsdev.RootFileObject,
		Entry: func(d Dirent) bool {
			seen = append(seen, d.Name)
			return true
		},
	}, func(s error) { status = s })
	if err != nil {
		t.Fatalf("Readdir: %v", err)
	}
	loop.PollOnce()

	// This recordingBackend never itself invokes Entry (that is
	// memfsdev's job, exercised in package samples/memfsdev); here the
	// builder's own job is only to carry Entry through to op.Input
	// untouched and unwrap the completion status.
	if status != nil {
		t.Fatalf("status = %v, want nil", status)
	}
	in := backend.lastInput.(*ReaddirInput)
	if in.Entry == nil {
		t.Fatal("ReaddirInput.Entry was not threaded through to the backend")
	}
	if len(seen) != 0 {
		t.Fatalf("seen = %v, want empty since this fake never calls Entry", seen)
	}
}
