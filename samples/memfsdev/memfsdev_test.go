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

package memfsdev_test

import (
	"bytes"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/fsdevops"
	"github.com/spdk-go/fsdev/fsdevthread"
	"github.com/spdk-go/fsdev/samples/memfsdev"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestMemfsdev(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Harness
//
// memfsdev has no real kernel mount to drive it through, unlike
// samples.SampleTest's os.Mkdir/os.Stat against an actual mounted
// directory: it is exercised directly, one fsdevops builder call at a
// time, against a Backend wired into a real fsdev.Registry. Every call
// still goes through the Submit/Complete machinery, deferred onto a real
// fsdevthread.Loop exactly as a dispatcher would drive it; a test only
// adds the single PollOnce that stands in for the reactor's own poll.
////////////////////////////////////////////////////////////////////////

type BackendTest struct {
	registry *fsdev.Registry
	loop     *fsdevthread.Loop
	backend  *memfsdev.Backend
	desc     *fsdev.Descriptor
	ch       *fsdev.Channel
	pool     *fsdevops.Pool

	unique uint64
}

func init() { RegisterTestSuite(&BackendTest{}) }

func (t *BackendTest) SetUp(ti *TestInfo) {
	t.registry = fsdev.NewRegistry()

	_, backend, err := memfsdev.Register(t.registry, "memfsdev0")
	AssertEq(nil, err)
	t.backend = backend

	AssertEq(nil, t.registry.Initialize())

	t.loop = fsdevthread.NewLoop(64)

	// Open and GetIOChannel must run on the descriptor's own thread.
	var desc *fsdev.Descriptor
	var ch *fsdev.Channel
	var openErr, chErr error
	t.loop.Post(func() {
		desc, openErr = t.registry.Open("memfsdev0", t.loop, func(fsdev.EventType, *fsdev.Fsdev, any) {}, nil)
		if openErr == nil {
			ch, chErr = t.registry.GetIOChannel(desc)
		}
	})
	t.loop.PollOnce()

	AssertEq(nil, openErr)
	t.desc = desc

	AssertEq(nil, chErr)
	t.ch = ch

	t.pool = t.registry.Pool()
}

func (t *BackendTest) nextUnique() uint64 {
	t.unique++
	return t.unique
}

// drain runs submit, then polls the loop once so the deferred completion
// posted by fsdev.Submit actually runs before the caller inspects its
// captured result (spec §5's no-reentry invariant: a backend's inline
// Complete is always bounced through thread.Post).
func (t *BackendTest) drain(submitErr error) {
	AssertEq(nil, submitErr)
	n := t.loop.PollOnce()
	AssertTrue(n >= 1)
}

func (t *BackendTest) mount() {
	var status error
	err := fsdevops.Mount(t.pool, t.ch, t.desc, t.nextUnique(), fsdev.MountOpts{MaxWrite: 1 << 20}, func(s error, res *fsdevops.MountResult) {
		status = s
	})
	t.drain(err)
	AssertEq(nil, status)
}

func (t *BackendTest) mkdir(parent fsdev.FileObject, name string) (fsdev.FileObject, error) {
	var result *fsdevops.MkdirResult
	var status error
	err := fsdevops.Mkdir(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.MkdirInput{
		Parent: parent, Name: name, Mode: 0755,
	}, func(s error, r *fsdevops.MkdirResult) { status, result = s, r })
	t.drain(err)
	if status != nil {
		return 0, status
	}
	return result.FileObject, nil
}

func (t *BackendTest) create(parent fsdev.FileObject, name string) (fsdev.FileObject, fsdev.FileHandle, error) {
	var result *fsdevops.CreateResult
	var status error
	err := fsdevops.Create(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.CreateInput{
		Parent: parent, Name: name, Mode: 0644,
	}, func(s error, r *fsdevops.CreateResult) { status, result = s, r })
	t.drain(err)
	if status != nil {
		return 0, 0, status
	}
	return result.FileObject, result.Handle, nil
}

func (t *BackendTest) lookup(parent fsdev.FileObject, name string) (*fsdevops.LookupResult, error) {
	var result *fsdevops.LookupResult
	var status error
	err := fsdevops.Lookup(t.pool, t.ch, t.desc, t.nextUnique(), parent, name, func(s error, r *fsdevops.LookupResult) { status, result = s, r })
	t.drain(err)
	return result, status
}

func (t *BackendTest) write(fobj fsdev.FileObject, handle fsdev.FileHandle, offset uint64, data []byte) (uint32, error) {
	var result *fsdevops.WriteResult
	var status error
	err := fsdevops.Write(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.WriteInput{
		FileObject: fobj, Handle: handle, Offset: offset, IOVec: [][]byte{data},
	}, func(s error, r *fsdevops.WriteResult) { status, result = s, r })
	t.drain(err)
	if status != nil {
		return 0, status
	}
	return result.DataSize, nil
}

func (t *BackendTest) read(fobj fsdev.FileObject, handle fsdev.FileHandle, offset uint64, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	var result *fsdevops.ReadResult
	var status error
	err := fsdevops.Read(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.ReadInput{
		FileObject: fobj, Handle: handle, Offset: offset, Size: size, IOVec: [][]byte{buf},
	}, func(s error, r *fsdevops.ReadResult) { status, result = s, r })
	t.drain(err)
	if status != nil {
		return nil, status
	}
	return buf[:result.DataSize], nil
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *BackendTest) MountNegotiatesRoot() {
	t.mount()

	res, status := t.lookup(0, "")
	ExpectEq(nil, status)
	ExpectEq(fsdev.RootFileObject, res.FileObject)
	ExpectTrue(res.Attr.Mode&0040000 != 0, "root must report S_IFDIR")
}

func (t *BackendTest) MkdirThenLookupSucceeds() {
	t.mount()

	id, err := t.mkdir(fsdev.RootFileObject, "dir")
	AssertEq(nil, err)
	ExpectNe(fsdev.RootFileObject, id)

	res, status := t.lookup(fsdev.RootFileObject, "dir")
	AssertEq(nil, status)
	ExpectEq(id, res.FileObject)
	ExpectTrue(res.Attr.Mode&0040000 != 0, "mkdir'd entry must report S_IFDIR")
}

func (t *BackendTest) MkdirDuplicateNameFails() {
	t.mount()

	_, err := t.mkdir(fsdev.RootFileObject, "dir")
	AssertEq(nil, err)

	_, err = t.mkdir(fsdev.RootFileObject, "dir")
	AssertNe(nil, err)
	ExpectEq(fsdev.KindExists, err.(*fsdev.Error).Kind)
}

func (t *BackendTest) LookupMissingNameReturnsENOENT() {
	t.mount()

	_, status := t.lookup(fsdev.RootFileObject, "nope")
	AssertNe(nil, status)
	ExpectEq(fsdev.KindInvalid, status.(*fsdev.Error).Kind)
	ExpectEq(unix.ENOENT, status.(*fsdev.Error).Errno)
}

func (t *BackendTest) CreateWriteReadRoundTrips() {
	t.mount()

	fobj, handle, err := t.create(fsdev.RootFileObject, "greeting.txt")
	AssertEq(nil, err)

	n, err := t.write(fobj, handle, 0, []byte("hello, world"))
	AssertEq(nil, err)
	ExpectEq(len("hello, world"), n)

	got, err := t.read(fobj, handle, 0, 1024)
	AssertEq(nil, err)
	ExpectEq("hello, world", string(got))
}

func (t *BackendTest) WritePastEOFExtendsFile() {
	t.mount()

	fobj, handle, err := t.create(fsdev.RootFileObject, "f")
	AssertEq(nil, err)

	_, err = t.write(fobj, handle, 10, []byte("xyz"))
	AssertEq(nil, err)

	got, err := t.read(fobj, handle, 0, 13)
	AssertEq(nil, err)
	ExpectEq(13, len(got))
	ExpectTrue(bytes.Equal(got[10:], []byte("xyz")), "tail: %v", got[10:])
	ExpectTrue(bytes.Equal(got[:10], make([]byte, 10)), "hole: %v", got[:10])
}

func (t *BackendTest) RmdirNonEmptyFails() {
	t.mount()

	dir, err := t.mkdir(fsdev.RootFileObject, "dir")
	AssertEq(nil, err)
	_, _, err = t.create(dir, "child")
	AssertEq(nil, err)

	var status error
	errSub := fsdevops.Rmdir(t.pool, t.ch, t.desc, t.nextUnique(), fsdev.RootFileObject, "dir", func(s error) { status = s })
	t.drain(errSub)

	AssertNe(nil, status)
	ExpectEq(fsdev.KindBusy, status.(*fsdev.Error).Kind)
}

func (t *BackendTest) RenameOverwritesEmptyDestination() {
	t.mount()

	_, _, err := t.create(fsdev.RootFileObject, "src")
	AssertEq(nil, err)
	_, _, err = t.create(fsdev.RootFileObject, "dst")
	AssertEq(nil, err)

	var status error
	errSub := fsdevops.Rename(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.RenameInput{
		Parent: fsdev.RootFileObject, Name: "src",
		NewParent: fsdev.RootFileObject, NewName: "dst",
	}, func(s error) { status = s })
	t.drain(errSub)
	AssertEq(nil, status)

	_, status = t.lookup(fsdev.RootFileObject, "src")
	ExpectNe(nil, status)

	res, status := t.lookup(fsdev.RootFileObject, "dst")
	AssertEq(nil, status)
	ExpectNe(0, res.FileObject)
}

func (t *BackendTest) SetxattrGetxattrRoundTrips() {
	t.mount()

	fobj, _, err := t.create(fsdev.RootFileObject, "f")
	AssertEq(nil, err)

	var status error
	errSub := fsdevops.Setxattr(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.SetxattrInput{
		FileObject: fobj, Name: "user.tag", Value: []byte("v1"),
	}, func(s error) { status = s })
	t.drain(errSub)
	AssertEq(nil, status)

	var result *fsdevops.GetxattrResult
	errSub = fsdevops.Getxattr(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.GetxattrInput{
		FileObject: fobj, Name: "user.tag", Size: 64,
	}, func(s error, r *fsdevops.GetxattrResult) { status, result = s, r })
	t.drain(errSub)
	AssertEq(nil, status)
	ExpectEq("v1", string(result.Value))
}

func (t *BackendTest) GetxattrMissingReturnsENODATA() {
	t.mount()

	fobj, _, err := t.create(fsdev.RootFileObject, "f")
	AssertEq(nil, err)

	var status error
	errSub := fsdevops.Getxattr(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.GetxattrInput{
		FileObject: fobj, Name: "user.missing", Size: 64,
	}, func(s error, _ *fsdevops.GetxattrResult) { status = s })
	t.drain(errSub)
	AssertNe(nil, status)
	ExpectEq(unix.ENODATA, status.(*fsdev.Error).Errno)
}

func (t *BackendTest) ReaddirEnumeratesInSortedOrder() {
	t.mount()

	for _, name := range []string{"c", "a", "b"} {
		_, _, err := t.create(fsdev.RootFileObject, name)
		AssertEq(nil, err)
	}

	var names []string
	var status error
	errSub := fsdevops.Readdir(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.ReaddirInput{
		FileObject: fsdev.RootFileObject,
		Entry: func(d fsdevops.Dirent) bool {
			names = append(names, d.Name)
			return true
		},
	}, func(s error) { status = s })
	t.drain(errSub)
	AssertEq(nil, status)
	ExpectThat(names, ElementsAre("a", "b", "c"))
}

func (t *BackendTest) ReaddirStopsEarlyWhenEntryReturnsFalse() {
	t.mount()

	for _, name := range []string{"a", "b", "c"} {
		_, _, err := t.create(fsdev.RootFileObject, name)
		AssertEq(nil, err)
	}

	var names []string
	var status error
	errSub := fsdevops.Readdir(t.pool, t.ch, t.desc, t.nextUnique(), fsdevops.ReaddirInput{
		FileObject: fsdev.RootFileObject,
		Entry: func(d fsdevops.Dirent) bool {
			names = append(names, d.Name)
			return len(names) < 1
		},
	}, func(s error) { status = s })
	t.drain(errSub)
	AssertEq(nil, status)
	ExpectThat(names, ElementsAre("a"))
}

func (t *BackendTest) ForgetDropsLookupCountWithoutDeletingLiveEntry() {
	t.mount()

	id, err := t.mkdir(fsdev.RootFileObject, "dir")
	AssertEq(nil, err)

	_, status := t.lookup(fsdev.RootFileObject, "dir")
	AssertEq(nil, status)

	var fstatus error
	errSub := fsdevops.Forget(t.pool, t.ch, t.desc, t.nextUnique(), id, 2, func(s error) { fstatus = s })
	t.drain(errSub)
	AssertEq(nil, fstatus)

	res, status := t.lookup(fsdev.RootFileObject, "dir")
	AssertEq(nil, status)
	ExpectEq(id, res.FileObject)
}
