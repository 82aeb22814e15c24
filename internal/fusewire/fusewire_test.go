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

import (
	"bytes"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"golang.org/x/sys/unix"

	"github.com/spdk-go/fsdev/fsdev"
)

func TestOutCursorThenInCursorRoundTripsFixedStruct(t *testing.T) {
	want := InHeader{
		Length: 40,
		Opcode: uint32(OpLookup),
		Unique: 123,
		Nodeid: RootID,
	}

	oc := NewOutCursor()
	if err := oc.Fixed(&want); err != nil {
		t.Fatalf("Fixed: %v", err)
	}

	var got InHeader
	in := NewInCursor([][]byte{oc.Bytes()})
	if err := in.Fixed(&got, InHeaderSize); err != nil {
		t.Fatalf("Fixed decode: %v", err)
	}

	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("round trip changed the header (-want +got):\n%s", diff)
	}
}

func TestInCursorFixedZeroPadsShortInput(t *testing.T) {
	// A kernel on an older minor version can send an Init_in shorter
	// than the struct's current definition; Fixed must treat the missing
	// tail as zero rather than error.
	oc := NewOutCursor()
	oc.Raw([]byte{1, 0, 0, 0}) // just the first 4 bytes of InitIn.Major

	var ii InitIn
	in := NewInCursor([][]byte{oc.Bytes()})
	if err := in.Fixed(&ii, 16); err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if ii.Major != 1 {
		t.Fatalf("Major = %d, want 1", ii.Major)
	}
	if ii.Minor != 0 || ii.MaxReadahead != 0 || ii.Flags != 0 {
		t.Fatalf("expected zero-padded tail, got %+v", ii)
	}
}

func TestInCursorFixedSpansBufferBoundary(t *testing.T) {
	want := InitIn{Major: 7, Minor: 31, MaxReadahead: 1 << 16, Flags: 0xabcd}

	oc := NewOutCursor()
	if err := oc.Fixed(&want); err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	whole := oc.Bytes()

	// Split the encoded struct across two non-contiguous buffers midway
	// through, the way a splice-backed Transport might hand it over.
	split := len(whole) / 2
	bufs := [][]byte{whole[:split], whole[split:]}

	var got InitIn
	in := NewInCursor(bufs)
	if err := in.Fixed(&got, len(whole)); err != nil {
		t.Fatalf("Fixed across boundary: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestInCursorCStringStopsAtNUL(t *testing.T) {
	buf := append([]byte("hello"), 0)
	buf = append(buf, []byte("trailing garbage")...)

	in := NewInCursor([][]byte{buf})
	s, err := in.CString()
	if err != nil {
		t.Fatalf("CString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("CString = %q, want %q", s, "hello")
	}
}

func TestInCursorCStringAcrossBuffers(t *testing.T) {
	bufs := [][]byte{[]byte("hel"), []byte("lo"), {0}, []byte("next")}
	in := NewInCursor(bufs)
	s, err := in.CString()
	if err != nil {
		t.Fatalf("CString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("CString = %q, want %q", s, "hello")
	}
	rest := in.Remaining()
	var joined []byte
	for _, b := range rest {
		joined = append(joined, b...)
	}
	if string(joined) != "next" {
		t.Fatalf("Remaining = %q, want %q", joined, "next")
	}
}

func TestInCursorCStringMissingNULIsShortRead(t *testing.T) {
	in := NewInCursor([][]byte{[]byte("no terminator here")})
	if _, err := in.CString(); err != ErrShortRead {
		t.Fatalf("got %v, want ErrShortRead", err)
	}
}

func TestInCursorBytesShortReadIsReported(t *testing.T) {
	in := NewInCursor([][]byte{{1, 2, 3}})
	if _, err := in.Bytes(10); err != ErrShortRead {
		t.Fatalf("got %v, want ErrShortRead", err)
	}
}

func TestOpcodeStringKnownAndUnknown(t *testing.T) {
	if got := OpLookup.String(); got != "LOOKUP" {
		t.Fatalf("OpLookup.String() = %q, want LOOKUP", got)
	}
	if got := Opcode(9999).String(); got != "UNKNOWN" {
		t.Fatalf("unknown opcode String() = %q, want UNKNOWN", got)
	}
}

func TestAppendDirentRespectsMaxAndPadsToAlignment(t *testing.T) {
	var buf []byte
	buf, ok := AppendDirent(buf, 4096, 2, 1, unix.DT_DIR, "a")
	if !ok {
		t.Fatal("expected the first entry to fit comfortably under max")
	}
	if len(buf)%direntAlign != 0 {
		t.Fatalf("record length %d is not %d-byte aligned", len(buf), direntAlign)
	}

	firstLen := len(buf)
	buf, ok = AppendDirent(buf, firstLen, 3, 2, unix.DT_REG, "bb")
	if ok {
		t.Fatal("expected the second entry to be rejected when max equals the first entry's exact length")
	}
	if len(buf) != firstLen {
		t.Fatalf("buf grew to %d despite ok=false, want unchanged at %d", len(buf), firstLen)
	}
}

func TestAppendDirentPlusEmbedsEntryOutAheadOfDirent(t *testing.T) {
	attr := Attr{Ino: 5, Mode: unix.S_IFREG | 0644}
	buf, ok := AppendDirentPlus(nil, 4096, 5, 1, unix.DT_REG, "f", attr)
	if !ok {
		t.Fatal("expected AppendDirentPlus to fit under a generous max")
	}

	entrySize := entryOutSize()
	if len(buf) < entrySize+direntHeaderSize+len("f") {
		t.Fatalf("record too short: %d bytes", len(buf))
	}

	var decoded EntryOut
	in := NewInCursor([][]byte{buf[:entrySize]})
	if err := in.Fixed(&decoded, entrySize); err != nil {
		t.Fatalf("decode embedded EntryOut: %v", err)
	}
	if decoded.Nodeid != 5 || decoded.Attr.Ino != 5 {
		t.Fatalf("embedded EntryOut = %+v, want Nodeid=5 Attr.Ino=5", decoded)
	}

	nameStart := entrySize + direntHeaderSize
	if !bytes.Equal(buf[nameStart:nameStart+1], []byte("f")) {
		t.Fatalf("dirent name = %q, want %q", buf[nameStart:nameStart+1], "f")
	}
}

func entryOutSize() int {
	oc := NewOutCursor()
	_ = oc.Fixed(&EntryOut{})
	return oc.Len()
}

func TestAttrFromCoreAndBackRoundTripsTimestamps(t *testing.T) {
	now := time.Unix(1_700_000_000, 123_000_000)
	core := fsdev.FileAttr{
		Ino:   42,
		Size:  1024,
		Mode:  unix.S_IFREG | 0644,
		Nlink: 1,
		UID:   1000,
		GID:   1000,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	wire := AttrFromCore(core)
	back := AttrToCore(wire)

	compact := func(a fsdev.FileAttr) fsdev.FileAttr {
		a.Atime, a.Mtime, a.Ctime = time.Time{}, time.Time{}, time.Time{}
		return a
	}
	if diff := pretty.Compare(compact(core), compact(back)); diff != "" {
		t.Fatalf("round trip changed core fields (-want +got):\n%s", diff)
	}
	if !back.Atime.Equal(core.Atime) {
		t.Fatalf("Atime round trip = %v, want %v", back.Atime, core.Atime)
	}
}

func TestAttrToCoreZeroTimestampStaysZero(t *testing.T) {
	got := AttrToCore(Attr{})
	if !got.Atime.IsZero() || !got.Mtime.IsZero() || !got.Ctime.IsZero() {
		t.Fatalf("expected zero Attr to decode to zero times, got %+v", got)
	}
}

func TestSetAttrMaskFromWireTranslatesEachBit(t *testing.T) {
	valid := FattrMode | FattrSize | FattrAtimeNow
	mask := SetAttrMaskFromWire(valid)

	if mask&fsdev.SetAttrMode == 0 {
		t.Fatal("expected SetAttrMode bit set")
	}
	if mask&fsdev.SetAttrSize == 0 {
		t.Fatal("expected SetAttrSize bit set")
	}
	if mask&fsdev.SetAttrAtimeNow == 0 {
		t.Fatal("expected SetAttrAtimeNow bit set")
	}
	if mask&fsdev.SetAttrMtime != 0 {
		t.Fatal("expected SetAttrMtime to stay unset")
	}
}

func TestTranslateOpenFlagsNativeIsIdentity(t *testing.T) {
	raw := uint32(0x1234)
	if got := TranslateOpenFlags(ArchNative, raw); got != raw {
		t.Fatalf("TranslateOpenFlags(ArchNative, %#x) = %#x, want unchanged", raw, got)
	}
}

func TestTranslateOpenFlagsRemapsArchDirectoryBit(t *testing.T) {
	// On x86, O_DIRECTORY is bit 0x10000; confirm it gets remapped to
	// this host's own unix.O_DIRECTORY value.
	got := TranslateOpenFlags(ArchX86, 0x10000)
	want := uint32(unix.O_DIRECTORY)
	if got != want {
		t.Fatalf("TranslateOpenFlags(ArchX86, 0x10000) = %#x, want host O_DIRECTORY %#x", got, want)
	}
}

func TestIdentityByteOrderIsNoOp(t *testing.T) {
	h := IdentityByteOrder()
	if h.D2H(42) != 42 || h.H2D(42) != 42 {
		t.Fatal("IdentityByteOrder must be the identity function both directions")
	}
}
