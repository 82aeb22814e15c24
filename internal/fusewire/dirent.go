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

// direntHeaderSize is the fixed portion of a fuse_dirent: Ino, Off,
// Namelen, Typ — 24 bytes, the name follows immediately and the whole
// record is then padded to an 8-byte boundary.
const direntHeaderSize = 24

func padLen(n int) int {
	rem := n % direntAlign
	if rem == 0 {
		return 0
	}
	return direntAlign - rem
}

// AppendDirent appends one fuse_dirent record (header, name, padding) to
// buf, mirroring fuseutil.WriteDirent's "return zero if the entry would
// not fit" reservation logic (fuseutil/dirent.go): if the record would
// push buf past max, buf is returned unchanged with ok=false so the
// caller (package fsdevops's ReaddirEntryFunc) can stop enumeration at
// the last entry that fit, matching the READDIR contract (spec §4.4).
func AppendDirent(buf []byte, max int, ino, off uint64, typ uint32, name string) (out []byte, ok bool) {
	recLen := direntHeaderSize + len(name)
	recLen += padLen(recLen)

	if len(buf)+recLen > max {
		return buf, false
	}

	start := len(buf)
	buf = append(buf, make([]byte, recLen)...)

	putUint64(buf[start:], ino)
	putUint64(buf[start+8:], off)
	putUint32(buf[start+16:], uint32(len(name)))
	putUint32(buf[start+20:], typ)
	copy(buf[start+direntHeaderSize:], name)

	return buf, true
}

// AppendDirentPlus appends one fuse_direntplus record (a full EntryOut
// immediately followed by the fuse_dirent described above), for
// FUSE_READDIRPLUS replies.
func AppendDirentPlus(buf []byte, max int, ino, off uint64, typ uint32, name string, attr Attr) (out []byte, ok bool) {
	entry := EntryOut{
		Nodeid: ino,
		Attr:   attr,
	}

	oc := NewOutCursor()
	if err := oc.Fixed(&entry); err != nil {
		return buf, false
	}
	entryBytes := oc.Bytes()

	recLen := len(entryBytes) + direntHeaderSize + len(name)
	recLen += padLen(recLen)

	if len(buf)+recLen > max {
		return buf, false
	}

	start := len(buf)
	buf = append(buf, make([]byte, recLen)...)
	copy(buf[start:], entryBytes)

	direntStart := start + len(entryBytes)
	putUint64(buf[direntStart:], ino)
	putUint64(buf[direntStart+8:], off)
	putUint32(buf[direntStart+16:], uint32(len(name)))
	putUint32(buf[direntStart+20:], typ)
	copy(buf[direntStart+direntHeaderSize:], name)

	return buf, true
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func putUint32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
