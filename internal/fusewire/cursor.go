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
	"encoding/binary"
	"errors"
)

// ErrShortRead is returned by InCursor decode helpers when the request
// buffer ends before a fixed-size field does.
var ErrShortRead = errors.New("fusewire: request too short")

// InCursor decodes a single kernel request out of a gather list of
// buffers (an iovec list), generalizing the teacher's single-buffer
// InMessage.Consume to N buffers (spec §4.4's "gather/scatter buffer
// list"): a splice-backed transport may hand the dispatcher a request's
// header, op-specific struct, and payload (e.g. a SETXATTR value or a
// WRITE's data) as separate, non-contiguous buffers.
//
// Fixed-size struct decoding (Fixed, CString) transparently copies across
// a buffer boundary on the rare request whose header or op struct itself
// straddles two iovecs. Remaining returns the unconsumed buffers
// without copying; the WRITE and SETXATTR handlers in fusedispatch read
// their payload with Bytes and copy it instead.
//
// It is also compat-size aware: minor-dependent structs (Init_in,
// Write_in, Mknod_in, ...) may arrive shorter than their current
// definition, and any bytes past what the negotiated minor actually
// sends must read as zero rather than as a short-read error.
type InCursor struct {
	bufs [][]byte
	idx  int
	off  int
}

// NewInCursor wraps bufs, a non-empty iovec list, for sequential
// decoding. bufs is never mutated; consumed prefixes are only ever
// sliced, not copied, except where a field spans a buffer boundary.
func NewInCursor(bufs [][]byte) *InCursor {
	return &InCursor{bufs: bufs}
}

// advance consumes and returns exactly n contiguous bytes, copying across
// a buffer boundary if the span requires it. It reports how many bytes
// were actually available (< n at end of input).
func (c *InCursor) advance(n int) ([]byte, int) {
	// Fast path: the whole span lives in the current buffer.
	if c.idx < len(c.bufs) {
		cur := c.bufs[c.idx]
		if c.off+n <= len(cur) {
			out := cur[c.off : c.off+n]
			c.off += n
			if c.off == len(cur) {
				c.idx++
				c.off = 0
			}
			return out, n
		}
	}

	out := make([]byte, 0, n)
	for len(out) < n && c.idx < len(c.bufs) {
		cur := c.bufs[c.idx]
		avail := len(cur) - c.off
		need := n - len(out)
		take := avail
		if take > need {
			take = need
		}
		out = append(out, cur[c.off:c.off+take]...)
		c.off += take
		if c.off == len(cur) {
			c.idx++
			c.off = 0
		}
	}
	return out, len(out)
}

// Fixed decodes a fixed-size struct, accepting fewer than size total
// remaining bytes by zero-filling the tail — the compat-size behavior
// FUSE minor-version negotiation requires (spec §6).
func (c *InCursor) Fixed(v any, size int) error {
	got, n := c.advance(size)
	chunk := make([]byte, size)
	copy(chunk, got[:n])
	return binary.Read(bytes.NewReader(chunk), binary.LittleEndian, v)
}

// CString reads a NUL-terminated string starting at the cursor, which
// may span buffer boundaries.
func (c *InCursor) CString() (string, error) {
	var out []byte
	for {
		if c.idx >= len(c.bufs) {
			return "", ErrShortRead
		}
		cur := c.bufs[c.idx]
		rest := cur[c.off:]
		if i := bytes.IndexByte(rest, 0); i >= 0 {
			out = append(out, rest[:i]...)
			c.off += i + 1
			if c.off == len(cur) {
				c.idx++
				c.off = 0
			}
			return string(out), nil
		}
		out = append(out, rest...)
		c.idx++
		c.off = 0
	}
}

// Bytes reads n raw bytes starting at the cursor, copying across a
// buffer boundary if necessary. Prefer Remaining for a large payload
// tail that should be threaded through without copying.
func (c *InCursor) Bytes(n int) ([]byte, error) {
	got, gotN := c.advance(n)
	if gotN != n {
		return nil, ErrShortRead
	}
	return got, nil
}

// Remaining returns the unconsumed tail of the iovec list, the current
// buffer's remainder followed by any buffers after it, without copying.
func (c *InCursor) Remaining() [][]byte {
	if c.idx >= len(c.bufs) {
		return nil
	}
	out := make([][]byte, 0, len(c.bufs)-c.idx)
	if c.off < len(c.bufs[c.idx]) {
		out = append(out, c.bufs[c.idx][c.off:])
	}
	out = append(out, c.bufs[c.idx+1:]...)
	return out
}

// OutCursor accumulates one reply body into a single growing buffer,
// which fusedispatch prefixes with an OutHeader sized to the total. FUSE
// replies in this module are always emitted as one contiguous buffer —
// unlike request decoding, there is no gather benefit on the reply path,
// since every reply's payload (an attribute struct, a directory page, a
// read's data) is built by this module, not handed to it pre-chunked by
// the kernel.
type OutCursor struct {
	buf []byte
}

func NewOutCursor() *OutCursor {
	return &OutCursor{}
}

func (c *OutCursor) Bytes() []byte {
	return c.buf
}

func (c *OutCursor) Len() int {
	return len(c.buf)
}

// Fixed appends a fixed-size struct in wire byte order.
func (c *OutCursor) Fixed(v any) error {
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		return err
	}
	c.buf = append(c.buf, b.Bytes()...)
	return nil
}

// CString appends s followed by a NUL terminator.
func (c *OutCursor) CString(s string) {
	c.buf = append(c.buf, s...)
	c.buf = append(c.buf, 0)
}

// Raw appends b verbatim.
func (c *OutCursor) Raw(b []byte) {
	c.buf = append(c.buf, b...)
}

// Pad appends n zero bytes, used to round a directory entry up to
// direntAlign.
func (c *OutCursor) Pad(n int) {
	for i := 0; i < n; i++ {
		c.buf = append(c.buf, 0)
	}
}
