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

import "golang.org/x/sys/unix"

// Arch identifies the calling process's architecture, needed because a
// handful of open(2) flag bits (O_DIRECTORY, O_NOFOLLOW, O_DIRECT,
// O_LARGEFILE) are not at the same bit position on every Linux
// architecture the kernel runs FUSE clients on (spec §4.4, scenario 6).
type Arch int

const (
	ArchNative Arch = iota
	ArchX86
	ArchX86_64
	ArchARM
	ArchARM64
)

// openFlagBits gives, per Arch, the numeric value of each of the four
// architecture-variable open(2) flags. ArchNative has no entry, so
// TranslateOpenFlags returns the flags unchanged when either side is
// native.
type openFlagBits struct {
	directory uint32
	nofollow  uint32
	direct    uint32
	largefile uint32
}

var archOpenFlags = map[Arch]openFlagBits{
	ArchX86:    {directory: 0x10000, nofollow: 0x20000, direct: 0x4000, largefile: 0x8000},
	ArchX86_64: {directory: 0x10000, nofollow: 0x20000, direct: 0x4000, largefile: 0},
	ArchARM:    {directory: 0x4000, nofollow: 0x8000, direct: 0x10000, largefile: 0x20000},
	ArchARM64:  {directory: 0x4000, nofollow: 0x8000, direct: 0x10000, largefile: 0},
}

// TranslateOpenFlags rewrites the architecture-variable bits of a raw
// open(2) flags word, as sent by arch, into this host's own
// golang.org/x/sys/unix flag values, leaving every other bit untouched.
func TranslateOpenFlags(arch Arch, raw uint32) uint32 {
	bits, ok := archOpenFlags[arch]
	if !ok {
		return raw
	}

	const (
		hostDirectory = unix.O_DIRECTORY
		hostNofollow  = unix.O_NOFOLLOW
		hostDirect    = unix.O_DIRECT
		hostLargefile = unix.O_LARGEFILE
	)

	out := raw &^ (bits.directory | bits.nofollow | bits.direct | bits.largefile)
	if bits.directory != 0 && raw&bits.directory != 0 {
		out |= hostDirectory
	}
	if bits.nofollow != 0 && raw&bits.nofollow != 0 {
		out |= hostNofollow
	}
	if bits.direct != 0 && raw&bits.direct != 0 {
		out |= hostDirect
	}
	if bits.largefile != 0 && raw&bits.largefile != 0 {
		out |= hostLargefile
	}
	return out
}

// ByteOrderHook is the d2h ("device to host")/h2d ("host to device")
// translation point spec §4.4 calls for: selected once at dispatcher
// construction, identity today, and the seam a future byte-swapping
// variant (a big-endian host talking to a little-endian wire, which
// FUSE's ABI never actually requires on any real kernel) would replace.
type ByteOrderHook struct {
	D2H func(v uint32) uint32
	H2D func(v uint32) uint32
}

// IdentityByteOrder is the only ByteOrderHook this module ever
// constructs: FUSE's wire format is defined as host byte order by the
// kernel ABI itself, so d2h/h2d are both the identity function on every
// architecture Linux actually runs this protocol on.
func IdentityByteOrder() ByteOrderHook {
	id := func(v uint32) uint32 { return v }
	return ByteOrderHook{D2H: id, H2D: id}
}
