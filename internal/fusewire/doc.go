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

// Package fusewire defines the FUSE kernel wire format: opcode numbers,
// request/response struct layouts, and the byte-slice cursors package
// fusedispatch uses to decode requests and encode replies.
//
// The layouts are grounded on the Linux fuse_kernel.h structures as
// reproduced by the hanwen/go-fuse project's fuse/types.go; none of this
// package's types are exported outside of this module — fusedispatch
// translates to and from the core's FileObject/FileAttr/... types at its
// boundary, the same separation jacobsa/fuse draws between its public
// file_system.go types and bazilfuse's internal wire encoding.
package fusewire
