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

// Package memfsdev is a reference fsdev backend storing an entire
// filesystem tree in memory, the role samples/memfs plays for
// jacobsa/fuse: a complete, synchronous implementation of every
// operation the Operation Engine exposes, suitable for exercising
// package fusedispatch end to end without a real storage device.
package memfsdev
