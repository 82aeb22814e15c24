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
	"github.com/spdk-go/fsdev/fsdev"
	"github.com/spdk-go/fsdev/internal/iopool"
)

// Pool is the OperationDescriptor pool every builder in this package
// draws from, typically obtained from a fsdev.Registry via Pool().
type Pool = iopool.Pool[fsdev.OperationDescriptor]

// submit is the common tail of every builder: populate the op, hand it to
// fsdev.Submit, and unwrap the untyped output back into cb. Errors
// returned here are the synchronous NoBuffers/OutOfMemory case (spec
// §4.3); cb is never called for those.
func submit(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, kind fsdev.OpKind, input any, cb func(error, any)) error {
	_, err := fsdev.Submit(p, ch, desc, ch.Thread, kind, unique, input, cb)
	return err
}
