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

import "github.com/spdk-go/fsdev/fsdev"

// AbortInput names a previously submitted operation by its Unique id.
// Abort is best-effort: a backend may complete UniqueToAbort's own
// operation normally before or after processing this request, and the
// caller must not assume cancellation actually happened (spec §9 open
// question, preserved rather than resolved: "abort is not guaranteed to
// prevent the original op's normal completion").
type AbortInput struct {
	UniqueToAbort uint64
}

type AbortCompletionFunc func(status error)

// Abort asks the backend to make a best-effort attempt at cancelling the
// in-flight operation tagged UniqueToAbort. It is itself a regular
// catalog operation with its own Unique id.
func Abort(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, uniqueToAbort uint64, cb AbortCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpAbort, &AbortInput{UniqueToAbort: uniqueToAbort}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}
