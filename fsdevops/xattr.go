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

// SetxattrInput sets extended attribute Name to Value on FileObject.
type SetxattrInput struct {
	FileObject fsdev.FileObject
	Name       string
	Value      []byte
	Flags      uint32
}

type SetxattrCompletionFunc func(status error)

func Setxattr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in SetxattrInput, cb SetxattrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpSetxattr, &in, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}

// GetxattrInput reads extended attribute Name into a buffer of at most
// Size bytes. Size == 0 is the "report the required size" query (spec
// §8 boundary behavior).
type GetxattrInput struct {
	FileObject fsdev.FileObject
	Name       string
	Size       uint32
}

// GetxattrResult carries either the attribute Value (when the caller's
// Size was large enough) or just the required ValueSize with SizeOnly
// set (spec §4.3, §8).
type GetxattrResult struct {
	Value     []byte
	ValueSize uint32
	SizeOnly  bool
}

type GetxattrCompletionFunc func(status error, result *GetxattrResult)

func Getxattr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in GetxattrInput, cb GetxattrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpGetxattr, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*GetxattrResult)
		cb(status, res)
	})
}

// ListxattrInput lists extended attribute names on FileObject into a
// buffer of at most Size bytes; Size == 0 is again the required-size
// query.
type ListxattrInput struct {
	FileObject fsdev.FileObject
	Size       uint32
}

type ListxattrResult struct {
	Data     []byte
	DataSize uint32
	SizeOnly bool
}

type ListxattrCompletionFunc func(status error, result *ListxattrResult)

func Listxattr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, in ListxattrInput, cb ListxattrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpListxattr, &in, func(status error, output any) {
		if cb == nil {
			return
		}
		res, _ := output.(*ListxattrResult)
		cb(status, res)
	})
}

// RemovexattrInput removes extended attribute Name from FileObject.
type RemovexattrInput struct {
	FileObject fsdev.FileObject
	Name       string
}

type RemovexattrCompletionFunc func(status error)

func Removexattr(p *Pool, ch *fsdev.Channel, desc *fsdev.Descriptor, unique uint64, fobj fsdev.FileObject, name string, cb RemovexattrCompletionFunc) error {
	return submit(p, ch, desc, unique, fsdev.OpRemovexattr, &RemovexattrInput{FileObject: fobj, Name: name}, func(status error, _ any) {
		if cb != nil {
			cb(status)
		}
	})
}
