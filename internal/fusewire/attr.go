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

import "github.com/spdk-go/fsdev/fsdev"

// AttrFromCore translates a core fsdev.FileAttr into its wire
// representation.
func AttrFromCore(a fsdev.FileAttr) Attr {
	atimeSec, atimeNsec := secNsec(a.Atime)
	mtimeSec, mtimeNsec := secNsec(a.Mtime)
	ctimeSec, ctimeNsec := secNsec(a.Ctime)
	return Attr{
		Ino:       a.Ino,
		Size:      a.Size,
		Blocks:    a.Blocks,
		Atime:     atimeSec,
		Mtime:     mtimeSec,
		Ctime:     ctimeSec,
		AtimeNsec: atimeNsec,
		MtimeNsec: mtimeNsec,
		CtimeNsec: ctimeNsec,
		Mode:      a.Mode,
		Nlink:     a.Nlink,
		UID:       a.UID,
		GID:       a.GID,
		Rdev:      a.Rdev,
		BlkSize:   a.BlkSize,
	}
}

// AttrToCore translates a wire Attr back into fsdev.FileAttr, the inverse
// of AttrFromCore. fusedispatch's SETATTR handler uses it to turn the
// request's wire attributes into the FileAttr it hands to the backend.
func AttrToCore(a Attr) fsdev.FileAttr {
	return fsdev.FileAttr{
		Ino:     a.Ino,
		Size:    a.Size,
		Blocks:  a.Blocks,
		Atime:   timeFromSecNsec(a.Atime, a.AtimeNsec),
		Mtime:   timeFromSecNsec(a.Mtime, a.MtimeNsec),
		Ctime:   timeFromSecNsec(a.Ctime, a.CtimeNsec),
		Mode:    a.Mode,
		Nlink:   a.Nlink,
		UID:     a.UID,
		GID:     a.GID,
		Rdev:    a.Rdev,
		BlkSize: a.BlkSize,
	}
}

// SetAttrMaskFromWire translates a Setattr_in.Valid bitmask into the
// core's fsdev.SetAttrMask.
func SetAttrMaskFromWire(valid uint32) fsdev.SetAttrMask {
	var m fsdev.SetAttrMask
	if valid&FattrMode != 0 {
		m |= fsdev.SetAttrMode
	}
	if valid&FattrUID != 0 {
		m |= fsdev.SetAttrUID
	}
	if valid&FattrGID != 0 {
		m |= fsdev.SetAttrGID
	}
	if valid&FattrSize != 0 {
		m |= fsdev.SetAttrSize
	}
	if valid&FattrAtime != 0 {
		m |= fsdev.SetAttrAtime
	}
	if valid&FattrMtime != 0 {
		m |= fsdev.SetAttrMtime
	}
	if valid&FattrAtimeNow != 0 {
		m |= fsdev.SetAttrAtimeNow
	}
	if valid&FattrMtimeNow != 0 {
		m |= fsdev.SetAttrMtimeNow
	}
	if valid&FattrCtime != 0 {
		m |= fsdev.SetAttrCtime
	}
	return m
}
