// Copyright 2013 Richard Lehane. All rights reserved.
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

package cfb

import (
	"encoding/binary"
	"time"
	"unicode/utf16"
)

// directory entry object types, per spec.md §4.4.
const (
	objEmpty   uint8 = 0x0
	objStorage uint8 = 0x1
	objStream  uint8 = 0x2
	objRoot    uint8 = 0x5
)

const (
	colorRed   uint8 = 0x0
	colorBlack uint8 = 0x1
)

// dirEntry is one parsed 128-byte directory record, per spec.md §4.4's field
// table.
type dirEntry struct {
	name       string
	objectType uint8
	color      uint8
	leftSibID  uint32
	rightSibID uint32
	childID    uint32
	clsid      [16]byte
	created    uint64
	modified   uint64
	startSect  uint32
	size       uint64
}

// buildDirectory walks the directory sector chain and parses every 128-byte
// entry, per spec.md §4.4.
func (c *Container) buildDirectory() *Error {
	h := c.hdr
	chain, err := followChain(c.fat, h.directorySectorLoc, CategoryMalformedChain)
	if err != nil {
		return err
	}
	perSector := int(h.sectorSize / dirEntryLen)

	entries := make([]*dirEntry, 0, len(chain)*perSector)
	for _, sn := range chain {
		buf, rerr := c.readSector(sn)
		if rerr != nil {
			return rerr
		}
		for i := 0; i < perSector; i++ {
			raw := buf[i*dirEntryLen : (i+1)*dirEntryLen]
			e, perr := c.parseDirEntry(raw, len(entries))
			if perr != nil {
				return perr
			}
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 || entries[0].objectType != objRoot {
		return newErr(CategoryHeaderCorrupt, 0, "directory entry 0 is not the Root Entry")
	}
	c.entries = entries
	return nil
}

func (c *Container) parseDirEntry(raw []byte, index int) (*dirEntry, *Error) {
	nameLen := binary.LittleEndian.Uint16(raw[0x40:0x42])
	if nameLen%2 != 0 || nameLen > 64 {
		if err := c.diag.warn(CategoryDirectory, int64(index), "directory entry has an invalid name length"); err != nil {
			return nil, err
		}
		nameLen = 0
	}

	e := &dirEntry{
		objectType: raw[0x42],
		color:      raw[0x43],
		leftSibID:  binary.LittleEndian.Uint32(raw[0x44:0x48]),
		rightSibID: binary.LittleEndian.Uint32(raw[0x48:0x4C]),
		childID:    binary.LittleEndian.Uint32(raw[0x4C:0x50]),
		created:    binary.LittleEndian.Uint64(raw[0x64:0x6C]),
		modified:   binary.LittleEndian.Uint64(raw[0x6C:0x74]),
		startSect:  binary.LittleEndian.Uint32(raw[0x74:0x78]),
		size:       binary.LittleEndian.Uint64(raw[0x78:0x80]),
	}
	copy(e.clsid[:], raw[0x50:0x60])

	if nameLen > 0 {
		units := nameLen/2 - 1
		raw16 := make([]uint16, units)
		for i := range raw16 {
			raw16[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
		}
		e.name = string(utf16.Decode(raw16))
	}

	if e.objectType == objEmpty {
		if e.leftSibID != noStream || e.rightSibID != noStream || e.childID != noStream {
			if err := c.diag.warn(CategoryDirectory, int64(index), "empty directory slot has non-NOSTREAM links"); err != nil {
				return nil, err
			}
			e.leftSibID, e.rightSibID, e.childID = noStream, noStream, noStream
		}
	}

	if c.hdr.majorVersion == 3 && e.objectType == objStream {
		if e.size>>32 != 0 {
			if err := c.diag.warn(CategoryDirectory, int64(index), "version 3 stream has non-zero high size bits"); err != nil {
				return nil, err
			}
			e.size &= 0xFFFFFFFF
		}
	}

	return e, nil
}

// filetimeToTime converts a 64-bit FILETIME (100ns units since 1601-01-01
// UTC) to a time.Time, per spec.md §6.3.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	const epochDiff = 116444736000000000 // 1601-01-01 to 1970-01-01, in 100ns units
	unixNano := (int64(ft) - epochDiff) * 100
	return time.Unix(0, unixNano).UTC()
}
