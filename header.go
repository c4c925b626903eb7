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

import "encoding/binary"

const (
	headerLen             = 512
	defaultMiniSectorSize = 64
	defaultMiniCutoff     = 4096
	dirEntryLen           = 128
)

var signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
var littleEndianMark = [2]byte{0xFE, 0xFF}

// header holds the parsed and derived parameters of a CFB header, per
// spec.md §3 "Header parameters" and §4.1.
type header struct {
	majorVersion    uint16
	minorVersion    uint16
	sectorShift     uint16
	miniSectorShift uint16

	numDirectorySectors uint32
	numFATSectors       uint32
	directorySectorLoc  uint32
	miniStreamCutoff    uint64
	miniFATSectorLoc    uint32
	numMiniFATSectors   uint32
	difatSectorLoc      uint32
	numDIFATSectors     uint32
	initialDIFAT        [109]uint32

	sectorSize     uint32
	miniSectorSize uint32
	sectorCount    int64
}

// parseHeader reads and validates the 512-byte CFB header from buf, which
// must be exactly headerLen bytes, per spec.md §4.1 steps 1-9.
func parseHeader(buf []byte, fileLen int64, d *diagnostics) (*header, *Error) {
	if len(buf) < headerLen {
		return nil, newErr(CategoryNotCFB, 0, "file is shorter than a CFB header")
	}
	if [8]byte(buf[0:8]) != signature {
		return nil, newErr(CategoryNotCFB, 0, "magic signature mismatch")
	}

	h := &header{}

	clsid := buf[8:24]
	allZero := true
	for _, b := range clsid {
		if b != 0 {
			allZero = false
			break
		}
	}
	if !allZero {
		if err := d.warn(CategoryHeaderWarning, 8, "header CLSID is not all-zero"); err != nil {
			return nil, err
		}
	}

	h.minorVersion = binary.LittleEndian.Uint16(buf[0x18:0x1A])
	h.majorVersion = binary.LittleEndian.Uint16(buf[0x1A:0x1C])
	if h.majorVersion != 3 && h.majorVersion != 4 {
		return nil, newErr(CategoryInvalidVersion, 0x1A, "major version must be 3 or 4")
	}

	if [2]byte(buf[0x1C:0x1E]) != littleEndianMark {
		return nil, newErr(CategoryInvalidByteOrder, 0x1C, "byte order marker must be little-endian (0xFFFE)")
	}

	h.sectorShift = binary.LittleEndian.Uint16(buf[0x1E:0x20])
	wantShift := uint16(9)
	if h.majorVersion == 4 {
		wantShift = 12
	}
	if h.sectorShift != wantShift {
		if err := d.warn(CategorySectorSize, 0x1E, "sector shift does not match the value implied by the major version"); err != nil {
			return nil, err
		}
	}

	h.miniSectorShift = binary.LittleEndian.Uint16(buf[0x20:0x22])
	if h.miniSectorShift != 6 {
		if err := d.warn(CategoryMiniSectorSize, 0x20, "mini sector shift is not 6"); err != nil {
			return nil, err
		}
	}

	h.numDirectorySectors = binary.LittleEndian.Uint32(buf[0x28:0x2C])
	if h.majorVersion == 3 && h.numDirectorySectors != 0 {
		if err := d.warn(CategoryHeaderWarning, 0x28, "directory sector count must be zero for version 3"); err != nil {
			return nil, err
		}
	}

	h.numFATSectors = binary.LittleEndian.Uint32(buf[0x2C:0x30])
	h.directorySectorLoc = binary.LittleEndian.Uint32(buf[0x30:0x34])

	// 0x34: transaction signature, should be 0 - informational only, no
	// observable behavior depends on it.

	cutoff := binary.LittleEndian.Uint32(buf[0x38:0x3C])
	h.miniStreamCutoff = uint64(cutoff)
	if cutoff != defaultMiniCutoff {
		if err := d.warn(CategoryCutoff, 0x38, "mini stream cutoff is not the standard 4096 bytes"); err != nil {
			return nil, err
		}
	}

	h.miniFATSectorLoc = binary.LittleEndian.Uint32(buf[0x3C:0x40])
	h.numMiniFATSectors = binary.LittleEndian.Uint32(buf[0x40:0x44])
	h.difatSectorLoc = binary.LittleEndian.Uint32(buf[0x44:0x48])
	h.numDIFATSectors = binary.LittleEndian.Uint32(buf[0x48:0x4C])

	for i := 0; i < 109; i++ {
		off := 0x4C + i*4
		h.initialDIFAT[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}

	h.sectorSize = 1 << h.sectorShift
	h.miniSectorSize = 1 << h.miniSectorShift
	h.sectorCount = (fileLen - headerLen) / int64(h.sectorSize)

	return h, nil
}

// sectorOffset returns the file offset of the start of regular sector sn.
func (h *header) sectorOffset(sn uint32) int64 {
	return headerLen + int64(sn)*int64(h.sectorSize)
}
