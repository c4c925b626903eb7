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

// buildFAT walks the DIFAT (header-inline entries, then the DIFAT sector
// chain) to collect every FAT sector number, then reads those sectors into
// one flat FAT array. Implements spec.md §4.2.
func (c *Container) buildFAT() *Error {
	fatSectors, err := c.collectFATSectors()
	if err != nil {
		return err
	}
	c.fat, err = c.readFATSectors(fatSectors)
	return err
}

// collectFATSectors walks the header's 109 inline DIFAT entries, then the
// DIFAT sector chain, and returns the deduplicated, bounds-checked list of
// FAT sector numbers.
func (c *Container) collectFATSectors() ([]uint32, *Error) {
	h := c.hdr
	want := int(h.numFATSectors)

	sectors := make([]uint32, 0, want)
	for _, sn := range h.initialDIFAT {
		if len(sectors) >= want {
			break
		}
		if sn == freeSect || sn == endOfChain {
			if len(sectors) < want {
				if err := c.diag.warn(CategoryDIFAT, -1, "DIFAT terminated before declared FAT sector count"); err != nil {
					return nil, err
				}
			}
			break
		}
		sectors = append(sectors, sn)
	}

	if h.numDIFATSectors > 0 && len(sectors) < want {
		entriesPerSector := int(h.sectorSize/4) - 1
		sn := h.difatSectorLoc
		i := uint32(0)
		for sn != endOfChain && i < h.numDIFATSectors && len(sectors) < want {
			buf, rerr := c.readSector(sn)
			if rerr != nil {
				return nil, rerr
			}
			for j := 0; j < entriesPerSector && len(sectors) < want; j++ {
				v := binary.LittleEndian.Uint32(buf[j*4 : j*4+4])
				if v == freeSect {
					continue
				}
				sectors = append(sectors, v)
			}
			sn = binary.LittleEndian.Uint32(buf[len(buf)-4:])
			i++
		}
		if i >= h.numDIFATSectors && sn != endOfChain {
			if err := c.diag.warn(CategoryDIFAT, -1, "DIFAT sector chain overran declared sector count"); err != nil {
				return nil, err
			}
		}
		if len(sectors) < want {
			if err := c.diag.warn(CategoryDIFAT, -1, "DIFAT sector chain under-delivered the declared FAT sector count"); err != nil {
				return nil, err
			}
		}
	}

	seen := make(map[uint32]bool, len(sectors))
	for _, sn := range sectors {
		if int64(sn) < 0 || sn >= maxRegSect || int64(sn) >= h.sectorCount {
			return nil, newErr(CategoryMalformedFAT, int64(sn), "FAT sector number out of range")
		}
		if seen[sn] {
			return nil, newErr(CategoryMalformedFAT, int64(sn), "duplicate FAT sector number in DIFAT")
		}
		seen[sn] = true
	}
	return sectors, nil
}

// readFATSectors reads each FAT sector in order and concatenates them into
// one flat allocTable, indexed by regular sector number.
func (c *Container) readFATSectors(fatSectors []uint32) (allocTable, *Error) {
	entriesPerSector := int(c.hdr.sectorSize / 4)
	fat := make(allocTable, 0, len(fatSectors)*entriesPerSector)
	for _, sn := range fatSectors {
		buf, err := c.readSector(sn)
		if err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerSector; i++ {
			fat = append(fat, binary.LittleEndian.Uint32(buf[i*4:i*4+4]))
		}
	}
	return fat, nil
}
