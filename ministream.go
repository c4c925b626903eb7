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

// buildMiniStream materializes the mini-FAT array and the regular-sector
// chain backing the Root Entry's ministream, per spec.md §4.5 / the
// "Root Entry's start sector and size describe the mini-stream" invariant.
func (c *Container) buildMiniStream() *Error {
	root := c.entries[0]
	if root.startSect == endOfChain || c.hdr.miniFATSectorLoc == endOfChain {
		return nil
	}

	miniFATChain, err := followChain(c.fat, c.hdr.miniFATSectorLoc, CategoryMalformedFAT)
	if err != nil {
		return err
	}
	entriesPerSector := int(c.hdr.sectorSize / 4)
	miniFAT := make(allocTable, 0, len(miniFATChain)*entriesPerSector)
	for _, sn := range miniFATChain {
		buf, rerr := c.readSector(sn)
		if rerr != nil {
			return rerr
		}
		for i := 0; i < entriesPerSector; i++ {
			miniFAT = append(miniFAT, binary.LittleEndian.Uint32(buf[i*4:i*4+4]))
		}
	}
	c.miniFAT = miniFAT

	chain, err := followChain(c.fat, root.startSect, CategoryMalformedChain)
	if err != nil {
		return err
	}
	c.miniStreamChain = chain
	return nil
}

// miniSectorOffset returns the file offset backing mini-sector m, by
// resolving m's position within the regular-sector chain that backs the
// ministream (spec.md §4.5).
func (c *Container) miniSectorOffset(m uint32) (int64, *Error) {
	miniPerSector := c.hdr.sectorSize / c.hdr.miniSectorSize
	idx := int(m / miniPerSector)
	if idx < 0 || idx >= len(c.miniStreamChain) {
		return 0, newErr(CategoryMalformedChain, int64(m), "mini-sector index beyond ministream chain")
	}
	within := int64(m%miniPerSector) * int64(c.hdr.miniSectorSize)
	return c.hdr.sectorOffset(c.miniStreamChain[idx]) + within, nil
}
