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

// sector ID sentinels, per spec.md §3.
const (
	maxRegSect uint32 = 0xFFFFFFFA // maximum regular sector number
	difatSect  uint32 = 0xFFFFFFFC // specifies a DIFAT sector in the FAT
	fatSect    uint32 = 0xFFFFFFFD // specifies a FAT sector in the FAT
	endOfChain uint32 = 0xFFFFFFFE // end of a linked chain of sectors
	freeSect   uint32 = 0xFFFFFFFF // unallocated sector in the FAT, mini-FAT or DIFAT
	noStream   uint32 = 0xFFFFFFFF // empty directory-entry link
)

// allocTable is the shared contract followChain needs from either the FAT or
// the mini-FAT: a flat lookup from sector/mini-sector number to its
// successor.
type allocTable []uint32

// followChain walks table starting at start, returning the ordered sector
// list. It enforces spec.md §4.3's rules: END_OF_CHAIN stops the walk, any
// other sentinel mid-chain is fatal, out-of-range indices are fatal, and a
// cycle (any sector revisited) is fatal. The walk is bounded by len(table)
// steps so a malformed table can never spin indefinitely.
func followChain(table allocTable, start uint32, cat Category) ([]uint32, *Error) {
	if start == endOfChain || start == freeSect {
		return nil, nil
	}
	visited := make([]bool, len(table))
	chain := make([]uint32, 0, 16)
	sn := start
	for i := 0; i <= len(table); i++ {
		if sn == endOfChain {
			return chain, nil
		}
		if sn >= maxRegSect {
			return nil, newErr(cat, int64(sn), "unexpected sentinel mid-chain")
		}
		if int(sn) >= len(table) {
			return nil, newErr(cat, int64(sn), "sector index out of range")
		}
		if visited[sn] {
			return nil, newErr(CategoryCycleDetected, int64(sn), "sector revisited in chain")
		}
		visited[sn] = true
		chain = append(chain, sn)
		sn = table[sn]
	}
	return nil, newErr(cat, int64(sn), "chain exceeds table length without terminator")
}
