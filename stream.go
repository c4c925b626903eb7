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
	"io"
	"strings"
)

// StreamView is an independent, seekable, read-only cursor over one
// stream's bytes. Each StreamView owns its own position and chain cache;
// operations on one StreamView never affect another, even over the same
// Entity (spec.md §4.5, the v0.2 handle-independence regression).
type StreamView struct {
	c      *Container
	entity *Entity
	runs   [][2]int64 // physical (offset, length) segments, in logical order
	size   int64
	position int64
	closed bool
}

// Open resolves target - an *Entity or a "/"-separated path string - to a
// stream entity and returns an independent StreamView over its bytes.
func (c *Container) Open(target interface{}) (*StreamView, error) {
	var ent *Entity
	switch v := target.(type) {
	case *Entity:
		ent = v
	case string:
		e, ok := c.resolvePath(v)
		if !ok {
			return nil, newErr(CategoryOutOfRange, -1, "no entity at path "+v)
		}
		ent = e
	default:
		return nil, newErr(CategoryOutOfRange, -1, "Open requires an *Entity or a path string")
	}
	if ent.kind != KindStream {
		return nil, ErrNoStream
	}
	sv, err := c.newStreamView(ent)
	if err != nil {
		return nil, err
	}
	return sv, nil
}

// OpenPath is a typed convenience wrapper over Open for path strings.
func (c *Container) OpenPath(path string) (*StreamView, error) {
	return c.Open(path)
}

// resolvePath walks the entity tree from Root following "/"-separated path
// components, matching each with case-insensitive CFB name comparison.
func (c *Container) resolvePath(path string) (*Entity, bool) {
	cur := c.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, ok := cur.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (c *Container) newStreamView(ent *Entity) (*StreamView, *Error) {
	mini := !ent.isRoot && ent.size < c.hdr.miniStreamCutoff
	runs, size, err := c.buildRuns(mini, ent.startSect, ent.size)
	if err != nil {
		return nil, err
	}
	return &StreamView{c: c, entity: ent, runs: runs, size: int64(size)}, nil
}

// buildRuns follows the FAT or mini-FAT chain starting at startSect and
// turns it into a compressed list of physical (offset, length) runs
// covering min(declared, chain capacity) bytes, per spec.md §4.5 and the
// §9 Open Question on oversize declared sizes.
func (c *Container) buildRuns(mini bool, startSect uint32, declared uint64) ([][2]int64, uint64, *Error) {
	if declared == 0 {
		return nil, 0, nil
	}
	var table allocTable
	var sectorSize int64
	if mini {
		table = c.miniFAT
		sectorSize = int64(c.hdr.miniSectorSize)
	} else {
		table = c.fat
		sectorSize = int64(c.hdr.sectorSize)
	}
	chain, err := followChain(table, startSect, CategoryMalformedChain)
	if err != nil {
		return nil, 0, err
	}
	capacity := uint64(len(chain)) * uint64(sectorSize)
	effective := declared
	if capacity < declared {
		if werr := c.diag.warn(CategoryStreamSizeMismatch, int64(startSect), "stream chain capacity is smaller than the declared size"); werr != nil {
			return nil, 0, werr
		}
		effective = capacity
	}

	runs := make([][2]int64, 0, len(chain))
	remaining := int64(effective)
	for _, sn := range chain {
		if remaining <= 0 {
			break
		}
		var off int64
		if mini {
			off, err = c.miniSectorOffset(sn)
			if err != nil {
				return nil, 0, err
			}
		} else {
			off = c.hdr.sectorOffset(sn)
		}
		length := sectorSize
		if length > remaining {
			length = remaining
		}
		runs = append(runs, [2]int64{off, length})
		remaining -= length
	}
	return compressRuns(runs), effective, nil
}

// compressRuns merges adjacent runs that turn out to be physically
// contiguous, keeping per-read I/O proportional to the number of distinct
// extents rather than the number of (mini-)sectors.
func compressRuns(runs [][2]int64) [][2]int64 {
	out := runs[:0:0]
	for _, r := range runs {
		if n := len(out); n > 0 && out[n-1][0]+out[n-1][1] == r[0] {
			out[n-1][1] += r[1]
			continue
		}
		out = append(out, r)
	}
	return out
}

// Read fills p from the current position, returning fewer bytes only at end
// of stream, and advances position by the number of bytes returned. Errors
// never advance position (spec.md §7).
func (s *StreamView) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.position >= s.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if s.position+want > s.size {
		want = s.size - s.position
	}
	n, err := s.readAt(p[:want], s.position)
	if err != nil {
		return 0, err
	}
	s.position += int64(n)
	return n, nil
}

// readAt reads exactly len(dst) bytes from logical offset from, by locating
// the physical runs it falls within.
func (s *StreamView) readAt(dst []byte, from int64) (int, *Error) {
	total := 0
	pos := from
	need := int64(len(dst))
	var cum int64
	for _, r := range s.runs {
		runLen := r[1]
		if pos >= cum+runLen {
			cum += runLen
			continue
		}
		within := pos - cum
		avail := runLen - within
		n := need
		if n > avail {
			n = avail
		}
		buf, err := s.c.readAt(r[0]+within, int(n))
		if err != nil {
			return total, err
		}
		copy(dst[total:total+int(n)], buf)
		total += int(n)
		pos += n
		need -= n
		cum += runLen
		if need <= 0 {
			break
		}
	}
	return total, nil
}

// Seek updates position per io.Seeker's whence convention. Negative results
// are rejected; positions beyond the stream's size are clamped to size
// (subsequent reads then return empty), per spec.md §4.5.
func (s *StreamView) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.position + offset
	case io.SeekEnd:
		newPos = s.size + offset
	default:
		return s.position, newErr(CategoryOutOfRange, offset, "invalid whence")
	}
	if newPos < 0 {
		return s.position, ErrOutOfRange
	}
	if newPos > s.size {
		newPos = s.size
	}
	s.position = newPos
	return s.position, nil
}

// Tell returns the current position.
func (s *StreamView) Tell() int64 { return s.position }

// Size returns the stream's effective size (min(declared, chain capacity)).
func (s *StreamView) Size() int64 { return s.size }

// Close is idempotent; subsequent reads/seeks fail with ErrStreamClosed. It
// does not affect the owning Container or any other StreamView.
func (s *StreamView) Close() error {
	s.closed = true
	return nil
}
