package cfb

// Synthetic CFB container builder for tests. The retrieval pack ships no
// binary CFB fixtures, so tests construct minimal, hand-laid-out containers
// in memory, in the spirit of other_examples' tkuchiki-go-xls WriteCFB
// writer (header + FAT + directory sector construction), extended here with
// a mini-FAT/mini-stream so mini-mode addressing gets exercised too.

import (
	"encoding/binary"
	"unicode/utf16"
)

// testEntry describes one directory entry for buildTestCFB. Sibling/child
// links are given explicitly by directory index, mirroring how
// richardlehane-mscfb's own tests (mscfb_test.go's testEntries) hand-wire a
// red-black tree rather than deriving one algorithmically.
type testEntry struct {
	name              string
	objType           uint8
	color             uint8
	left, right, child uint32
	data              []byte
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func putUint16(buf []byte, off int, v uint16) { binary.LittleEndian.PutUint16(buf[off:off+2], v) }
func putUint32(buf []byte, off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v) }
func putUint64(buf []byte, off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:off+8], v) }

// testLayout records where buildTestCFB placed every region, so mutation
// tests can compute exact byte offsets instead of hand-deriving hex math.
type testLayout struct {
	sectorSize            uint32
	entriesPerFATSector   uint32
	entriesPerDirSector   int
	dataSectorCount       uint32
	miniStreamSecStart    uint32
	miniStreamSectorCount uint32
	miniFATSecStart       uint32
	miniFATSectorCount    uint32
	dirSecStart           uint32
	dirSectorCount        uint32
	fatSecStart           uint32
	totalSectors          uint32
	bigStarts             map[int]uint32
	miniStarts            map[int]uint32
}

// layoutFor computes the same sector layout buildTestCFB uses, without
// writing any bytes.
func layoutFor(sectorShift uint16, entries []testEntry) testLayout {
	sectorSize := uint32(1) << sectorShift
	const miniSectorSize = 64
	const cutoff = 4096
	entriesPerFATSector := sectorSize / 4

	bigStarts := map[int]uint32{}
	miniStarts := map[int]uint32{}

	cur := uint32(0)
	for i, e := range entries {
		if e.objType == objStream && len(e.data) >= cutoff {
			bigStarts[i] = cur
			cur += uint32(ceilDiv(len(e.data), int(sectorSize)))
		}
	}
	dataSectorCount := cur

	miniBufLen := 0
	curMini := uint32(0)
	for i, e := range entries {
		if e.objType == objStream && len(e.data) < cutoff {
			miniStarts[i] = curMini
			miniBufLen += len(e.data)
			pad := (miniSectorSize - len(e.data)%miniSectorSize) % miniSectorSize
			miniBufLen += pad
			curMini += uint32(ceilDiv(len(e.data), miniSectorSize))
		}
	}
	totalMiniSectors := curMini
	miniStreamSecStart := dataSectorCount
	miniStreamSectorCount := uint32(0)
	if totalMiniSectors > 0 {
		miniStreamSectorCount = uint32(ceilDiv(miniBufLen, int(sectorSize)))
	}

	miniFATSecStart := miniStreamSecStart + miniStreamSectorCount
	miniFATSectorCount := uint32(0)
	if totalMiniSectors > 0 {
		miniFATSectorCount = uint32(ceilDiv(int(totalMiniSectors), int(entriesPerFATSector)))
	}

	entriesPerDirSector := int(sectorSize) / dirEntryLen
	dirSecStart := miniFATSecStart + miniFATSectorCount
	dirSectorCount := uint32(ceilDiv(len(entries), entriesPerDirSector))

	fatSecStart := dirSecStart + dirSectorCount
	totalSectors := fatSecStart + 1

	return testLayout{
		sectorSize:            sectorSize,
		entriesPerFATSector:   entriesPerFATSector,
		entriesPerDirSector:   entriesPerDirSector,
		dataSectorCount:       dataSectorCount,
		miniStreamSecStart:    miniStreamSecStart,
		miniStreamSectorCount: miniStreamSectorCount,
		miniFATSecStart:       miniFATSecStart,
		miniFATSectorCount:    miniFATSectorCount,
		dirSecStart:           dirSecStart,
		dirSectorCount:        dirSectorCount,
		fatSecStart:           fatSecStart,
		totalSectors:          totalSectors,
		bigStarts:             bigStarts,
		miniStarts:            miniStarts,
	}
}

// sectorFileOffset returns the absolute file offset of the start of regular
// sector sn, given l.sectorSize.
func (l testLayout) sectorFileOffset(sn uint32) int64 {
	return headerLen + int64(sn)*int64(l.sectorSize)
}

// fatEntryFileOffset returns the absolute file offset of the FAT entry for
// regular sector sn, within the single FAT sector buildTestCFB always
// allocates at l.fatSecStart.
func (l testLayout) fatEntryFileOffset(sn uint32) int64 {
	return l.sectorFileOffset(l.fatSecStart) + int64(sn)*4
}

// dirEntryFileOffset returns the absolute file offset of the start of the
// dirEntryLen-byte record for directory index idx.
func (l testLayout) dirEntryFileOffset(idx int) int64 {
	return l.sectorFileOffset(l.dirSecStart) + int64(idx)*dirEntryLen
}

// buildTestCFB assembles a complete CFB byte image from entries (entries[0]
// must be the Root Entry) using a single FAT sector and, if any entry's data
// is shorter than the mini stream cutoff, a mini-FAT/mini-stream region.
// sectorShift selects the regular sector size (9 -> 512 bytes is the normal
// case; tests pass other shifts to exercise SectorSizeWarning).
func buildTestCFB(sectorShift uint16, entries []testEntry) []byte {
	sectorSize := uint32(1) << sectorShift
	const miniSectorSize = 64
	const cutoff = 4096
	entriesPerFATSector := sectorSize / 4

	bigStarts := map[int]uint32{}
	miniStarts := map[int]uint32{}

	// 1. Lay out "big" (>= cutoff) stream payloads as sequential regular
	// sectors.
	cur := uint32(0)
	for i, e := range entries {
		if e.objType == objStream && len(e.data) >= cutoff {
			bigStarts[i] = cur
			cur += uint32(ceilDiv(len(e.data), int(sectorSize)))
		}
	}
	dataSectorCount := cur

	// 2. Pack "small" (< cutoff) stream payloads into one mini-stream
	// buffer, each padded up to a whole number of mini-sectors.
	var miniBuf []byte
	curMini := uint32(0)
	for i, e := range entries {
		if e.objType == objStream && len(e.data) < cutoff {
			miniStarts[i] = curMini
			miniBuf = append(miniBuf, e.data...)
			pad := (miniSectorSize - len(e.data)%miniSectorSize) % miniSectorSize
			miniBuf = append(miniBuf, make([]byte, pad)...)
			curMini += uint32(ceilDiv(len(e.data), miniSectorSize))
		}
	}
	totalMiniSectors := curMini
	miniStreamSecStart := dataSectorCount
	miniStreamSectorCount := uint32(0)
	if totalMiniSectors > 0 {
		miniStreamSectorCount = uint32(ceilDiv(len(miniBuf), int(sectorSize)))
		if rem := len(miniBuf) % int(sectorSize); rem != 0 {
			miniBuf = append(miniBuf, make([]byte, int(sectorSize)-rem)...)
		}
	}

	// 3. Mini-FAT.
	miniFATSecStart := miniStreamSecStart + miniStreamSectorCount
	miniFATSectorCount := uint32(0)
	var miniFAT []uint32
	if totalMiniSectors > 0 {
		miniFATSectorCount = uint32(ceilDiv(int(totalMiniSectors), int(entriesPerFATSector)))
		miniFAT = make([]uint32, miniFATSectorCount*entriesPerFATSector)
		for i := range miniFAT {
			miniFAT[i] = freeSect
		}
		for i, e := range entries {
			start, ok := miniStarts[i]
			if !ok {
				continue
			}
			n := ceilDiv(len(e.data), miniSectorSize)
			for j := 0; j < n; j++ {
				if j == n-1 {
					miniFAT[start+uint32(j)] = endOfChain
				} else {
					miniFAT[start+uint32(j)] = start + uint32(j) + 1
				}
			}
		}
	}

	// 4. Directory sectors.
	entriesPerDirSector := int(sectorSize) / dirEntryLen
	dirSecStart := miniFATSecStart + miniFATSectorCount
	dirSectorCount := uint32(ceilDiv(len(entries), entriesPerDirSector))

	// 5. One FAT sector.
	fatSecStart := dirSecStart + dirSectorCount
	numFATSectors := uint32(1)
	totalSectors := fatSecStart + numFATSectors

	// 6. FAT array.
	fat := make([]uint32, entriesPerFATSector)
	for i := range fat {
		fat[i] = freeSect
	}
	chainSeq := func(start, count uint32) {
		for i := uint32(0); i < count; i++ {
			if i == count-1 {
				fat[start+i] = endOfChain
			} else {
				fat[start+i] = start + i + 1
			}
		}
	}
	for i, start := range bigStarts {
		chainSeq(start, uint32(ceilDiv(len(entries[i].data), int(sectorSize))))
	}
	if miniStreamSectorCount > 0 {
		chainSeq(miniStreamSecStart, miniStreamSectorCount)
	}
	if miniFATSectorCount > 0 {
		chainSeq(miniFATSecStart, miniFATSectorCount)
	}
	chainSeq(dirSecStart, dirSectorCount)
	fat[fatSecStart] = fatSect

	// 7. Header.
	header := make([]byte, headerLen)
	copy(header[0:8], signature[:])
	putUint16(header, 0x18, 0x003E)
	putUint16(header, 0x1A, 3)
	copy(header[0x1C:0x1E], littleEndianMark[:])
	putUint16(header, 0x1E, sectorShift)
	putUint16(header, 0x20, 6)
	putUint32(header, 0x28, 0)
	putUint32(header, 0x2C, numFATSectors)
	putUint32(header, 0x30, dirSecStart)
	putUint32(header, 0x38, cutoff)
	if totalMiniSectors > 0 {
		putUint32(header, 0x3C, miniFATSecStart)
	} else {
		putUint32(header, 0x3C, endOfChain)
	}
	putUint32(header, 0x40, miniFATSectorCount)
	putUint32(header, 0x44, endOfChain)
	putUint32(header, 0x48, 0)
	for i := 0; i < 109; i++ {
		v := freeSect
		if i == 0 {
			v = fatSecStart
		}
		putUint32(header, 0x4C+i*4, v)
	}

	// 8. Directory entry bytes.
	entryBuf := make([]byte, int(dirSectorCount)*entriesPerDirSector*dirEntryLen)
	for i := range entryBuf {
		entryBuf[i] = 0
	}
	writeEntry := func(i int, e testEntry) {
		off := i * dirEntryLen
		units := utf16.Encode([]rune(e.name))
		for j, u := range units {
			putUint16(entryBuf, off+j*2, u)
		}
		putUint16(entryBuf, off+0x40, uint16((len(units)+1)*2))
		entryBuf[off+0x42] = e.objType
		entryBuf[off+0x43] = e.color
		putUint32(entryBuf, off+0x44, e.left)
		putUint32(entryBuf, off+0x48, e.right)
		putUint32(entryBuf, off+0x4C, e.child)
		var start uint32
		var size uint64
		switch {
		case e.objType == objRoot:
			if totalMiniSectors > 0 {
				start = miniStreamSecStart
				size = uint64(len(miniBuf))
			} else {
				start = endOfChain
			}
		case e.objType == objStream:
			if s, ok := bigStarts[i]; ok {
				start = s
			} else if s, ok := miniStarts[i]; ok {
				start = s
			}
			size = uint64(len(e.data))
		default:
			start = endOfChain
		}
		putUint32(entryBuf, off+0x74, start)
		putUint64(entryBuf, off+0x78, size)
	}
	for i, e := range entries {
		writeEntry(i, e)
	}
	// pad remaining directory slots as empty, NOSTREAM-linked entries.
	for i := len(entries); i < int(dirSectorCount)*entriesPerDirSector; i++ {
		off := i * dirEntryLen
		putUint32(entryBuf, off+0x44, noStream)
		putUint32(entryBuf, off+0x48, noStream)
		putUint32(entryBuf, off+0x4C, noStream)
		putUint32(entryBuf, off+0x74, endOfChain)
	}

	// 9. Assemble.
	body := make([]byte, totalSectors*sectorSize)
	for i, start := range bigStarts {
		copy(body[start*sectorSize:], entries[i].data)
	}
	if totalMiniSectors > 0 {
		copy(body[miniStreamSecStart*sectorSize:], miniBuf)
		miniFATBuf := make([]byte, len(miniFAT)*4)
		for i, v := range miniFAT {
			putUint32(miniFATBuf, i*4, v)
		}
		copy(body[miniFATSecStart*sectorSize:], miniFATBuf)
	}
	copy(body[dirSecStart*sectorSize:], entryBuf)
	fatBuf := make([]byte, len(fat)*4)
	for i, v := range fat {
		putUint32(fatBuf, i*4, v)
	}
	copy(body[fatSecStart*sectorSize:], fatBuf)

	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// memSource is a trivial in-memory source.ByteSource, used so tests never
// have to touch disk.
type memSource struct {
	data   []byte
	closed bool
}

func newMemSource(b []byte) *memSource { return &memSource{data: b} }

func (m *memSource) Len() int64 { return int64(len(m.data)) }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memSource) Close() error {
	m.closed = true
	return nil
}
