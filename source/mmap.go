package source

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapSource is a ByteSource backed by a single shared memory mapping of the
// whole container. It is the adapter of choice for files small enough to fit
// comfortably in the host's virtual address space.
type MmapSource struct {
	file *os.File
	data []byte
}

// NewMmapSource maps f's entire contents read-only. f is retained and closed
// by Close.
func NewMmapSource(f *os.File) (*MmapSource, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("source: failed to stat mmap target: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		return nil, fmt.Errorf("source: cannot mmap an empty file")
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("source: mmap failed: %w", err)
	}
	return &MmapSource{file: f, data: data}, nil
}

// Len implements ByteSource.
func (m *MmapSource) Len() int64 { return int64(len(m.data)) }

// ReadAt implements ByteSource. The mapping is read-only and shared, so
// concurrent ReadAt calls from multiple goroutines are safe without external
// locking (spec.md §5).
func (m *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("source: offset %d out of range", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("source: short read at offset %d", off)
	}
	return n, nil
}

// Close unmaps the region and closes the underlying file. Safe to call more
// than once.
func (m *MmapSource) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
