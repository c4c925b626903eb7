package source

import (
	"fmt"
	"os"
	"sync"
)

// DefaultWindowThreshold is the file-size cutoff Open uses to pick between
// MmapSource and WindowSource.
const DefaultWindowThreshold int64 = 1 << 30 // 1 GiB

// defaultWindowSize is the size of the rolling window WindowSource keeps
// resident. It need not be page-aligned: unlike a real mmap, the window is
// read with ReadAt, not mapped, so alignment is an implementation detail
// rather than a syscall requirement.
const defaultWindowSize = 1 << 24 // 16 MiB

// WindowSource is a ByteSource backed by a rolling window over an
// *os.File, for containers too large to comfortably map in full. It
// satisfies the same ByteSource contract as MmapSource; callers cannot tell
// the two apart from behavior alone.
type WindowSource struct {
	mu         sync.Mutex
	file       *os.File
	size       int64
	windowSize int64
	winOff     int64
	winBuf     []byte
	winLen     int
}

// NewWindowSource wraps f in a rolling window of windowSize bytes (0 selects
// defaultWindowSize). f is retained and closed by Close.
func NewWindowSource(f *os.File, windowSize int64) (*WindowSource, error) {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("source: failed to stat window target: %w", err)
	}
	return &WindowSource{
		file:       f,
		size:       fi.Size(),
		windowSize: windowSize,
		winOff:     -1,
	}, nil
}

// Len implements ByteSource.
func (w *WindowSource) Len() int64 { return w.size }

// ReadAt implements ByteSource. Reads that fall entirely within the current
// window are served from the resident buffer; reads outside it trigger a
// re-read of a fresh window starting at off. Reads spanning more than one
// window are served in successive window-sized chunks.
func (w *WindowSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > w.size {
		return 0, fmt.Errorf("source: offset %d out of range", off)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= w.size {
			break
		}
		if err := w.ensureWindow(cur); err != nil {
			return total, err
		}
		rel := int(cur - w.winOff)
		n := copy(p[total:], w.winBuf[rel:w.winLen])
		if n == 0 {
			break
		}
		total += n
	}
	if total < len(p) {
		return total, fmt.Errorf("source: short read at offset %d", off)
	}
	return total, nil
}

// ensureWindow re-reads the window so that off falls within [winOff,
// winOff+winLen).
func (w *WindowSource) ensureWindow(off int64) error {
	if w.winOff >= 0 && off >= w.winOff && off < w.winOff+int64(w.winLen) {
		return nil
	}
	if w.winBuf == nil {
		w.winBuf = make([]byte, w.windowSize)
	}
	length := w.windowSize
	if off+length > w.size {
		length = w.size - off
	}
	n, err := w.file.ReadAt(w.winBuf[:length], off)
	if n == 0 && err != nil {
		return fmt.Errorf("source: window read at offset %d failed: %w", off, err)
	}
	w.winOff = off
	w.winLen = n
	return nil
}

// Close closes the underlying file. Safe to call more than once.
func (w *WindowSource) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.winBuf = nil
	return err
}
