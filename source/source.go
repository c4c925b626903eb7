// Package source provides the seekable, random-access byte-source adapters
// that github.com/go-cfb/cfb reads containers through. The core reader never
// sees which adapter backs a given Container: both satisfy the same
// ByteSource contract (spec.md §6.1).
package source

import (
	"fmt"
	"os"
)

// ByteSource is a seekable, random-access view over a container. ReadAt is
// positional and must not disturb any shared cursor, so independent
// StreamViews can read through the same ByteSource without interfering with
// one another.
type ByteSource interface {
	// Len returns the total size of the underlying container in bytes.
	Len() int64
	// ReadAt fills p from off, returning a short read only at EOF.
	ReadAt(p []byte, off int64) (int, error)
	// Close releases any resources held by the source. It is safe to call
	// more than once.
	Close() error
}

// Open picks an adapter for path based on file size: files up to threshold
// bytes are memory-mapped in full; larger files use a rolling WindowSource so
// hosts without enough virtual address space headroom can still read them.
// threshold <= 0 selects DefaultWindowThreshold.
func Open(path string, threshold int64) (ByteSource, error) {
	if threshold <= 0 {
		threshold = DefaultWindowThreshold
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: failed to open %q: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: failed to stat %q: %w", path, err)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("source: %q is empty", path)
	}
	if fi.Size() <= threshold {
		ms, err := NewMmapSource(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return ms, nil
	}
	return NewWindowSource(f, 0)
}
