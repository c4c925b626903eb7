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

// Package cfb implements a read-only reader for Microsoft's Compound File
// Binary File Format (also known as OLE Compound Document or Structured
// Storage), the container format underlying legacy MS Office documents and
// the Advanced Authoring Format.
//
// Example:
//
//	src, err := source.Open("test/test.doc", 0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := cfb.Open(src)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//	sv, err := c.OpenPath("WordDocument")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sv.Close()
//	buf := make([]byte, 512)
//	n, _ := sv.Read(buf)
//	fmt.Println(buf[:n])
package cfb

import (
	"github.com/go-cfb/cfb/source"
)

// Container owns a byte source and every structure derived from it: the
// header parameters, the materialized FAT and mini-FAT, the flat directory
// entry array, and the entity tree rooted at Root. It is immutable once
// Open returns and is disposed in one step by Close.
type Container struct {
	src    source.ByteSource
	hdr    *header
	fat    allocTable
	miniFAT allocTable
	// miniStreamChain holds the regular-sector numbers backing the Root
	// Entry's ministream, in order.
	miniStreamChain []uint32

	entries []*dirEntry
	root    *Entity

	diag   *diagnostics
	closed bool
}

// Option configures Open/OpenFile.
type Option func(*options)

type options struct {
	promote         []Category
	sink            Sink
	windowThreshold int64
}

// WithPromote promotes the given warning categories to fatal errors.
func WithPromote(categories ...Category) Option {
	return func(o *options) { o.promote = append(o.promote, categories...) }
}

// WithSink overrides the default diagnostics sink.
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithWindowThreshold overrides the file-size cutoff OpenFile uses to choose
// between a full memory mapping and a rolling window. Only meaningful with
// OpenFile, not with Open (which takes an already-constructed ByteSource).
func WithWindowThreshold(bytes int64) Option {
	return func(o *options) { o.windowThreshold = bytes }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// OpenFile opens the file at path and constructs a Container over it,
// choosing a memory-mapped or windowed ByteSource based on file size (see
// source.Open).
func OpenFile(path string, opts ...Option) (*Container, error) {
	o := buildOptions(opts)
	src, err := source.Open(path, o.windowThreshold)
	if err != nil {
		return nil, err
	}
	c, cerr := openSource(src, o)
	if cerr != nil {
		src.Close()
		return nil, cerr
	}
	return c, nil
}

// Open constructs a Container over an already-open ByteSource. On any fatal
// error, src is closed before Open returns (spec.md §5 scoped acquisition).
func Open(src source.ByteSource, opts ...Option) (*Container, error) {
	o := buildOptions(opts)
	c, err := openSource(src, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	return c, nil
}

func openSource(src source.ByteSource, o *options) (*Container, *Error) {
	c := &Container{
		src:  src,
		diag: newDiagnostics(o.sink, o.promote),
	}

	buf, rerr := c.readAt(0, headerLen)
	if rerr != nil {
		return nil, newErr(CategoryNotCFB, 0, "failed to read header: "+rerr.Error())
	}
	hdr, herr := parseHeader(buf, src.Len(), c.diag)
	if herr != nil {
		return nil, herr
	}
	c.hdr = hdr

	if err := c.buildFAT(); err != nil {
		return nil, err
	}
	if err := c.buildDirectory(); err != nil {
		return nil, err
	}
	if err := c.buildMiniStream(); err != nil {
		return nil, err
	}
	if err := c.buildEntityTree(); err != nil {
		return nil, err
	}
	return c, nil
}

// readAt reads exactly n bytes at off from the underlying byte source.
func (c *Container) readAt(off int64, n int) ([]byte, *Error) {
	buf := make([]byte, n)
	if _, err := c.src.ReadAt(buf, off); err != nil {
		return nil, newErr(CategoryHeaderCorrupt, off, "read failed: "+err.Error())
	}
	return buf, nil
}

// readSector reads one whole regular sector.
func (c *Container) readSector(sn uint32) ([]byte, *Error) {
	return c.readAt(c.hdr.sectorOffset(sn), int(c.hdr.sectorSize))
}

// Root returns the root storage entity.
func (c *Container) Root() *Entity { return c.root }

// Close releases the underlying byte source. Safe to call more than once.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.Close()
}
