// Package mapped implements the writable memory-mapped container backend.
//
// Link opens the container file, validates its header, and establishes a
// read-write mapping over the whole file; the data region is addressed as
// a view starting at the fixed header boundary. Unlink drops the mapping
// but remembers the path so the backend can relink later. Mapped views
// handed out by Bytes alias the mapping and must not outlive it.
package mapped

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/container"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Backend is a writable container file mapped into memory.
type Backend struct {
	path  string
	f     *os.File
	m     mmap.MMap
	shape voxel.Shape
	elem  voxel.ElemType
}

// New returns an unlinked backend for an existing container at path. The
// header is not touched until Link.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Create writes a fresh container at path sized for shape and elem, then
// links to it. An existing file at path is truncated.
func Create(path string, shape voxel.Shape, elem voxel.ElemType) (*Backend, error) {
	if !shape.Valid() || elem == voxel.ElemUnknown {
		return nil, fmt.Errorf("%w: cannot create container with shape %s and element type %s",
			voxel.ErrInput, shape, elem)
	}
	h := container.NewHeader(shape, elem, uint64(backend.ModeMapped))
	if err := container.WriteHeader(path, h); err != nil {
		return nil, err
	}
	if err := os.Truncate(path, container.DataOffset+h.DataSize()); err != nil {
		return nil, err
	}
	b := New(path)
	if err := b.Link(); err != nil {
		return nil, err
	}
	return b, nil
}

// Path returns the container file path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) Mode() backend.Mode       { return backend.ModeMapped }
func (b *Backend) Shape() voxel.Shape       { return b.shape }
func (b *Backend) ElemType() voxel.ElemType { return b.elem }
func (b *Backend) IsLinked() bool           { return b.m != nil }

// Link validates the container header and maps the file read-write. The
// file length must equal header plus data region exactly. Idempotent.
func (b *Backend) Link() error {
	if b.m != nil {
		return nil
	}

	h, err := container.Probe(b.path)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: container %q", voxel.ErrNotFound, b.path)
	}

	fi, err := os.Stat(b.path)
	if err != nil {
		return err
	}
	want := container.DataOffset + h.DataSize()
	if fi.Size() != want {
		return fmt.Errorf("%w: container %q is %d bytes, header describes %d",
			voxel.ErrFormat, b.path, fi.Size(), want)
	}

	f, err := os.OpenFile(b.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return err
	}

	elem, _ := h.ElemType()
	b.f = f
	b.m = m
	b.shape = h.Shape()
	b.elem = elem
	return nil
}

// Unlink flushes and drops the mapping, keeping the path for a later
// relink. Idempotent.
func (b *Backend) Unlink() error {
	if b.m != nil {
		if err := b.m.Flush(); err != nil {
			return err
		}
		if err := b.m.Unmap(); err != nil {
			return err
		}
		b.m = nil
	}
	if b.f != nil {
		err := b.f.Close()
		b.f = nil
		return err
	}
	return nil
}

// Bytes returns the data region of the mapping. The slice aliases the map
// and is only valid while linked.
func (b *Backend) Bytes() ([]byte, error) {
	if b.m == nil {
		return nil, voxel.ErrUnlinked
	}
	return b.m[container.DataOffset:], nil
}

// Buffer returns a buffer view over the mapped data region. Mutations hit
// the file directly.
func (b *Backend) Buffer() (*voxel.Buffer, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return voxel.BufferOver(b.shape, b.elem, data)
}

func (b *Backend) ReadFrames(first, stop int) (*voxel.Buffer, error) {
	view, err := b.Buffer()
	if err != nil {
		return nil, err
	}
	if first < 0 || stop > b.shape.Frames || first >= stop {
		return nil, fmt.Errorf("%w: frame range [%d,%d) out of range for %d frames",
			voxel.ErrInput, first, stop, b.shape.Frames)
	}
	return view.FrameRange(first, stop).Clone(), nil
}

func (b *Backend) WriteFrames(first int, buf *voxel.Buffer) error {
	view, err := b.Buffer()
	if err != nil {
		return err
	}
	stop := first + buf.Shape.Frames
	if first < 0 || stop > b.shape.Frames {
		return fmt.Errorf("%w: frame range [%d,%d) out of range for %d frames",
			voxel.ErrInput, first, stop, b.shape.Frames)
	}
	if buf.Shape.WithFrames(1) != b.shape.WithFrames(1) || buf.Elem != b.elem {
		return fmt.Errorf("%w: frame geometry %s %s does not match container %s %s",
			voxel.ErrInput, buf.Shape, buf.Elem, b.shape, b.elem)
	}
	copy(view.FrameRange(first, stop).Data, buf.Data)
	return nil
}

// Flush pushes the mapping to disk.
func (b *Backend) Flush() error {
	if b.m == nil {
		return nil
	}
	return b.m.Flush()
}

// RewriteHeader re-encodes the header into the mapping and flushes it.
// Writers call this before anything else when shape or dtype change, and
// unconditionally when the store is dirty so replication tools that watch
// timestamps observe the update.
func (b *Backend) RewriteHeader() error {
	h := container.NewHeader(b.shape, b.elem, uint64(backend.ModeMapped))
	if b.m == nil {
		return container.WriteHeader(b.path, h)
	}
	copy(b.m[:container.HeaderSize], h.Encode())
	return b.m.Flush()
}
