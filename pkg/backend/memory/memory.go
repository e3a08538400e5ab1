// Package memory implements the in-memory backend variant. The whole array
// lives in a single owned buffer; linking is a no-op because there is no
// external resource to acquire.
package memory

import (
	"fmt"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Backend owns the array directly.
type Backend struct {
	buf *voxel.Buffer
}

// New wraps an existing buffer. The backend takes ownership.
func New(buf *voxel.Buffer) *Backend {
	return &Backend{buf: buf}
}

// NewEmpty allocates a zero-filled array.
func NewEmpty(shape voxel.Shape, elem voxel.ElemType) *Backend {
	return &Backend{buf: voxel.NewBuffer(shape, elem)}
}

func (b *Backend) Mode() backend.Mode          { return backend.ModeMemory }
func (b *Backend) Shape() voxel.Shape          { return b.buf.Shape }
func (b *Backend) ElemType() voxel.ElemType    { return b.buf.Elem }
func (b *Backend) IsLinked() bool              { return true }
func (b *Backend) Link() error                 { return nil }
func (b *Backend) Unlink() error               { return nil }
func (b *Backend) Flush() error                { return nil }

// Buffer exposes the owned buffer for callers that mutate elements in
// place (the indexing façade's Set path).
func (b *Backend) Buffer() *voxel.Buffer { return b.buf }

// Replace swaps the owned buffer, used when a crop or resize rewrites the
// array wholesale.
func (b *Backend) Replace(buf *voxel.Buffer) { b.buf = buf }

func (b *Backend) ReadFrames(first, stop int) (*voxel.Buffer, error) {
	if err := b.checkRange(first, stop); err != nil {
		return nil, err
	}
	return b.buf.FrameRange(first, stop).Clone(), nil
}

func (b *Backend) WriteFrames(first int, buf *voxel.Buffer) error {
	stop := first + buf.Shape.Frames
	if err := b.checkRange(first, stop); err != nil {
		return err
	}
	if buf.Shape.WithFrames(1) != b.buf.Shape.WithFrames(1) || buf.Elem != b.buf.Elem {
		return fmt.Errorf("%w: frame geometry %s %s does not match array %s %s",
			voxel.ErrInput, buf.Shape, buf.Elem, b.buf.Shape, b.buf.Elem)
	}
	copy(b.buf.FrameRange(first, stop).Data, buf.Data)
	return nil
}

func (b *Backend) checkRange(first, stop int) error {
	if first < 0 || stop > b.buf.Shape.Frames || first >= stop {
		return fmt.Errorf("%w: frame range [%d,%d) out of range for %d frames",
			voxel.ErrInput, first, stop, b.buf.Shape.Frames)
	}
	return nil
}
