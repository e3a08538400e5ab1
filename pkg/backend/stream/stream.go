// Package stream implements the read-only backend over a sequential frame
// decoder. Random access is permitted but costs a seek followed by a
// decode per frame, so frame-range reads seek once to the first requested
// frame and then decode cursor-relative.
package stream

import (
	"fmt"
	"math"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Backend wraps a sequential decoder with a current-position cursor.
type Backend struct {
	path   string
	dec    backend.SequentialDecoder
	shape  voxel.Shape
	elem   voxel.ElemType
	probed bool
}

// New returns an unlinked backend for the media file at path.
func New(path string) *Backend {
	return &Backend{path: path}
}

// Path returns the media file path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) Mode() backend.Mode       { return backend.ModeStream }
func (b *Backend) Shape() voxel.Shape       { return b.shape }
func (b *Backend) ElemType() voxel.ElemType { return b.elem }
func (b *Backend) IsLinked() bool           { return b.dec != nil }

// Link opens the decoder. On first link one probe frame is decoded to
// resolve shape and element type as a unit; the frame count derives from
// duration times the nominal frame rate. Idempotent.
func (b *Backend) Link() error {
	if b.dec != nil {
		return nil
	}
	dec, err := backend.OpenSequential(b.path)
	if err != nil {
		return err
	}
	b.dec = dec

	if !b.probed {
		if err := b.probe(); err != nil {
			b.dec = nil
			dec.Close()
			return err
		}
	}
	return nil
}

func (b *Backend) probe() error {
	frames := int(math.Round(b.dec.Duration() * b.dec.FrameRate()))
	if frames < 1 {
		return fmt.Errorf("%w: %q decodes to no frames", voxel.ErrFormat, b.path)
	}
	if err := b.dec.Seek(0); err != nil {
		return err
	}
	probe, err := b.dec.DecodeNext()
	if err != nil {
		return err
	}
	b.shape = probe.Shape.WithFrames(frames)
	b.elem = probe.Elem
	b.probed = true
	return nil
}

// Unlink closes the decoder, keeping the probed metadata and path for a
// later relink. Idempotent.
func (b *Backend) Unlink() error {
	if b.dec == nil {
		return nil
	}
	err := b.dec.Close()
	b.dec = nil
	return err
}

// ReadFrames seeks to the timestamp of the first requested frame, then
// decodes sequentially. The first decoded frame sizes the output buffer;
// the remaining frames overwrite their blocks in order.
func (b *Backend) ReadFrames(first, stop int) (*voxel.Buffer, error) {
	if b.dec == nil {
		return nil, voxel.ErrUnlinked
	}
	if first < 0 || stop > b.shape.Frames || first >= stop {
		return nil, fmt.Errorf("%w: frame range [%d,%d) out of range for %d frames",
			voxel.ErrInput, first, stop, b.shape.Frames)
	}

	// Frame index to time offset via the constant nominal rate. Variable
	// frame rates are a known gap of this mapping.
	if err := b.dec.Seek(float64(first) / b.dec.FrameRate()); err != nil {
		return nil, err
	}

	var out *voxel.Buffer
	for i := first; i < stop; i++ {
		frame, err := b.dec.DecodeNext()
		if err != nil {
			return nil, fmt.Errorf("decoding frame %d of %q: %w", i, b.path, err)
		}
		if out == nil {
			out = voxel.NewBuffer(frame.Shape.WithFrames(stop-first), frame.Elem)
		}
		if copy(out.Frame(i-first).Data, frame.Data) != len(frame.Data) {
			return nil, fmt.Errorf("%w: frame %d geometry changed mid-stream", voxel.ErrFormat, i)
		}
	}
	return out, nil
}
