// Package tiled implements the read-only backend over one or more
// random-access tiled image files.
//
// The native axis order of a tiled source is (row, col, frame, slice):
// frame and slice are transposed relative to the canonical order, so every
// read permutes elements back to (row, col, slice, frame). A dataset split
// across multiple part files is concatenated logically along the frame
// axis; absolute frame indices map to (part, local frame) pairs.
package tiled

import (
	"fmt"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/voxel"
)

type part struct {
	path   string
	reader backend.TiledReader // nil while unlinked
	frames int                 // native frame count of this file
	offset int                 // absolute index of its first frame
}

// Backend concatenates tiled part files into one frame axis.
type Backend struct {
	parts  []part
	shape  voxel.Shape
	elem   voxel.ElemType
	probed bool
}

// New returns an unlinked backend over the given part files, already
// sorted by their position in the sequence. At least one path is required.
func New(paths ...string) (*Backend, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: tiled backend needs at least one file", voxel.ErrInput)
	}
	b := &Backend{parts: make([]part, len(paths))}
	for i, p := range paths {
		b.parts[i] = part{path: p}
	}
	return b, nil
}

// Paths returns the part file paths in sequence order.
func (b *Backend) Paths() []string {
	out := make([]string, len(b.parts))
	for i, p := range b.parts {
		out[i] = p.path
	}
	return out
}

func (b *Backend) Mode() backend.Mode       { return backend.ModeTiled }
func (b *Backend) Shape() voxel.Shape       { return b.shape }
func (b *Backend) ElemType() voxel.ElemType { return b.elem }

func (b *Backend) IsLinked() bool {
	return b.parts[0].reader != nil
}

// Link opens every part file and, on first link, probes the combined
// geometry. All parts must agree on rows, cols, slices and element type.
// Idempotent.
func (b *Backend) Link() error {
	if b.IsLinked() {
		return nil
	}

	opened := 0
	for i := range b.parts {
		r, err := backend.OpenTiled(b.parts[i].path)
		if err != nil {
			b.closeParts(opened)
			return err
		}
		b.parts[i].reader = r
		opened++
	}

	if err := b.probe(); err != nil {
		b.closeParts(opened)
		return err
	}
	return nil
}

func (b *Backend) probe() error {
	total := 0
	var rows, cols, slices int
	var elem voxel.ElemType
	for i := range b.parts {
		p := &b.parts[i]
		r, c, f, s := p.reader.Size()
		e := p.reader.ElemType()
		if i == 0 {
			rows, cols, slices, elem = r, c, s, e
		} else if r != rows || c != cols || s != slices || e != elem {
			return fmt.Errorf("%w: part %q geometry %dx%dx%d %s differs from first part %dx%dx%d %s",
				voxel.ErrFormat, p.path, r, c, s, e, rows, cols, slices, elem)
		}
		p.frames = f
		p.offset = total
		total += f
	}
	if total < 1 {
		return fmt.Errorf("%w: tiled source has no frames", voxel.ErrFormat)
	}
	b.shape = voxel.Shape{Rows: rows, Cols: cols, Slices: slices, Frames: total}
	b.elem = elem
	b.probed = true
	return nil
}

func (b *Backend) closeParts(n int) {
	for i := 0; i < n; i++ {
		b.parts[i].reader.Close()
		b.parts[i].reader = nil
	}
}

// Unlink closes every reader, keeping paths and probed metadata.
// Idempotent.
func (b *Backend) Unlink() error {
	var first error
	for i := range b.parts {
		if b.parts[i].reader == nil {
			continue
		}
		if err := b.parts[i].reader.Close(); err != nil && first == nil {
			first = err
		}
		b.parts[i].reader = nil
	}
	return first
}

// ReadFrames reads frames [first, stop) across part boundaries, permuting
// each native block back to canonical axis order.
func (b *Backend) ReadFrames(first, stop int) (*voxel.Buffer, error) {
	if !b.IsLinked() {
		return nil, voxel.ErrUnlinked
	}
	if first < 0 || stop > b.shape.Frames || first >= stop {
		return nil, fmt.Errorf("%w: frame range [%d,%d) out of range for %d frames",
			voxel.ErrInput, first, stop, b.shape.Frames)
	}

	out := voxel.NewBuffer(b.shape.WithFrames(stop-first), b.elem)
	for i := range b.parts {
		p := &b.parts[i]
		lo := max(first, p.offset)
		hi := min(stop, p.offset+p.frames)
		if lo >= hi {
			continue
		}
		raw, err := p.reader.Read(0, b.shape.Rows, 0, b.shape.Cols, lo-p.offset, hi-p.offset)
		if err != nil {
			return nil, fmt.Errorf("reading frames %d-%d of %q: %w", lo, hi-1, p.path, err)
		}
		if err := b.permuteInto(out, raw, lo-first, hi-lo); err != nil {
			return nil, fmt.Errorf("%q: %w", p.path, err)
		}
	}
	return out, nil
}

// permuteInto copies a native (row, col, frame, slice) block of nframes
// frames into out starting at canonical frame dstFrame, swapping the frame
// and slice axes.
func (b *Backend) permuteInto(out *voxel.Buffer, raw []byte, dstFrame, nframes int) error {
	sh := b.shape
	w := b.elem.Width()
	if len(raw) != sh.Rows*sh.Cols*sh.Slices*nframes*w {
		return fmt.Errorf("%w: tiled read returned %d bytes, want %d",
			voxel.ErrFormat, len(raw), sh.Rows*sh.Cols*sh.Slices*nframes*w)
	}

	rowBytes := sh.Rows * w
	for s := 0; s < sh.Slices; s++ {
		for f := 0; f < nframes; f++ {
			for c := 0; c < sh.Cols; c++ {
				// Native nesting: row fastest, then col, then frame, then slice.
				src := (c*sh.Rows + sh.Rows*sh.Cols*(f+nframes*s)) * w
				dst := out.Shape.Index(0, c, s, dstFrame+f) * w
				copy(out.Data[dst:dst+rowBytes], raw[src:src+rowBytes])
			}
		}
	}
	return nil
}
