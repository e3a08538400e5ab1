package store

import (
	"fmt"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/backend/memory"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/transform"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Get reads the region selected by up to four per-axis spans in canonical
// (row, column, slice, frame) order. Omitted trailing spans default to the
// whole axis.
//
// With a transform set, or over one of the two read-only decoder backends,
// all four spans must be given explicitly: those paths cannot cheaply
// support ambiguous partial addressing. Frame subsetting happens first;
// the transform applies per frame before the remaining row, column and
// slice sub-indexing, because a transform is defined over an image, not an
// arbitrary index shape.
//
// When the requested fraction of frames times the total data size exceeds
// the chunk budget, a size warning is logged before materializing. Reads
// never mutate the backing store.
func (s *Store) Get(spans ...voxel.Span) (*voxel.Buffer, error) {
	if len(spans) > 4 {
		return nil, fmt.Errorf("%w: got %d index spans, want at most 4", voxel.ErrInput, len(spans))
	}

	if s.tr != nil || s.be.Mode().Streaming() {
		if len(spans) < 4 {
			return nil, fmt.Errorf("%w: %s reads require all four indices explicitly",
				voxel.ErrInput, s.describeRestriction())
		}
		for i, sp := range spans {
			if !sp.Explicit() {
				return nil, fmt.Errorf("%w: %s reads require an explicit span for axis %d",
					voxel.ErrInput, s.describeRestriction(), i)
			}
		}
	}

	var sp [4]voxel.Span
	copy(sp[:], spans)

	if err := s.ensureMeta(); err != nil {
		return nil, err
	}
	shape := s.meta.shape

	f0, f1, err := sp[3].Resolve(shape.Frames)
	if err != nil {
		return nil, err
	}

	fraction := float64(f1-f0) / float64(shape.Frames)
	totalMiB := float64(shape.Bytes(s.meta.elem)) / convert.MiB
	if fraction*totalMiB > s.chunkMiB {
		logger.Warn("reading %d of %d frames materializes %.1f MiB, above the %.1f MiB chunk budget",
			f1-f0, shape.Frames, fraction*totalMiB, s.chunkMiB)
	}

	buf, err := s.be.ReadFrames(f0, f1)
	if err != nil {
		return nil, err
	}
	buf, err = transform.ApplyAll(buf, s.tr)
	if err != nil {
		return nil, err
	}
	return buf.SubCopy(sp[0], sp[1], sp[2])
}

func (s *Store) describeRestriction() string {
	if s.tr != nil {
		return "transformed"
	}
	return s.be.Mode().String() + " backend"
}

// Set overwrites the region selected by the spans with val. Only the
// in-memory and mapped backends are writable; a set with a transform
// installed fails immediately because it is ambiguous which space the
// write targets. A successful set marks the store dirty.
func (s *Store) Set(val *voxel.Buffer, spans ...voxel.Span) error {
	if s.locked {
		return voxel.ErrLocked
	}
	if s.tr != nil {
		return fmt.Errorf("%w: cannot write through a transform", voxel.ErrInput)
	}
	wb, ok := s.be.(backend.Writable)
	if !ok {
		return voxel.ErrReadOnly
	}
	if len(spans) > 4 {
		return fmt.Errorf("%w: got %d index spans, want at most 4", voxel.ErrInput, len(spans))
	}
	var sp [4]voxel.Span
	copy(sp[:], spans)

	if err := s.ensureMeta(); err != nil {
		return err
	}
	shape := s.meta.shape

	r0, r1, err := sp[0].Resolve(shape.Rows)
	if err != nil {
		return err
	}
	c0, c1, err := sp[1].Resolve(shape.Cols)
	if err != nil {
		return err
	}
	sl0, sl1, err := sp[2].Resolve(shape.Slices)
	if err != nil {
		return err
	}
	f0, f1, err := sp[3].Resolve(shape.Frames)
	if err != nil {
		return err
	}

	want := voxel.Shape{Rows: r1 - r0, Cols: c1 - c0, Slices: sl1 - sl0, Frames: f1 - f0}
	if val.Shape != want || val.Elem != s.meta.elem {
		return fmt.Errorf("%w: value is %s %s, selection wants %s %s",
			voxel.ErrInput, val.Shape, val.Elem, want, s.meta.elem)
	}

	if sp[0].IsFull(shape.Rows) && sp[1].IsFull(shape.Cols) && sp[2].IsFull(shape.Slices) {
		if err := wb.WriteFrames(f0, val); err != nil {
			return err
		}
		s.dirty = true
		return nil
	}

	view, err := s.mutableView()
	if err != nil {
		return err
	}
	w := s.meta.elem.Width()
	rowBytes := (r1 - r0) * w
	for f := f0; f < f1; f++ {
		for sl := sl0; sl < sl1; sl++ {
			for c := c0; c < c1; c++ {
				src := val.Shape.Index(0, c-c0, sl-sl0, f-f0) * w
				dst := shape.Index(r0, c, sl, f) * w
				copy(view.Data[dst:dst+rowBytes], val.Data[src:src+rowBytes])
			}
		}
	}
	s.dirty = true
	return nil
}

// mutableView returns a buffer aliasing the writable backend's storage.
func (s *Store) mutableView() (*voxel.Buffer, error) {
	switch be := s.be.(type) {
	case *memory.Backend:
		return be.Buffer(), nil
	case *mapped.Backend:
		return be.Buffer()
	default:
		return nil, voxel.ErrReadOnly
	}
}
