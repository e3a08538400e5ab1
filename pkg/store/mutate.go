package store

import (
	"fmt"
	"os"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/backend/memory"
	"github.com/marmos91/voxstream/pkg/container"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/transform"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// Flush persists pending state. For a mapped backend the header is
// rewritten first whenever the store is dirty — even when the shape is
// otherwise up to date, so timestamp-sensitive replication tools observe
// the update — and the mapping is synced. For an in-memory backend the
// whole array is written out as a container, header first. Decoder
// backends have nothing to persist; flushing them is a no-op.
func (s *Store) Flush() error {
	if s.locked {
		return voxel.ErrLocked
	}
	switch be := s.be.(type) {
	case *mapped.Backend:
		if err := be.Link(); err != nil {
			return err
		}
		if s.dirty {
			if err := be.RewriteHeader(); err != nil {
				return err
			}
		}
		if err := be.Flush(); err != nil {
			return err
		}
		s.dirty = false
		return nil

	case *memory.Backend:
		if err := s.writeMemoryContainer(be); err != nil {
			return err
		}
		s.dirty = false
		return nil

	default:
		logger.Debug("flush: nothing to persist for %s backend", s.be.Mode())
		return nil
	}
}

// writeMemoryContainer writes the in-memory array to the sibling container
// file. The header goes first; a short data write aborts and leaves the
// destination undefined for the caller to discard.
func (s *Store) writeMemoryContainer(be *memory.Backend) error {
	buf := be.Buffer()
	path := s.res.ContainerPath()
	h := container.NewHeader(buf.Shape, buf.Elem, uint64(backend.ModeMemory))
	if err := container.WriteHeader(path, h); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := f.WriteAt(buf.Data, container.DataOffset)
	if err != nil {
		return err
	}
	if n < len(buf.Data) {
		return fmt.Errorf("%w: container data wrote %d of %d bytes", voxel.ErrShortWrite, n, len(buf.Data))
	}
	return f.Truncate(container.DataOffset + int64(len(buf.Data)))
}

// SetBackendMode switches the backing strategy. The only supported path is
// a full data pass through the converter (for writable targets) or
// reopening the resolved source (for decoder targets); there is no
// in-place conversion.
func (s *Store) SetBackendMode(mode int) error {
	if s.locked {
		return voxel.ErrLocked
	}
	target, err := backend.ModeFromInt(mode)
	if err != nil {
		return err
	}
	if target == s.be.Mode() {
		return nil
	}

	if target.Writable() {
		dst, err := convert.Convert(s.be, s.res.Basename, convert.Options{
			Mode:     &target,
			ChunkMiB: s.chunkMiB,
		})
		if err != nil {
			return err
		}
		if s.be != backend.Backend(dst) {
			s.be.Unlink()
		}
		s.be = dst
		s.dirty = target == backend.ModeMemory
		s.invalidateMeta()
		return nil
	}

	// Decoder targets only reattach to a source of the matching kind; any
	// unflushed data must reach disk first since the decoder cannot carry
	// it.
	if s.dirty {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	if err := s.be.Unlink(); err != nil {
		return err
	}
	if err := s.attach(&target); err != nil {
		return err
	}
	s.invalidateMeta()
	return nil
}

// Convert streams the store's data into a new backing form at destBase
// without changing the store itself. The store's own transform and chunk
// budget apply unless the options override them.
func (s *Store) Convert(destBase string, opts convert.Options) (backend.Writable, error) {
	if opts.ChunkMiB == 0 {
		opts.ChunkMiB = s.chunkMiB
	}
	if opts.Transform == nil {
		opts.Transform = s.tr
	}
	return convert.Convert(s.be, destBase, opts)
}

// Crop keeps only rows [r0, r1) and columns [c0, c1), rewriting the
// backing data. Supported on the writable backends.
func (s *Store) Crop(r0, r1, c0, c1 int) error {
	if s.locked {
		return voxel.ErrLocked
	}
	if err := s.ensureMeta(); err != nil {
		return err
	}
	shape := s.meta.shape
	if r0 < 0 || r1 > shape.Rows || r0 >= r1 || c0 < 0 || c1 > shape.Cols || c0 >= c1 {
		return fmt.Errorf("%w: crop rect rows [%d,%d) cols [%d,%d) malformed for %s",
			voxel.ErrInput, r0, r1, c0, c1, shape)
	}

	switch be := s.be.(type) {
	case *memory.Backend:
		cropped, err := be.Buffer().SubCopy(voxel.Range(r0, r1), voxel.Range(c0, c1), voxel.All())
		if err != nil {
			return err
		}
		be.Replace(cropped.Clone())
		s.dirty = true

	case *mapped.Backend:
		mode := backend.ModeMapped
		crop := transform.Func{
			Name: "crop",
			Fn: func(f *voxel.Buffer) (*voxel.Buffer, error) {
				sub, err := f.SubCopy(voxel.Range(r0, r1), voxel.Range(c0, c1), voxel.All())
				if err != nil {
					return nil, err
				}
				return sub.Clone(), nil
			},
		}
		dst, err := convert.Convert(be, s.res.Basename, convert.Options{
			Transform: crop,
			Mode:      &mode,
			ChunkMiB:  s.chunkMiB,
		})
		if err != nil {
			return err
		}
		s.be = dst

	default:
		return voxel.ErrReadOnly
	}

	s.invalidateMeta()
	return nil
}

// Resize changes the array dimensions, preserving the overlapping region
// and zero-filling growth. Supported on the writable backends. The size
// change forces full metadata recomputation.
func (s *Store) Resize(newShape voxel.Shape) error {
	if s.locked {
		return voxel.ErrLocked
	}
	if !newShape.Valid() {
		return fmt.Errorf("%w: resize target %s", voxel.ErrInput, newShape)
	}
	if err := s.ensureMeta(); err != nil {
		return err
	}
	old := s.meta.shape
	if newShape == old {
		return nil
	}
	elem := s.meta.elem

	switch be := s.be.(type) {
	case *memory.Backend:
		out := voxel.NewBuffer(newShape, elem)
		copyOverlap(out, be.Buffer())
		be.Replace(out)
		s.dirty = true

	case *mapped.Backend:
		if err := s.resizeMapped(be, old, newShape, elem); err != nil {
			return err
		}

	default:
		return voxel.ErrReadOnly
	}

	s.invalidateMeta()
	return nil
}

// resizeMapped streams the overlapping frames into a container of the new
// geometry, then grows the frame axis afterwards if needed.
func (s *Store) resizeMapped(be *mapped.Backend, old, newShape voxel.Shape, elem voxel.ElemType) error {
	mode := backend.ModeMapped
	frameShape := newShape.WithFrames(1)
	fit := transform.Func{
		Name: "resize",
		Fn: func(f *voxel.Buffer) (*voxel.Buffer, error) {
			out := voxel.NewBuffer(frameShape, elem)
			copyOverlap(out, f)
			return out, nil
		},
	}

	overlap := old.Frames
	if newShape.Frames < overlap {
		overlap = newShape.Frames
	}
	dst, err := convert.Convert(be, s.res.Basename, convert.Options{
		Transform: fit,
		Frames:    voxel.Range(0, overlap),
		Mode:      &mode,
		ChunkMiB:  s.chunkMiB,
	})
	if err != nil {
		return err
	}

	if newShape.Frames > overlap {
		// Grow the frame axis: rewrite the header for the final frame
		// count first, then extend the file with zero frames.
		if err := dst.Unlink(); err != nil {
			return err
		}
		path := s.res.ContainerPath()
		h := container.NewHeader(newShape, elem, uint64(backend.ModeMapped))
		if err := container.WriteHeader(path, h); err != nil {
			return err
		}
		if err := os.Truncate(path, container.DataOffset+h.DataSize()); err != nil {
			return err
		}
		dst = mapped.New(path)
		if err := dst.Link(); err != nil {
			return err
		}
	}
	s.be = dst
	return nil
}

// copyOverlap copies the region where src and dst shapes intersect.
// Non-overlapping destination elements keep their existing values.
func copyOverlap(dst, src *voxel.Buffer) {
	rows := min(dst.Shape.Rows, src.Shape.Rows)
	cols := min(dst.Shape.Cols, src.Shape.Cols)
	slices := min(dst.Shape.Slices, src.Shape.Slices)
	frames := min(dst.Shape.Frames, src.Shape.Frames)
	w := dst.Elem.Width()
	rowBytes := rows * w
	for f := 0; f < frames; f++ {
		for sl := 0; sl < slices; sl++ {
			for c := 0; c < cols; c++ {
				sOff := src.Shape.Index(0, c, sl, f) * w
				dOff := dst.Shape.Index(0, c, sl, f) * w
				copy(dst.Data[dOff:dOff+rowBytes], src.Data[sOff:sOff+rowBytes])
			}
		}
	}
}
