// Package store is the single entry point callers use to work with a 4-D
// pixel dataset. A Store binds a basename on disk to one of four
// interchangeable backend strategies and exposes identical indexing
// semantics over all of them, so callers never need to know which backing
// is active.
package store

import (
	"fmt"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/backend/memory"
	"github.com/marmos91/voxstream/pkg/backend/stream"
	"github.com/marmos91/voxstream/pkg/backend/tiled"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/resolve"
	"github.com/marmos91/voxstream/pkg/sidecar"
	"github.com/marmos91/voxstream/pkg/transform"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// metadata is the group of derived fields computed as a unit from one
// probe. A nil pointer means unresolved; shape and element type are never
// partially filled.
type metadata struct {
	shape voxel.Shape
	elem  voxel.ElemType
}

// Store is the central entity: a 4-D pixel array with a switchable
// backing strategy.
type Store struct {
	res      *resolve.Resolution
	be       backend.Backend
	tr       transform.Transform
	chunkMiB float64
	locked   bool
	dirty    bool

	meta *metadata

	// onInvalidate, when set, runs every time the derived metadata group
	// is invalidated. It replaces an implicit parent back-reference with
	// explicit observer registration.
	onInvalidate func()
}

// Open resolves path and constructs a store over the best (or requested)
// backend. Construction either opens a mapping right away or defers the
// decoder open until first access; shape and element type stay unresolved
// until probed.
func Open(path string, opts Options) (*Store, error) {
	mode, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	res, err := resolve.ResolveSource(path, false, opts.IgnoreCached)
	if err != nil {
		return nil, err
	}

	s := &Store{
		res:      res,
		tr:       opts.Transform,
		chunkMiB: opts.ChunkMiB,
	}
	if err := s.attach(mode); err != nil {
		return nil, err
	}
	return s, nil
}

// New constructs an in-memory store over an existing array. basename names
// the sibling files used when the store is later flushed or converted.
func New(basename string, buf *voxel.Buffer, opts Options) (*Store, error) {
	if _, err := opts.normalize(); err != nil {
		return nil, err
	}
	if !buf.Shape.Valid() {
		return nil, fmt.Errorf("%w: array shape %s", voxel.ErrInput, buf.Shape)
	}
	res, err := resolve.Resolve(basename, true)
	if err != nil {
		return nil, err
	}
	return &Store{
		res:      res,
		be:       memory.New(buf),
		tr:       opts.Transform,
		chunkMiB: opts.ChunkMiB,
		dirty:    true,
	}, nil
}

// attach builds the backend for the current resolution, honouring a forced
// mode. A forced mode whose required file is missing is a hard error.
func (s *Store) attach(mode *backend.Mode) error {
	auto := mode == nil
	var want backend.Mode
	if !auto {
		want = *mode
	}

	switch {
	case auto && s.res.Kind == resolve.KindContainer,
		!auto && want == backend.ModeMapped:
		be := mapped.New(s.res.ContainerPath())
		if err := be.Link(); err != nil {
			return err
		}
		s.be = be

	case auto && s.res.Kind == resolve.KindTiled,
		!auto && want == backend.ModeTiled:
		if s.res.Kind != resolve.KindTiled {
			return fmt.Errorf("%w: tiled backend requested but source %q is %s",
				voxel.ErrInput, s.res.Source, s.res.Kind)
		}
		be, err := s.newTiled()
		if err != nil {
			return err
		}
		s.be = be

	case auto && s.res.Kind == resolve.KindStream,
		!auto && want == backend.ModeStream:
		if s.res.Kind != resolve.KindStream {
			return fmt.Errorf("%w: stream backend requested but source %q is %s",
				voxel.ErrInput, s.res.Source, s.res.Kind)
		}
		s.be = stream.New(s.res.Source)

	case !auto && want == backend.ModeMemory:
		src, err := s.sourceBackend()
		if err != nil {
			return err
		}
		mem := backend.ModeMemory
		dst, err := convert.Convert(src, s.res.Basename, convert.Options{
			Mode:     &mem,
			ChunkMiB: s.chunkMiB,
		})
		if err != nil {
			return err
		}
		if src != dst {
			src.Unlink()
		}
		s.be = dst

	default:
		return fmt.Errorf("%w: cannot attach backend for source %q", voxel.ErrInput, s.res.Source)
	}
	return nil
}

// sourceBackend opens a read backend over the resolved source without
// changing the store, used as converter input.
func (s *Store) sourceBackend() (backend.Backend, error) {
	switch s.res.Kind {
	case resolve.KindContainer:
		return mapped.New(s.res.ContainerPath()), nil
	case resolve.KindTiled:
		return s.newTiled()
	case resolve.KindStream:
		return stream.New(s.res.Source), nil
	default:
		return nil, fmt.Errorf("%w: source kind %s", voxel.ErrInput, s.res.Kind)
	}
}

func (s *Store) newTiled() (*tiled.Backend, error) {
	ext := s.res.Source[len(s.res.Basename):]
	parts, err := resolve.DetectParts(s.res.Basename, ext)
	if err != nil {
		return nil, err
	}
	if parts == nil {
		return tiled.New(s.res.Source)
	}
	paths := make([]string, len(parts))
	for i, p := range parts {
		paths[i] = p.Path
	}
	logger.Debug("tiled dataset %q spans %d part files", s.res.Basename, len(paths))
	return tiled.New(paths...)
}

// Basename returns the path the store's sibling files derive from.
func (s *Store) Basename() string { return s.res.Basename }

// Mode returns the active backend mode.
func (s *Store) Mode() backend.Mode { return s.be.Mode() }

// ChunkMiB returns the memory budget for one materialized pass.
func (s *Store) ChunkMiB() float64 { return s.chunkMiB }

// Transform returns the read-time transform, or nil.
func (s *Store) Transform() transform.Transform { return s.tr }

// SetTransform installs (or clears) the read-time transform.
func (s *Store) SetTransform(t transform.Transform) error {
	if s.locked {
		return voxel.ErrLocked
	}
	s.tr = t
	return nil
}

// SetChunkMiB changes the chunk budget.
func (s *Store) SetChunkMiB(mib float64) error {
	if s.locked {
		return voxel.ErrLocked
	}
	if mib <= 0 {
		return fmt.Errorf("%w: chunk budget %.2f MiB must be positive", voxel.ErrInput, mib)
	}
	s.chunkMiB = mib
	return nil
}

// Lock prevents every mutating operation until Unlock.
func (s *Store) Lock() { s.locked = true }

// Unlock lifts the mutation guard. Always permitted.
func (s *Store) Unlock() { s.locked = false }

// IsLocked reports the mutation guard state.
func (s *Store) IsLocked() bool { return s.locked }

// IsDirty reports whether unflushed mutations exist.
func (s *Store) IsDirty() bool { return s.dirty }

// IsLinked reports whether the backend currently holds its resource.
func (s *Store) IsLinked() bool { return s.be.IsLinked() }

// Link opens (or reopens) the backend resource. Idempotent.
func (s *Store) Link() error { return s.be.Link() }

// Unlink releases the backend resource, keeping enough state to relink on
// next access. Idempotent.
func (s *Store) Unlink() error { return s.be.Unlink() }

// Close flushes nothing and releases the backend handle. The handle is
// released before any buffer or view aliasing it can be dropped, so mapped
// views must not be used after Close.
func (s *Store) Close() error { return s.be.Unlink() }

// OnInvalidate registers a callback run whenever derived metadata is
// invalidated. Passing nil clears it.
func (s *Store) OnInvalidate(fn func()) { s.onInvalidate = fn }

// ensureMeta links the backend if needed and fills the derived metadata
// group atomically from one probe.
func (s *Store) ensureMeta() error {
	if s.meta != nil {
		return nil
	}
	if err := s.be.Link(); err != nil {
		return err
	}
	s.meta = &metadata{
		shape: s.be.Shape(),
		elem:  s.be.ElemType(),
	}
	return nil
}

// invalidateMeta drops the whole derived group and notifies the observer.
func (s *Store) invalidateMeta() {
	s.meta = nil
	if s.onInvalidate != nil {
		s.onInvalidate()
	}
}

// Shape probes (if necessary) and returns the canonical dimensions.
func (s *Store) Shape() (voxel.Shape, error) {
	if err := s.ensureMeta(); err != nil {
		return voxel.Shape{}, err
	}
	return s.meta.shape, nil
}

// ElemType probes (if necessary) and returns the element type.
func (s *Store) ElemType() (voxel.ElemType, error) {
	if err := s.ensureMeta(); err != nil {
		return voxel.ElemUnknown, err
	}
	return s.meta.elem, nil
}

// SetBasename re-points the store at a different basename. The new target
// must resolve before anything is mutated; on failure the store is left
// exactly as it was (no partial relink).
func (s *Store) SetBasename(path string) error {
	if s.locked {
		return voxel.ErrLocked
	}
	res, err := resolve.Resolve(path, false)
	if err != nil {
		return err
	}
	if err := s.be.Unlink(); err != nil {
		return err
	}
	s.res = res
	s.invalidateMeta()
	return s.attach(nil)
}

// ReadExtra reads auxiliary metadata from the sidecar. With no keys every
// entry is returned. A missing sidecar is a graceful no-op yielding an
// empty map.
func (s *Store) ReadExtra(keys ...string) (map[string][]byte, error) {
	path := s.res.SidecarPath()
	if !sidecar.Exists(path) {
		logger.Warn("sidecar %q not found, returning no extra metadata", path)
		return map[string][]byte{}, nil
	}
	return sidecar.Read(path, keys...)
}

// WriteExtra stores auxiliary metadata in the sidecar. With cleanRewrite
// set the sidecar afterwards holds exactly kv.
func (s *Store) WriteExtra(kv map[string][]byte, cleanRewrite bool) error {
	if s.locked {
		return voxel.ErrLocked
	}
	return sidecar.Write(s.res.SidecarPath(), kv, cleanRewrite)
}

// ListExtraKeys lists the keys present in the sidecar.
func (s *Store) ListExtraKeys() ([]string, error) {
	return sidecar.ListKeys(s.res.SidecarPath())
}

// Clone returns an independent store over the same dataset. Owned buffers
// are deep-copied, logically immutable configuration (basename, transform,
// chunk budget) is shared, and derived or cached state is reset: the clone
// starts unlinked (except for in-memory data, which it owns outright) with
// unresolved metadata.
func (s *Store) Clone() (*Store, error) {
	resCopy := *s.res
	c := &Store{
		res:      &resCopy,
		tr:       s.tr,
		chunkMiB: s.chunkMiB,
		locked:   s.locked,
	}

	switch be := s.be.(type) {
	case *memory.Backend:
		c.be = memory.New(be.Buffer().Clone())
		c.dirty = s.dirty
	case *mapped.Backend:
		c.be = mapped.New(be.Path())
	case *tiled.Backend:
		nb, err := tiled.New(be.Paths()...)
		if err != nil {
			return nil, err
		}
		c.be = nb
	case *stream.Backend:
		c.be = stream.New(be.Path())
	default:
		return nil, fmt.Errorf("%w: cannot clone backend %s", voxel.ErrInput, s.be.Mode())
	}
	return c, nil
}
