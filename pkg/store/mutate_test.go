package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/container"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/voxel"
)

func TestFlushMemoryWritesContainer(t *testing.T) {
	base := filepath.Join(t.TempDir(), "vol")
	sh := voxel.Shape{Rows: 3, Cols: 3, Slices: 1, Frames: 2}
	buf := voxel.NewBuffer(sh, voxel.ElemUint16)
	buf.Fill(5)

	s, err := New(base, buf, Options{})
	require.NoError(t, err)
	assert.True(t, s.IsDirty())

	require.NoError(t, s.Flush())
	assert.False(t, s.IsDirty())

	h, err := container.Probe(base + ".dat")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, uint64(3), h.Rows)
	assert.Equal(t, uint64(16), h.Bits)
	assert.Equal(t, h.Shape(), sh)

	fi, err := os.Stat(base + ".dat")
	require.NoError(t, err)
	assert.Equal(t, container.DataOffset+h.DataSize(), fi.Size())
}

func TestFlushMappedClearsDirty(t *testing.T) {
	sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 2}
	s, _ := newFrameIndexed(t, sh)

	val := voxel.NewBuffer(sh.WithFrames(1), voxel.ElemUint8)
	val.Fill(9)
	require.NoError(t, s.Set(val, voxel.All(), voxel.All(), voxel.All(), voxel.At(0)))
	require.True(t, s.IsDirty())

	require.NoError(t, s.Flush())
	assert.False(t, s.IsDirty())
}

func TestCrop(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		sh := voxel.Shape{Rows: 6, Cols: 6, Slices: 1, Frames: 2}
		buf := voxel.NewBuffer(sh, voxel.ElemUint8)
		for r := 0; r < 6; r++ {
			for c := 0; c < 6; c++ {
				buf.SetValue(r, c, 0, 0, float64(10*r+c))
			}
		}
		s, err := New(filepath.Join(t.TempDir(), "vol"), buf, Options{})
		require.NoError(t, err)

		require.NoError(t, s.Crop(1, 4, 2, 5))
		got, err := s.Shape()
		require.NoError(t, err)
		assert.Equal(t, voxel.Shape{Rows: 3, Cols: 3, Slices: 1, Frames: 2}, got)

		sub, err := s.Get(voxel.All(), voxel.All(), voxel.All(), voxel.At(0))
		require.NoError(t, err)
		assert.Equal(t, 12.0, sub.Value(0, 0, 0, 0))
		assert.Equal(t, 34.0, sub.Value(2, 2, 0, 0))
	})

	t.Run("MappedRewritesContainer", func(t *testing.T) {
		sh := voxel.Shape{Rows: 6, Cols: 6, Slices: 1, Frames: 3}
		s, base := newFrameIndexed(t, sh)

		require.NoError(t, s.Crop(0, 2, 0, 2))
		got, err := s.Shape()
		require.NoError(t, err)
		assert.Equal(t, voxel.Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 3}, got)

		// Header on disk tracks the new geometry.
		h, err := container.Probe(base + ".dat")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), h.Rows)
		assert.Equal(t, uint64(2), h.Cols)
		assert.Equal(t, uint64(3), h.Frames)

		sub, err := s.Get(voxel.All(), voxel.All(), voxel.All(), voxel.At(2))
		require.NoError(t, err)
		assert.Equal(t, 2.0, sub.Value(1, 1, 0, 0))
	})

	t.Run("MalformedRect", func(t *testing.T) {
		sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 1}
		s, _ := newFrameIndexed(t, sh)
		assert.ErrorIs(t, s.Crop(2, 2, 0, 4), voxel.ErrInput)
		assert.ErrorIs(t, s.Crop(0, 5, 0, 4), voxel.ErrInput)
	})
}

func TestResize(t *testing.T) {
	t.Run("MemoryGrow", func(t *testing.T) {
		sh := voxel.Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 1}
		buf := voxel.NewBuffer(sh, voxel.ElemUint8)
		buf.Fill(4)
		s, err := New(filepath.Join(t.TempDir(), "vol"), buf, Options{})
		require.NoError(t, err)

		require.NoError(t, s.Resize(voxel.Shape{Rows: 3, Cols: 3, Slices: 1, Frames: 2}))
		got, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, 4.0, got.Value(1, 1, 0, 0)) // preserved overlap
		assert.Equal(t, 0.0, got.Value(2, 2, 0, 0)) // zero-filled growth
		assert.Equal(t, 0.0, got.Value(0, 0, 0, 1))
	})

	t.Run("MappedGrowFrames", func(t *testing.T) {
		sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 2}
		s, base := newFrameIndexed(t, sh)

		want := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 5}
		require.NoError(t, s.Resize(want))

		got, err := s.Shape()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// Header and file length agree with the grown frame axis.
		h, err := container.Probe(base + ".dat")
		require.NoError(t, err)
		assert.Equal(t, uint64(5), h.Frames)
		fi, err := os.Stat(base + ".dat")
		require.NoError(t, err)
		assert.Equal(t, container.DataOffset+h.DataSize(), fi.Size())

		buf, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, 1.0, buf.Value(0, 0, 0, 1)) // preserved
		assert.Equal(t, 0.0, buf.Value(0, 0, 0, 4)) // appended zero frame
	})

	t.Run("MappedShrink", func(t *testing.T) {
		sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 4}
		s, base := newFrameIndexed(t, sh)

		want := voxel.Shape{Rows: 2, Cols: 4, Slices: 1, Frames: 2}
		require.NoError(t, s.Resize(want))

		h, err := container.Probe(base + ".dat")
		require.NoError(t, err)
		assert.Equal(t, want, h.Shape())

		buf, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, want, buf.Shape)
		assert.Equal(t, 1.0, buf.Value(1, 3, 0, 1))
	})

	t.Run("SameShapeIsNoOp", func(t *testing.T) {
		sh := voxel.Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 1}
		s, _ := newFrameIndexed(t, sh)
		require.NoError(t, s.Resize(sh))
		assert.False(t, s.IsDirty())
	})
}

func TestSetBackendMode(t *testing.T) {
	sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 3}
	s, base := newFrameIndexed(t, sh)

	orig, err := s.Get()
	require.NoError(t, err)

	t.Run("MappedToMemory", func(t *testing.T) {
		require.NoError(t, s.SetBackendMode(int(backend.ModeMemory)))
		assert.Equal(t, backend.ModeMemory, s.Mode())
		assert.True(t, s.IsDirty())

		got, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, orig.Data, got.Data)
	})

	t.Run("SameModeIsNoOp", func(t *testing.T) {
		require.NoError(t, s.SetBackendMode(int(backend.ModeMemory)))
		assert.Equal(t, backend.ModeMemory, s.Mode())
	})

	t.Run("MemoryBackToMapped", func(t *testing.T) {
		require.NoError(t, s.SetBackendMode(int(backend.ModeMapped)))
		assert.Equal(t, backend.ModeMapped, s.Mode())

		got, err := s.Get()
		require.NoError(t, err)
		assert.Equal(t, orig.Data, got.Data)

		h, err := container.Probe(base + ".dat")
		require.NoError(t, err)
		assert.Equal(t, sh, h.Shape())
	})

	t.Run("UnknownMode", func(t *testing.T) {
		assert.ErrorIs(t, s.SetBackendMode(42), voxel.ErrInput)
	})
}

func TestStoreConvert(t *testing.T) {
	sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 3}
	s, _ := newFrameIndexed(t, sh)
	destBase := filepath.Join(t.TempDir(), "copy")

	mode := backend.ModeMapped
	dst, err := s.Convert(destBase, convert.Options{Mode: &mode})
	require.NoError(t, err)
	mp := dst.(*mapped.Backend)
	defer mp.Unlink()

	assert.Equal(t, destBase+".dat", mp.Path())
	got, err := mp.ReadFrames(0, sh.Frames)
	require.NoError(t, err)
	want, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, want.Data, got.Data)

	// The source store keeps its own backing untouched.
	assert.Equal(t, backend.ModeMapped, s.Mode())
}

func TestOnInvalidate(t *testing.T) {
	sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 1, Frames: 2}
	s, _ := newFrameIndexed(t, sh)

	fired := 0
	s.OnInvalidate(func() { fired++ })

	_, err := s.Shape() // resolve metadata first
	require.NoError(t, err)

	require.NoError(t, s.Crop(0, 2, 0, 2))
	assert.Equal(t, 1, fired)

	require.NoError(t, s.Resize(voxel.Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 3}))
	assert.Equal(t, 2, fired)

	require.NoError(t, s.SetBackendMode(int(backend.ModeMemory)))
	assert.Equal(t, 3, fired)

	s.OnInvalidate(nil)
	require.NoError(t, s.Crop(0, 1, 0, 1))
	assert.Equal(t, 3, fired)
}
