package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeLayout(t *testing.T) {
	sh := Shape{Rows: 3, Cols: 4, Slices: 2, Frames: 5}

	t.Run("RowAxisVariesFastest", func(t *testing.T) {
		assert.Equal(t, 0, sh.Index(0, 0, 0, 0))
		assert.Equal(t, 1, sh.Index(1, 0, 0, 0))
		assert.Equal(t, 3, sh.Index(0, 1, 0, 0))
		assert.Equal(t, 12, sh.Index(0, 0, 1, 0))
		assert.Equal(t, 24, sh.Index(0, 0, 0, 1))
	})

	t.Run("FramesAreContiguous", func(t *testing.T) {
		assert.Equal(t, 24, sh.FrameElems())
		assert.Equal(t, 120, sh.Elems())
	})

	t.Run("Bytes", func(t *testing.T) {
		assert.Equal(t, int64(120), sh.Bytes(ElemUint8))
		assert.Equal(t, int64(240), sh.Bytes(ElemUint16))
		assert.Equal(t, int64(960), sh.Bytes(ElemFloat64))
	})
}

func TestElemTypeFromBits(t *testing.T) {
	for bits, want := range map[uint64]ElemType{
		8: ElemUint8, 16: ElemUint16, 32: ElemFloat32, 64: ElemFloat64,
	} {
		got, err := ElemTypeFromBits(bits)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, bits, got.Bits())
	}

	_, err := ElemTypeFromBits(24)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestBufferScalarAccess(t *testing.T) {
	sh := Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 2}

	for _, elem := range []ElemType{ElemUint8, ElemUint16, ElemFloat32, ElemFloat64} {
		t.Run(elem.String(), func(t *testing.T) {
			b := NewBuffer(sh, elem)
			b.SetValue(1, 0, 0, 1, 42)
			assert.Equal(t, 42.0, b.Value(1, 0, 0, 1))
			assert.Equal(t, 0.0, b.Value(0, 0, 0, 0))
		})
	}

	t.Run("Uint8Saturates", func(t *testing.T) {
		b := NewBuffer(sh, ElemUint8)
		b.SetAt(0, 300)
		assert.Equal(t, 255.0, b.At(0))
		b.SetAt(0, -5)
		assert.Equal(t, 0.0, b.At(0))
	})
}

func TestBufferFrameViews(t *testing.T) {
	sh := Shape{Rows: 2, Cols: 3, Slices: 1, Frames: 4}
	b := NewBuffer(sh, ElemUint16)
	for f := 0; f < 4; f++ {
		for i := 0; i < sh.FrameElems(); i++ {
			b.Frame(f).SetAt(i, float64(f*100+i))
		}
	}

	t.Run("FrameSharesBytes", func(t *testing.T) {
		b.Frame(2).SetAt(0, 999)
		assert.Equal(t, 999.0, b.Value(0, 0, 0, 2))
	})

	t.Run("FrameRange", func(t *testing.T) {
		fr := b.FrameRange(1, 3)
		assert.Equal(t, 2, fr.Shape.Frames)
		assert.Equal(t, b.Value(0, 0, 0, 1), fr.Value(0, 0, 0, 0))
	})

	t.Run("CloneIsIndependent", func(t *testing.T) {
		c := b.Clone()
		c.SetAt(0, 7)
		assert.NotEqual(t, c.At(0), b.At(0))
	})
}

func TestBufferSubCopy(t *testing.T) {
	sh := Shape{Rows: 4, Cols: 4, Slices: 2, Frames: 2}
	b := NewBuffer(sh, ElemUint8)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			for s := 0; s < 2; s++ {
				for f := 0; f < 2; f++ {
					b.SetValue(r, c, s, f, float64(sh.Index(r, c, s, f)%251))
				}
			}
		}
	}

	t.Run("FullSpansReturnSameData", func(t *testing.T) {
		out, err := b.SubCopy(All(), All(), All())
		require.NoError(t, err)
		assert.Equal(t, b.Shape, out.Shape)
	})

	t.Run("SubRegion", func(t *testing.T) {
		out, err := b.SubCopy(Range(1, 3), Range(2, 4), At(1))
		require.NoError(t, err)
		assert.Equal(t, Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 2}, out.Shape)
		assert.Equal(t, b.Value(1, 2, 1, 0), out.Value(0, 0, 0, 0))
		assert.Equal(t, b.Value(2, 3, 1, 1), out.Value(1, 1, 0, 1))
	})

	t.Run("OutOfRangeSpanFails", func(t *testing.T) {
		_, err := b.SubCopy(Range(0, 5), All(), All())
		assert.ErrorIs(t, err, ErrInput)
	})
}

func TestSpanResolve(t *testing.T) {
	t.Run("ImplicitCoversAxis", func(t *testing.T) {
		first, stop, err := All().Resolve(10)
		require.NoError(t, err)
		assert.Equal(t, 0, first)
		assert.Equal(t, 10, stop)
	})

	t.Run("Single", func(t *testing.T) {
		first, stop, err := At(3).Resolve(10)
		require.NoError(t, err)
		assert.Equal(t, 3, first)
		assert.Equal(t, 4, stop)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, _, err := At(10).Resolve(10)
		assert.ErrorIs(t, err, ErrInput)
		_, _, err = Range(3, 3).Resolve(10)
		assert.ErrorIs(t, err, ErrInput)
	})

	t.Run("IsFull", func(t *testing.T) {
		assert.True(t, All().IsFull(5))
		assert.True(t, Range(0, 5).IsFull(5))
		assert.False(t, Range(0, 4).IsFull(5))
	})
}
