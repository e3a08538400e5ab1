package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/voxstream/pkg/voxel"
)

func TestApplyAll(t *testing.T) {
	sh := voxel.Shape{Rows: 2, Cols: 2, Slices: 1, Frames: 3}
	buf := voxel.NewBuffer(sh, voxel.ElemUint8)
	for f := 0; f < sh.Frames; f++ {
		buf.Frame(f).Fill(float64(f + 1))
	}

	t.Run("NilIsPassthrough", func(t *testing.T) {
		out, err := ApplyAll(buf, nil)
		require.NoError(t, err)
		assert.Same(t, buf, out)
	})

	t.Run("PerFrame", func(t *testing.T) {
		double := Func{Name: "double", Fn: func(fr *voxel.Buffer) (*voxel.Buffer, error) {
			out := fr.Clone()
			for i := range out.Data {
				out.SetAt(i, fr.At(i)*2)
			}
			return out, nil
		}}
		out, err := ApplyAll(buf, double)
		require.NoError(t, err)
		assert.Equal(t, sh, out.Shape)
		for f := 0; f < sh.Frames; f++ {
			assert.Equal(t, float64((f+1)*2), out.Value(0, 0, 0, f))
		}
		// Input untouched.
		assert.Equal(t, 1.0, buf.Value(0, 0, 0, 0))
	})

	t.Run("ShapeChange", func(t *testing.T) {
		crop := Func{Name: "crop", Fn: func(fr *voxel.Buffer) (*voxel.Buffer, error) {
			return fr.SubCopy(voxel.At(0), voxel.All(), voxel.All())
		}}
		out, err := ApplyAll(buf, crop)
		require.NoError(t, err)
		assert.Equal(t, voxel.Shape{Rows: 1, Cols: 2, Slices: 1, Frames: 3}, out.Shape)
		assert.Equal(t, 3.0, out.Value(0, 1, 0, 2))
	})

	t.Run("InconsistentOutputFails", func(t *testing.T) {
		n := 0
		flaky := Func{Name: "flaky", Fn: func(fr *voxel.Buffer) (*voxel.Buffer, error) {
			n++
			if n == 2 {
				return fr.SubCopy(voxel.At(0), voxel.All(), voxel.All())
			}
			return fr.Clone(), nil
		}}
		_, err := ApplyAll(buf, flaky)
		assert.ErrorIs(t, err, voxel.ErrInput)
	})

	t.Run("FuncErrorIsNamed", func(t *testing.T) {
		boom := Func{Name: "boom", Fn: func(*voxel.Buffer) (*voxel.Buffer, error) {
			return nil, errors.New("bad frame")
		}}
		_, err := ApplyAll(buf, boom)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"boom"`)
	})
}

func TestAffine(t *testing.T) {
	sh := voxel.Shape{Rows: 4, Cols: 4, Slices: 2, Frames: 1}
	frame := voxel.NewBuffer(sh, voxel.ElemUint16)
	for s := 0; s < sh.Slices; s++ {
		for c := 0; c < sh.Cols; c++ {
			for r := 0; r < sh.Rows; r++ {
				frame.SetValue(r, c, s, 0, float64(100*s+10*r+c))
			}
		}
	}

	t.Run("Identity", func(t *testing.T) {
		out, err := Identity().Apply(frame)
		require.NoError(t, err)
		assert.Equal(t, frame.Data, out.Data)
	})

	t.Run("Translate", func(t *testing.T) {
		// Output (r,c) samples source (r+1,c), shifting the image up one row.
		shift := Affine{A: [6]float64{1, 0, 1, 0, 1, 0}}
		out, err := shift.Apply(frame)
		require.NoError(t, err)
		assert.Equal(t, frame.Value(1, 2, 0, 0), out.Value(0, 2, 0, 0))
		assert.Equal(t, frame.Value(3, 0, 1, 0), out.Value(2, 0, 1, 0))
		// Last output row falls outside the source and reads zero.
		assert.Equal(t, 0.0, out.Value(3, 1, 0, 0))
	})
}

func TestDistortion(t *testing.T) {
	sh := voxel.Shape{Rows: 5, Cols: 5, Slices: 1, Frames: 1}
	frame := voxel.NewBuffer(sh, voxel.ElemFloat32)
	for c := 0; c < sh.Cols; c++ {
		for r := 0; r < sh.Rows; r++ {
			frame.SetValue(r, c, 0, 0, float64(10*r+c))
		}
	}

	t.Run("ZeroCoefficientsAreIdentity", func(t *testing.T) {
		d := Distortion{CenterRow: -1, CenterCol: -1}
		out, err := d.Apply(frame)
		require.NoError(t, err)
		assert.Equal(t, frame.Data, out.Data)
	})

	t.Run("CenterPixelIsFixedPoint", func(t *testing.T) {
		d := Distortion{K1: 0.3, CenterRow: -1, CenterCol: -1}
		out, err := d.Apply(frame)
		require.NoError(t, err)
		assert.Equal(t, frame.Value(2, 2, 0, 0), out.Value(2, 2, 0, 0))
	})

	t.Run("PositiveK1PullsEdgesOutward", func(t *testing.T) {
		d := Distortion{K1: 0.5, CenterRow: -1, CenterCol: -1}
		out, err := d.Apply(frame)
		require.NoError(t, err)
		// The corner samples beyond the source extent and reads zero.
		assert.Equal(t, 0.0, out.Value(0, 0, 0, 0))
	})
}
