package transform

import (
	"math"

	"github.com/marmos91/voxstream/pkg/voxel"
)

// Affine is a 2-D affine warp applied to each slice of a frame with nearest
// neighbour sampling. The matrix maps output pixel coordinates back to
// source coordinates:
//
//	srcRow = A[0]*r + A[1]*c + A[2]
//	srcCol = A[3]*r + A[4]*c + A[5]
//
// Out-of-bounds samples produce zero.
type Affine struct {
	A [6]float64
}

// Identity returns the identity warp.
func Identity() Affine {
	return Affine{A: [6]float64{1, 0, 0, 0, 1, 0}}
}

func (a Affine) Apply(frame *voxel.Buffer) (*voxel.Buffer, error) {
	out := voxel.NewBuffer(frame.Shape, frame.Elem)
	sh := frame.Shape
	for s := 0; s < sh.Slices; s++ {
		for c := 0; c < sh.Cols; c++ {
			for r := 0; r < sh.Rows; r++ {
				sr := int(math.Round(a.A[0]*float64(r) + a.A[1]*float64(c) + a.A[2]))
				sc := int(math.Round(a.A[3]*float64(r) + a.A[4]*float64(c) + a.A[5]))
				if sr < 0 || sr >= sh.Rows || sc < 0 || sc >= sh.Cols {
					continue
				}
				out.SetValue(r, c, s, 0, frame.Value(sr, sc, s, 0))
			}
		}
	}
	return out, nil
}

// Distortion is a radial lens-correction model. For each output pixel at
// normalized radius rd from the distortion center, the source sample is
// taken at radius rd*(1 + K1*rd^2 + K2*rd^4). CenterRow/CenterCol default
// to the frame center when negative.
type Distortion struct {
	K1        float64
	K2        float64
	CenterRow float64
	CenterCol float64
}

func (d Distortion) Apply(frame *voxel.Buffer) (*voxel.Buffer, error) {
	sh := frame.Shape
	cr, cc := d.CenterRow, d.CenterCol
	if cr < 0 {
		cr = float64(sh.Rows-1) / 2
	}
	if cc < 0 {
		cc = float64(sh.Cols-1) / 2
	}
	// Normalize radii by the larger half-extent so K coefficients stay
	// comparable across frame sizes.
	norm := math.Max(math.Max(cr, float64(sh.Rows-1)-cr), math.Max(cc, float64(sh.Cols-1)-cc))
	if norm == 0 {
		norm = 1
	}

	out := voxel.NewBuffer(sh, frame.Elem)
	for s := 0; s < sh.Slices; s++ {
		for c := 0; c < sh.Cols; c++ {
			for r := 0; r < sh.Rows; r++ {
				dr := (float64(r) - cr) / norm
				dc := (float64(c) - cc) / norm
				r2 := dr*dr + dc*dc
				scale := 1 + d.K1*r2 + d.K2*r2*r2
				sr := int(math.Round(cr + dr*scale*norm))
				sc := int(math.Round(cc + dc*scale*norm))
				if sr < 0 || sr >= sh.Rows || sc < 0 || sc >= sh.Cols {
					continue
				}
				out.SetValue(r, c, s, 0, frame.Value(sr, sc, s, 0))
			}
		}
	}
	return out, nil
}
