// Package transform applies optional per-frame transformations at read
// time. A transform is never persisted: the container always holds the
// untransformed on-disk representation and the transform is re-derived on
// every read.
package transform

import (
	"fmt"

	"github.com/marmos91/voxstream/pkg/voxel"
)

// Transform maps one frame to another. The output may differ from the input
// in shape and element type; the store derives output metadata by probing
// one transformed frame.
type Transform interface {
	// Apply transforms a single-frame buffer. Implementations must not
	// modify the input.
	Apply(frame *voxel.Buffer) (*voxel.Buffer, error)
}

// Func adapts a pure per-frame function.
type Func struct {
	// Name identifies the function in logs.
	Name string
	Fn   func(*voxel.Buffer) (*voxel.Buffer, error)
}

func (f Func) Apply(frame *voxel.Buffer) (*voxel.Buffer, error) {
	out, err := f.Fn(frame)
	if err != nil {
		return nil, fmt.Errorf("transform %q: %w", f.Name, err)
	}
	return out, nil
}

// ApplyAll transforms every frame of buf.
//
// For a multi-frame buffer the first frame is transformed, its shape sizes
// the output allocation, and the remaining frames overwrite their blocks in
// place. A single-frame buffer is transformed directly.
func ApplyAll(buf *voxel.Buffer, t Transform) (*voxel.Buffer, error) {
	if t == nil {
		return buf, nil
	}
	if buf.Shape.Frames == 1 {
		return t.Apply(buf)
	}

	first, err := t.Apply(buf.Frame(0))
	if err != nil {
		return nil, err
	}

	out := voxel.NewBuffer(first.Shape.WithFrames(buf.Shape.Frames), first.Elem)
	copy(out.Frame(0).Data, first.Data)
	for f := 1; f < buf.Shape.Frames; f++ {
		tf, err := t.Apply(buf.Frame(f))
		if err != nil {
			return nil, err
		}
		if tf.Shape != first.Shape || tf.Elem != first.Elem {
			return nil, fmt.Errorf("%w: transform output changed from %s %s to %s %s between frames",
				voxel.ErrInput, first.Shape, first.Elem, tf.Shape, tf.Elem)
		}
		copy(out.Frame(f).Data, tf.Data)
	}
	return out, nil
}
