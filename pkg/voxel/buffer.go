package voxel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer holds a 4-D pixel array as raw bytes plus the shape and element
// type needed to interpret them. The byte layout matches the container data
// region exactly (little-endian elements, row axis fastest, frames
// contiguous), so a Buffer can be written to or read from a container
// without reshuffling.
//
// Scalar access goes through float64, which represents every supported
// element type without loss. Stores saturate unsigned integer types instead
// of wrapping.
type Buffer struct {
	Shape Shape
	Elem  ElemType
	Data  []byte
}

// NewBuffer allocates a zero-filled buffer for the given shape and element
// type.
func NewBuffer(shape Shape, elem ElemType) *Buffer {
	return &Buffer{
		Shape: shape,
		Elem:  elem,
		Data:  make([]byte, shape.Bytes(elem)),
	}
}

// BufferOver wraps existing bytes without copying. The byte length must
// match the shape and element type exactly.
func BufferOver(shape Shape, elem ElemType, data []byte) (*Buffer, error) {
	if int64(len(data)) != shape.Bytes(elem) {
		return nil, fmt.Errorf("%w: buffer size %d does not match shape %s of %s",
			ErrInput, len(data), shape, elem)
	}
	return &Buffer{Shape: shape, Elem: elem, Data: data}, nil
}

// Clone returns a deep copy with freshly owned bytes.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Buffer{Shape: b.Shape, Elem: b.Elem, Data: data}
}

// At returns the element at flat index i as a float64.
func (b *Buffer) At(i int) float64 {
	w := b.Elem.Width()
	off := i * w
	switch b.Elem {
	case ElemUint8:
		return float64(b.Data[off])
	case ElemUint16:
		return float64(binary.LittleEndian.Uint16(b.Data[off:]))
	case ElemFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b.Data[off:])))
	case ElemFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b.Data[off:]))
	default:
		return 0
	}
}

// SetAt stores v at flat index i, saturating unsigned integer types.
func (b *Buffer) SetAt(i int, v float64) {
	w := b.Elem.Width()
	off := i * w
	switch b.Elem {
	case ElemUint8:
		b.Data[off] = uint8(clamp(v, 0, math.MaxUint8))
	case ElemUint16:
		binary.LittleEndian.PutUint16(b.Data[off:], uint16(clamp(v, 0, math.MaxUint16)))
	case ElemFloat32:
		binary.LittleEndian.PutUint32(b.Data[off:], math.Float32bits(float32(v)))
	case ElemFloat64:
		binary.LittleEndian.PutUint64(b.Data[off:], math.Float64bits(v))
	}
}

// Value returns the element at (r, c, s, f).
func (b *Buffer) Value(r, c, s, f int) float64 {
	return b.At(b.Shape.Index(r, c, s, f))
}

// SetValue stores v at (r, c, s, f).
func (b *Buffer) SetValue(r, c, s, f int, v float64) {
	b.SetAt(b.Shape.Index(r, c, s, f), v)
}

// Frame returns a view of frame f sharing the underlying bytes. Frames are
// contiguous, so this is a plain reslice.
func (b *Buffer) Frame(f int) *Buffer {
	fb := b.Shape.FrameBytes(b.Elem)
	off := int64(f) * fb
	return &Buffer{
		Shape: b.Shape.WithFrames(1),
		Elem:  b.Elem,
		Data:  b.Data[off : off+fb],
	}
}

// FrameRange returns a view of frames [first, stop) sharing the underlying
// bytes.
func (b *Buffer) FrameRange(first, stop int) *Buffer {
	fb := b.Shape.FrameBytes(b.Elem)
	return &Buffer{
		Shape: b.Shape.WithFrames(stop - first),
		Elem:  b.Elem,
		Data:  b.Data[int64(first)*fb : int64(stop)*fb],
	}
}

// SubCopy copies the region selected by per-axis spans into a new buffer.
// The frame axis of the receiver is copied whole; frame subsetting happens
// before transforms and therefore before SubCopy is reached.
func (b *Buffer) SubCopy(rowSp, colSp, sliceSp Span) (*Buffer, error) {
	r0, r1, err := rowSp.Resolve(b.Shape.Rows)
	if err != nil {
		return nil, err
	}
	c0, c1, err := colSp.Resolve(b.Shape.Cols)
	if err != nil {
		return nil, err
	}
	s0, s1, err := sliceSp.Resolve(b.Shape.Slices)
	if err != nil {
		return nil, err
	}
	if rowSp.IsFull(b.Shape.Rows) && colSp.IsFull(b.Shape.Cols) && sliceSp.IsFull(b.Shape.Slices) {
		return b, nil
	}

	out := NewBuffer(Shape{
		Rows:   r1 - r0,
		Cols:   c1 - c0,
		Slices: s1 - s0,
		Frames: b.Shape.Frames,
	}, b.Elem)

	w := b.Elem.Width()
	rowBytes := (r1 - r0) * w
	for f := 0; f < b.Shape.Frames; f++ {
		for s := s0; s < s1; s++ {
			for c := c0; c < c1; c++ {
				src := b.Shape.Index(r0, c, s, f) * w
				dst := out.Shape.Index(0, c-c0, s-s0, f) * w
				copy(out.Data[dst:dst+rowBytes], b.Data[src:src+rowBytes])
			}
		}
	}
	return out, nil
}

// Fill sets every element to v.
func (b *Buffer) Fill(v float64) {
	for i := 0; i < b.Shape.Elems(); i++ {
		b.SetAt(i, v)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
