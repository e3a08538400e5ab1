package voxel

import "fmt"

// Shape is the size of a 4-D pixel array in canonical
// (row, column, slice, frame) axis order.
//
// The flat element layout follows the same nesting order with the row axis
// varying fastest: element (r, c, s, f) lives at flat index
//
//	r + Rows*(c + Cols*(s + Slices*f))
//
// so each frame is one contiguous block of Rows*Cols*Slices elements. Frame
// contiguity is what makes frame-range reads and chunked conversion cheap.
type Shape struct {
	Rows   int
	Cols   int
	Slices int
	Frames int
}

// IsZero reports whether the shape is entirely unresolved.
func (s Shape) IsZero() bool {
	return s == Shape{}
}

// Valid reports whether every axis is at least 1.
func (s Shape) Valid() bool {
	return s.Rows >= 1 && s.Cols >= 1 && s.Slices >= 1 && s.Frames >= 1
}

// FrameElems returns the number of elements in a single frame.
func (s Shape) FrameElems() int {
	return s.Rows * s.Cols * s.Slices
}

// Elems returns the total number of elements.
func (s Shape) Elems() int {
	return s.FrameElems() * s.Frames
}

// Bytes returns the total data size for the given element type.
func (s Shape) Bytes(e ElemType) int64 {
	return int64(s.Elems()) * int64(e.Width())
}

// FrameBytes returns the size of a single frame for the given element type.
func (s Shape) FrameBytes(e ElemType) int64 {
	return int64(s.FrameElems()) * int64(e.Width())
}

// WithFrames returns a copy of the shape with the frame axis replaced.
func (s Shape) WithFrames(frames int) Shape {
	s.Frames = frames
	return s
}

// Index returns the flat element index of (r, c, s, f). Bounds are the
// caller's responsibility.
func (s Shape) Index(r, c, sl, f int) int {
	return r + s.Rows*(c+s.Cols*(sl+s.Slices*f))
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%dx%d", s.Rows, s.Cols, s.Slices, s.Frames)
}
