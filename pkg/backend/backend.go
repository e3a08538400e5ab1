// Package backend defines the capability contract shared by the four
// interchangeable storage strategies of a voxstream store, plus the
// collaborator interfaces for the decoder-backed variants.
//
// All variants expose identical frame-range reads over the canonical
// (row, column, slice, frame) axis order, so the indexing façade never
// needs to know which strategy is active. Only the in-memory and mapped
// variants are writable.
package backend

import (
	"fmt"

	"github.com/marmos91/voxstream/pkg/voxel"
)

// Mode identifies a backend strategy. The numeric values are persisted in
// the container header and must not change.
type Mode int

const (
	// ModeMemory holds the full array in an in-process buffer.
	ModeMemory Mode = 0

	// ModeMapped maps a writable container file into memory.
	ModeMapped Mode = 1

	// ModeStream wraps a sequential frame decoder. Read-only.
	ModeStream Mode = 2

	// ModeTiled wraps a random-access tiled image reader. Read-only.
	ModeTiled Mode = 3
)

// ModeFromInt validates and converts a configured backend mode.
func ModeFromInt(v int) (Mode, error) {
	if v < 0 || v > 3 {
		return 0, fmt.Errorf("%w: backend mode %d out of range [0,3]", voxel.ErrInput, v)
	}
	return Mode(v), nil
}

// Writable reports whether the mode supports element writes.
func (m Mode) Writable() bool {
	return m == ModeMemory || m == ModeMapped
}

// Streaming reports whether the mode is one of the two read-only decoder
// kinds, which cannot cheaply support ambiguous partial addressing.
func (m Mode) Streaming() bool {
	return m == ModeStream || m == ModeTiled
}

func (m Mode) String() string {
	switch m {
	case ModeMemory:
		return "memory"
	case ModeMapped:
		return "mapped"
	case ModeStream:
		return "stream"
	case ModeTiled:
		return "tiled"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Backend is the capability contract every variant implements.
//
// A backend is a shared-but-single-owner resource: exactly one store owns
// it. Link opens the underlying resource, Unlink releases it while keeping
// enough state (mode + path) to relink later; both are idempotent.
// Shape and ElemType are only valid once the backend has been linked at
// least once.
type Backend interface {
	Mode() Mode
	Shape() voxel.Shape
	ElemType() voxel.ElemType

	// ReadFrames returns frames [first, stop) as a freshly owned buffer in
	// canonical axis order.
	ReadFrames(first, stop int) (*voxel.Buffer, error)

	IsLinked() bool
	Link() error
	Unlink() error
}

// Writable is implemented by the memory and mapped variants.
type Writable interface {
	Backend

	// WriteFrames overwrites frames starting at first with the contents of
	// buf. buf must match the backend's row/col/slice extents and element
	// type.
	WriteFrames(first int, buf *voxel.Buffer) error

	// Flush pushes pending writes to stable storage. A no-op for memory.
	Flush() error
}
