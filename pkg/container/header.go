// Package container reads and writes the fixed-size binary preamble of a
// voxstream container file.
//
// A container is a 1024-byte header followed by the raw element data of a
// 4-D pixel array. The header holds six consecutive 64-bit little-endian
// unsigned integers:
//
//	offset 0   rows
//	offset 8   columns
//	offset 16  slices
//	offset 24  frames
//	offset 32  element bit width (8, 16, 32 or 64)
//	offset 40  backend mode at time of write (0..3)
//	offset 48  reserved, zero-filled to 1024
//
// Data begins at byte offset 1024 in (row, column, slice, frame) nesting
// order with the row axis varying fastest. The package is pure codec: it
// never opens a mapping and makes no backend policy decisions.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/voxstream/pkg/voxel"
)

const (
	// HeaderSize is the fixed preamble size. Element data starts here.
	HeaderSize = 1024

	// DataOffset is the byte offset of the first element.
	DataOffset = HeaderSize

	// headerWords is the number of meaningful 64-bit fields.
	headerWords = 6
)

// Header is the decoded container preamble.
type Header struct {
	Rows   uint64
	Cols   uint64
	Slices uint64
	Frames uint64
	Bits   uint64
	Mode   uint64
}

// NewHeader builds a header from live shape, element type and backend mode.
func NewHeader(shape voxel.Shape, elem voxel.ElemType, mode uint64) Header {
	return Header{
		Rows:   uint64(shape.Rows),
		Cols:   uint64(shape.Cols),
		Slices: uint64(shape.Slices),
		Frames: uint64(shape.Frames),
		Bits:   elem.Bits(),
		Mode:   mode,
	}
}

// Shape returns the header dimensions as a voxel.Shape.
func (h Header) Shape() voxel.Shape {
	return voxel.Shape{
		Rows:   int(h.Rows),
		Cols:   int(h.Cols),
		Slices: int(h.Slices),
		Frames: int(h.Frames),
	}
}

// ElemType maps the stored bit width to an element type.
func (h Header) ElemType() (voxel.ElemType, error) {
	return voxel.ElemTypeFromBits(h.Bits)
}

// DataSize returns the exact byte length of the data region described by
// the header.
func (h Header) DataSize() int64 {
	return int64(h.Rows) * int64(h.Cols) * int64(h.Slices) * int64(h.Frames) * int64(h.Bits/8)
}

// Validate checks the header fields for internal consistency.
func (h Header) Validate() error {
	if _, err := h.ElemType(); err != nil {
		return err
	}
	if h.Mode > 3 {
		return fmt.Errorf("%w: backend mode %d out of range", voxel.ErrFormat, h.Mode)
	}
	if h.Rows == 0 || h.Cols == 0 || h.Slices == 0 || h.Frames == 0 {
		return fmt.Errorf("%w: zero-sized dimension in header", voxel.ErrFormat)
	}
	return nil
}

// Encode returns the full 1024-byte on-disk form of the header.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	fields := [headerWords]uint64{h.Rows, h.Cols, h.Slices, h.Frames, h.Bits, h.Mode}
	for i, f := range fields {
		binary.LittleEndian.PutUint64(buf[i*8:], f)
	}
	return buf
}

// Decode parses a header from at least HeaderSize bytes.
func Decode(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is too small for a container header",
			voxel.ErrFormat, len(src))
	}
	var h Header
	h.Rows = binary.LittleEndian.Uint64(src[0:])
	h.Cols = binary.LittleEndian.Uint64(src[8:])
	h.Slices = binary.LittleEndian.Uint64(src[16:])
	h.Frames = binary.LittleEndian.Uint64(src[24:])
	h.Bits = binary.LittleEndian.Uint64(src[32:])
	h.Mode = binary.LittleEndian.Uint64(src[40:])
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Probe reads and validates the header of the container at path.
//
// Returns (nil, nil) when the file does not exist or is too small to hold a
// header; the caller decides whether that is an error. A present file with
// an invalid header is a format error.
func Probe(path string) (*Header, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}
		return nil, err
	}
	h, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &h, nil
}

// WriteHeader writes the header at offset 0 of path, creating the file if
// needed. Fails with ErrShortWrite when fewer than HeaderSize bytes (128
// eight-byte words) reach the file.
func WriteHeader(path string, h Header) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := f.WriteAt(h.Encode(), 0)
	if err != nil {
		return err
	}
	if n < HeaderSize {
		return fmt.Errorf("%w: header write wrote %d of %d bytes", voxel.ErrShortWrite, n, HeaderSize)
	}
	return nil
}
