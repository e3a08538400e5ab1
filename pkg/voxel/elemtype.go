package voxel

import "fmt"

// ElemType identifies the element type of a pixel array.
//
// Only four element types are supported by the container format. The
// on-disk representation stores the bit width, not the enum value, so
// the mapping between the two must stay stable:
//
//	8  bits -> Uint8
//	16 bits -> Uint16
//	32 bits -> Float32
//	64 bits -> Float64
//
// Any other bit width found in a container header is a format error.
type ElemType int

const (
	// ElemUnknown is the zero value, used before metadata has been probed.
	ElemUnknown ElemType = iota

	// ElemUint8 is an 8-bit unsigned integer element.
	ElemUint8

	// ElemUint16 is a 16-bit unsigned integer element.
	ElemUint16

	// ElemFloat32 is a 32-bit IEEE 754 float element.
	ElemFloat32

	// ElemFloat64 is a 64-bit IEEE 754 float element.
	ElemFloat64
)

// ElemTypeFromBits maps an on-disk bit width to the corresponding element
// type. Returns ErrFormat for unrecognized widths.
func ElemTypeFromBits(bits uint64) (ElemType, error) {
	switch bits {
	case 8:
		return ElemUint8, nil
	case 16:
		return ElemUint16, nil
	case 32:
		return ElemFloat32, nil
	case 64:
		return ElemFloat64, nil
	default:
		return ElemUnknown, fmt.Errorf("%w: unsupported element bit width %d", ErrFormat, bits)
	}
}

// Bits returns the per-element bit width, or 0 for ElemUnknown.
func (e ElemType) Bits() uint64 {
	switch e {
	case ElemUint8:
		return 8
	case ElemUint16:
		return 16
	case ElemFloat32:
		return 32
	case ElemFloat64:
		return 64
	default:
		return 0
	}
}

// Width returns the per-element byte width, or 0 for ElemUnknown.
func (e ElemType) Width() int {
	return int(e.Bits() / 8)
}

func (e ElemType) String() string {
	switch e {
	case ElemUint8:
		return "uint8"
	case ElemUint16:
		return "uint16"
	case ElemFloat32:
		return "float32"
	case ElemFloat64:
		return "float64"
	default:
		return "unknown"
	}
}
