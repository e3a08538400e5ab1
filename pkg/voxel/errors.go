package voxel

import (
	"errors"
	"fmt"
)

// Error classification for the whole store.
//
// Callers match with errors.Is. Implementations wrap these sentinels with
// context:
//
//	return fmt.Errorf("container %s: %w", path, voxel.ErrFormat)
//
// Ambiguity between sibling files and oversized reads are warnings, not
// errors; they surface through internal/logger and never through these
// sentinels.
var (
	// ErrInput indicates an invalid argument: out-of-range index, bad
	// backend mode, malformed crop rectangle, unsupported element type for
	// an output, or a mutation attempted on a locked store. Never retried.
	ErrInput = errors.New("invalid input")

	// ErrNotFound indicates that no resolvable source or container file
	// exists for a basename. A hard error when data is required, a warning
	// with graceful no-op when recall is optional.
	ErrNotFound = errors.New("file not found")

	// ErrFormat indicates a file exists but fails validation for its
	// expected role (bad header, wrong bit width, truncated data region).
	// Always hard: silently overwriting could destroy unrelated data.
	ErrFormat = errors.New("unrecognized file format")

	// ErrShortWrite indicates fewer bytes were written than requested.
	// The destination is in an undefined state and must be discarded.
	ErrShortWrite = errors.New("short write")
)

// Refinements of ErrInput. errors.Is(err, ErrInput) holds for all of them,
// so callers that only care about the coarse class keep working.
var (
	// ErrLocked is returned by every mutating operation while the store's
	// locked flag is set. Only Unlock is exempt.
	ErrLocked = fmt.Errorf("%w: store is locked", ErrInput)

	// ErrReadOnly is returned when a write is attempted against a decoder
	// backend (stream or tiled).
	ErrReadOnly = fmt.Errorf("%w: backend is read-only", ErrInput)

	// ErrUnlinked is returned when an operation requires a linked backend
	// and relinking is not possible.
	ErrUnlinked = fmt.Errorf("%w: backend is not linked", ErrInput)
)
