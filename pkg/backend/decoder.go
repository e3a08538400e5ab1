package backend

// Decoder collaborator contracts. Codec internals are out of scope for
// voxstream; the decoder-backed variants only orchestrate reads against
// these capabilities. Concrete implementations register openers at program
// start, the way image formats register decoders with the standard library.

import (
	"fmt"
	"sync"

	"github.com/marmos91/voxstream/pkg/voxel"
)

// SequentialDecoder is a sequential frame source with a current-position
// cursor. Random access costs a seek followed by a decode per frame.
//
// Frame indices convert to time offsets through the constant nominal
// FrameRate. Variable-frame-rate sources are a known correctness gap of
// this mapping.
type SequentialDecoder interface {
	// Seek positions the cursor at the given time offset in seconds.
	Seek(seconds float64) error

	// DecodeNext decodes the frame at the cursor and advances it. The
	// returned buffer holds exactly one frame in canonical axis order.
	DecodeNext() (*voxel.Buffer, error)

	// FrameRate returns the nominal frames per second.
	FrameRate() float64

	// Duration returns the total length in seconds.
	Duration() float64

	Close() error
}

// TiledReader is a random-access tiled image source. Its native axis order
// is (row, col, frame, slice) — frame and slice are transposed relative to
// the canonical order and every read must be permuted back.
type TiledReader interface {
	// Size returns the native extents in native axis order.
	Size() (rows, cols, frames, slices int)

	ElemType() voxel.ElemType

	// Read returns raw elements for the requested half-open row, column and
	// frame ranges, covering all slices, flattened in native nesting order
	// with the row axis fastest.
	Read(row0, row1, col0, col1, frame0, frame1 int) ([]byte, error)

	Close() error
}

// Opener registries. nil until a decoder implementation registers itself;
// linking a decoder backend without a registered opener fails with a
// descriptive input error.
var (
	openerMu    sync.RWMutex
	seqOpener   func(path string) (SequentialDecoder, error)
	tiledOpener func(path string) (TiledReader, error)
)

// RegisterSequentialOpener installs the factory used to open sequential
// media files. Later registrations replace earlier ones.
func RegisterSequentialOpener(fn func(path string) (SequentialDecoder, error)) {
	openerMu.Lock()
	defer openerMu.Unlock()
	seqOpener = fn
}

// RegisterTiledOpener installs the factory used to open tiled image files.
func RegisterTiledOpener(fn func(path string) (TiledReader, error)) {
	openerMu.Lock()
	defer openerMu.Unlock()
	tiledOpener = fn
}

// OpenSequential opens path with the registered sequential opener.
func OpenSequential(path string) (SequentialDecoder, error) {
	openerMu.RLock()
	fn := seqOpener
	openerMu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: no sequential decoder registered", voxel.ErrInput)
	}
	return fn(path)
}

// OpenTiled opens path with the registered tiled opener.
func OpenTiled(path string) (TiledReader, error) {
	openerMu.RLock()
	fn := tiledOpener
	openerMu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: no tiled reader registered", voxel.ErrInput)
	}
	return fn(path)
}
