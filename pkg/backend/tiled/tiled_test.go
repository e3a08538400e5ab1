package tiled

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// fakeReader serves a synthetic uint8 volume whose element at native
// coordinates (r, c, f, s) is seed + r + 10*c + 100*f + 50*s, truncated to a
// byte. Data is produced in native nesting order, row axis fastest.
type fakeReader struct {
	rows, cols, frames, slices int
	seed                       int
	closed                     bool
}

func (fr *fakeReader) value(r, c, f, s int) byte {
	return byte(fr.seed + r + 10*c + 100*f + 50*s)
}

func (fr *fakeReader) Size() (int, int, int, int) {
	return fr.rows, fr.cols, fr.frames, fr.slices
}

func (fr *fakeReader) ElemType() voxel.ElemType { return voxel.ElemUint8 }

func (fr *fakeReader) Read(row0, row1, col0, col1, frame0, frame1 int) ([]byte, error) {
	if row0 != 0 || row1 != fr.rows || col0 != 0 || col1 != fr.cols {
		return nil, fmt.Errorf("unexpected partial read %d:%d %d:%d", row0, row1, col0, col1)
	}
	out := make([]byte, 0, fr.rows*fr.cols*(frame1-frame0)*fr.slices)
	for s := 0; s < fr.slices; s++ {
		for f := frame0; f < frame1; f++ {
			for c := 0; c < fr.cols; c++ {
				for r := 0; r < fr.rows; r++ {
					out = append(out, fr.value(r, c, f, s))
				}
			}
		}
	}
	return out, nil
}

func (fr *fakeReader) Close() error { fr.closed = true; return nil }

func register(t *testing.T, readers map[string]*fakeReader) {
	t.Helper()
	backend.RegisterTiledOpener(func(path string) (backend.TiledReader, error) {
		r, ok := readers[path]
		if !ok {
			return nil, fmt.Errorf("no reader for %q", path)
		}
		return r, nil
	})
	t.Cleanup(func() { backend.RegisterTiledOpener(nil) })
}

func TestSinglePartPermutation(t *testing.T) {
	fr := &fakeReader{rows: 3, cols: 2, frames: 4, slices: 2}
	register(t, map[string]*fakeReader{"a.tif": fr})

	b, err := New("a.tif")
	require.NoError(t, err)
	require.NoError(t, b.Link())
	defer b.Unlink()

	// Native (row, col, frame, slice) becomes canonical (row, col, slice, frame).
	assert.Equal(t, voxel.Shape{Rows: 3, Cols: 2, Slices: 2, Frames: 4}, b.Shape())

	got, err := b.ReadFrames(0, 4)
	require.NoError(t, err)
	for f := 0; f < 4; f++ {
		for s := 0; s < 2; s++ {
			for c := 0; c < 2; c++ {
				for r := 0; r < 3; r++ {
					want := float64(fr.value(r, c, f, s))
					require.Equal(t, want, got.Value(r, c, s, f),
						"element (%d,%d,%d,%d)", r, c, s, f)
				}
			}
		}
	}
}

func TestMultiPartConcatenation(t *testing.T) {
	readers := map[string]*fakeReader{
		"a@0001.tif": {rows: 2, cols: 2, frames: 3, slices: 1, seed: 0},
		"a@0002.tif": {rows: 2, cols: 2, frames: 2, slices: 1, seed: 7},
	}
	register(t, readers)

	b, err := New("a@0001.tif", "a@0002.tif")
	require.NoError(t, err)
	require.NoError(t, b.Link())
	defer b.Unlink()

	assert.Equal(t, 5, b.Shape().Frames)

	// A range spanning the part boundary stitches both files.
	got, err := b.ReadFrames(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Shape.Frames)
	assert.Equal(t, float64(readers["a@0001.tif"].value(1, 0, 2, 0)), got.Value(1, 0, 0, 0))
	assert.Equal(t, float64(readers["a@0002.tif"].value(1, 0, 0, 0)), got.Value(1, 0, 0, 1))
}

func TestMismatchedPartsFailLink(t *testing.T) {
	readers := map[string]*fakeReader{
		"a@0001.tif": {rows: 2, cols: 2, frames: 3, slices: 1},
		"a@0002.tif": {rows: 4, cols: 2, frames: 2, slices: 1},
	}
	register(t, readers)

	b, err := New("a@0001.tif", "a@0002.tif")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Link(), voxel.ErrFormat)
	assert.False(t, b.IsLinked())
	// Readers opened during the failed link are closed again.
	assert.True(t, readers["a@0001.tif"].closed)
	assert.True(t, readers["a@0002.tif"].closed)
}

func TestUnlinkKeepsMetadata(t *testing.T) {
	fr := &fakeReader{rows: 2, cols: 2, frames: 2, slices: 1}
	register(t, map[string]*fakeReader{"a.tif": fr})

	b, err := New("a.tif")
	require.NoError(t, err)
	require.NoError(t, b.Link())
	require.NoError(t, b.Unlink())

	assert.True(t, fr.closed)
	assert.False(t, b.IsLinked())
	assert.Equal(t, 2, b.Shape().Frames)
	assert.Equal(t, []string{"a.tif"}, b.Paths())

	_, err = b.ReadFrames(0, 1)
	assert.ErrorIs(t, err, voxel.ErrUnlinked)
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, voxel.ErrInput)
}
