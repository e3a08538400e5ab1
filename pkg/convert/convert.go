// Package convert streams data from any backend into a new backing form,
// frame range by frame range, under a bounded memory budget. It is the
// only path for switching the backend mode of a live store: there is no
// in-place conversion without a full data pass.
package convert

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/backend/memory"
	"github.com/marmos91/voxstream/pkg/container"
	"github.com/marmos91/voxstream/pkg/resolve"
	"github.com/marmos91/voxstream/pkg/transform"
	"github.com/marmos91/voxstream/pkg/voxel"
)

// MiB is the unit of every size budget in the public surface.
const MiB = 1 << 20

// DefaultChunkMiB is the chunk budget applied when a caller passes zero.
const DefaultChunkMiB = 100.0

// Options controls a conversion.
type Options struct {
	// Transform is applied per frame while streaming. Never persisted: the
	// destination holds transformed data, but the transform itself is not
	// recorded anywhere.
	Transform transform.Transform

	// Frames selects the frame subset to convert. The zero span converts
	// everything.
	Frames voxel.Span

	// Mode requests the destination backend kind. Nil infers it from
	// size: mapped when input or output exceeds the chunk budget, memory
	// otherwise. Only writable modes are valid destinations.
	Mode *backend.Mode

	// ChunkMiB bounds the data materialized per pass. Zero means
	// DefaultChunkMiB.
	ChunkMiB float64
}

// Convert streams src into the backing form named by destBase and opts,
// returning the destination backend, linked and fully written.
//
// Converting an up-to-date container onto itself (no transform, full frame
// subset) skips the rewrite entirely. Rewriting a container in place
// renames the existing file to a temporary name, streams from it into a
// fresh container of the original name, and deletes the temporary only on
// success; a failed chunk aborts the whole conversion and leaves the
// destination invalid.
func Convert(src backend.Backend, destBase string, opts Options) (backend.Writable, error) {
	if opts.ChunkMiB == 0 {
		opts.ChunkMiB = DefaultChunkMiB
	}
	if opts.ChunkMiB < 0 {
		return nil, fmt.Errorf("%w: chunk budget %.2f MiB must be positive", voxel.ErrInput, opts.ChunkMiB)
	}

	if err := src.Link(); err != nil {
		return nil, err
	}
	srcShape := src.Shape()
	srcElem := src.ElemType()

	// One probe frame through the transform fixes the output geometry.
	// Transforms may change dimensions or element width, so shape and
	// element type are derived together from the transformed probe.
	probe, err := src.ReadFrames(0, 1)
	if err != nil {
		return nil, fmt.Errorf("probing source: %w", err)
	}
	probe, err = transform.ApplyAll(probe, opts.Transform)
	if err != nil {
		return nil, fmt.Errorf("probing transform: %w", err)
	}
	if probe.Elem == voxel.ElemUnknown || probe.Elem.Width() == 0 {
		return nil, fmt.Errorf("%w: transform produced unsupported element type", voxel.ErrInput)
	}

	f0, f1, err := opts.Frames.Resolve(srcShape.Frames)
	if err != nil {
		return nil, err
	}
	count := f1 - f0
	if count < 1 {
		return nil, fmt.Errorf("%w: conversion needs at least one frame", voxel.ErrInput)
	}
	outShape := probe.Shape.WithFrames(count)
	outElem := probe.Elem

	mode, err := destMode(opts, srcShape.Bytes(srcElem), outShape.Bytes(outElem))
	if err != nil {
		return nil, err
	}

	destContainer := destBase + resolve.ContainerExt

	// Idempotent no-op: container onto itself, untouched.
	if mp, ok := src.(*mapped.Backend); ok && mp.Path() == destContainer &&
		opts.Transform == nil && opts.Frames.IsFull(srcShape.Frames) &&
		outShape == srcShape && outElem == srcElem && mode == backend.ModeMapped {
		logger.Debug("convert: %q already up to date, skipping rewrite", destContainer)
		return mp, nil
	}

	// Rewriting in place: move the current file aside and stream from it.
	var tempPath string
	if mp, ok := src.(*mapped.Backend); ok && mp.Path() == destContainer {
		if err := mp.Unlink(); err != nil {
			return nil, err
		}
		tempPath = destContainer + ".convert-tmp"
		if err := os.Rename(destContainer, tempPath); err != nil {
			return nil, err
		}
		tmp := mapped.New(tempPath)
		if err := tmp.Link(); err != nil {
			os.Rename(tempPath, destContainer)
			return nil, err
		}
		defer tmp.Unlink()
		src = tmp
	}

	dst, err := createDest(mode, destContainer, outShape, outElem)
	if err != nil {
		return nil, err
	}

	if err := stream(src, dst, opts.Transform, f0, f1, opts.ChunkMiB); err != nil {
		if mp, ok := dst.(*mapped.Backend); ok {
			mp.Unlink()
		}
		return nil, err
	}
	if err := dst.Flush(); err != nil {
		return nil, err
	}

	if tempPath != "" {
		if err := os.Remove(tempPath); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func destMode(opts Options, inBytes, outBytes int64) (backend.Mode, error) {
	if opts.Mode != nil {
		if !opts.Mode.Writable() {
			return 0, fmt.Errorf("%w: %s is not a writable destination mode", voxel.ErrInput, *opts.Mode)
		}
		return *opts.Mode, nil
	}
	budget := int64(opts.ChunkMiB * MiB)
	if inBytes > budget || outBytes > budget {
		return backend.ModeMapped, nil
	}
	return backend.ModeMemory, nil
}

// createDest allocates the destination. For a mapped destination the
// header is written before any data chunk, from the already-known output
// shape and element type. A present file that is not a valid container is
// never overwritten.
func createDest(mode backend.Mode, destContainer string, shape voxel.Shape, elem voxel.ElemType) (backend.Writable, error) {
	if mode == backend.ModeMemory {
		return memory.NewEmpty(shape, elem), nil
	}
	if _, err := os.Stat(destContainer); err == nil {
		if _, perr := container.Probe(destContainer); perr != nil {
			return nil, fmt.Errorf("refusing to overwrite %q: %w", destContainer, perr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return mapped.Create(destContainer, shape, elem)
}

// stream copies frames [f0, f1) from src to dst chunk by chunk, applying
// the transform per frame. The chunk size honours the budget against both
// the input and the output frame footprint; when everything fits in one
// chunk the copy degenerates to a single full write.
func stream(src backend.Backend, dst backend.Writable, t transform.Transform, f0, f1 int, chunkMiB float64) error {
	srcFrame := src.Shape().FrameBytes(src.ElemType())
	dstFrame := dst.Shape().FrameBytes(dst.ElemType())
	frameBytes := srcFrame
	if dstFrame > frameBytes {
		frameBytes = dstFrame
	}

	chunkFrames := int(int64(chunkMiB*MiB) / frameBytes)
	if chunkFrames < 1 {
		chunkFrames = 1
	}

	total := f1 - f0
	for a := f0; a < f1; a += chunkFrames {
		b := a + chunkFrames
		if b > f1 {
			b = f1
		}
		buf, err := src.ReadFrames(a, b)
		if err != nil {
			return fmt.Errorf("reading frames %d-%d: %w", a+1, b, err)
		}
		buf, err = transform.ApplyAll(buf, t)
		if err != nil {
			return err
		}
		if err := dst.WriteFrames(a-f0, buf); err != nil {
			return fmt.Errorf("writing frames %d-%d: %w", a+1, b, err)
		}
		logger.Info("convert: frames %d-%d of %d", a-f0+1, b-f0, total)
	}
	return nil
}
