package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/voxstream/pkg/backend"
	"github.com/marmos91/voxstream/pkg/backend/mapped"
	"github.com/marmos91/voxstream/pkg/convert"
	"github.com/marmos91/voxstream/pkg/store"
	"github.com/marmos91/voxstream/pkg/voxel"
)

var (
	convertMode   int
	convertFrames string
	convertChunk  float64
)

var convertCmd = &cobra.Command{
	Use:   "convert <source> <dest-basename>",
	Short: "Stream a dataset into a new container under a bounded memory budget",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := cfg.StoreOptions()
		if err != nil {
			return err
		}
		s, err := store.Open(args[0], opts)
		if err != nil {
			return err
		}
		defer s.Close()

		frames, err := parseFrameRange(convertFrames)
		if err != nil {
			return err
		}
		mode := backend.Mode(convertMode)

		dst, err := s.Convert(args[1], convert.Options{
			Frames:   frames,
			Mode:     &mode,
			ChunkMiB: convertChunk,
		})
		if err != nil {
			return err
		}

		if mp, ok := dst.(*mapped.Backend); ok {
			fmt.Printf("wrote %s\n", mp.Path())
			return mp.Unlink()
		}
		fmt.Printf("converted %s frames into memory\n", dst.Shape())
		return nil
	},
}

func init() {
	convertCmd.Flags().IntVar(&convertMode, "mode", int(backend.ModeMapped),
		"destination backend mode (0=memory, 1=mapped)")
	convertCmd.Flags().StringVar(&convertFrames, "frames", "",
		"frame subset as start:stop (0-based, half-open); default all")
	convertCmd.Flags().Float64Var(&convertChunk, "chunk-mib", 0,
		"chunk budget in MiB; default from config")
}

// parseFrameRange parses "start:stop" into a span. Empty input selects
// every frame.
func parseFrameRange(s string) (voxel.Span, error) {
	if s == "" {
		return voxel.All(), nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return voxel.Span{}, fmt.Errorf("%w: frame range %q, want start:stop", voxel.ErrInput, s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return voxel.Span{}, fmt.Errorf("%w: frame range %q: %v", voxel.ErrInput, s, err)
	}
	stop, err := strconv.Atoi(parts[1])
	if err != nil {
		return voxel.Span{}, fmt.Errorf("%w: frame range %q: %v", voxel.ErrInput, s, err)
	}
	return voxel.Range(start, stop), nil
}
