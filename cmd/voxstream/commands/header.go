package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/voxstream/pkg/container"
)

var headerCmd = &cobra.Command{
	Use:   "header <container.dat>",
	Short: "Decode and print the raw container header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := container.Probe(args[0])
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("%s: no container header found", args[0])
		}

		elem, err := h.ElemType()
		if err != nil {
			return err
		}
		fmt.Printf("rows:    %d\n", h.Rows)
		fmt.Printf("cols:    %d\n", h.Cols)
		fmt.Printf("slices:  %d\n", h.Slices)
		fmt.Printf("frames:  %d\n", h.Frames)
		fmt.Printf("element: %s (%d bits)\n", elem, h.Bits)
		fmt.Printf("mode:    %d\n", h.Mode)
		fmt.Printf("data:    %d bytes at offset %d\n", h.DataSize(), container.DataOffset)
		return nil
	},
}
