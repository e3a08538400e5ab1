package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/voxstream/pkg/store"
)

var infoCmd = &cobra.Command{
	Use:   "info <basename>",
	Short: "Show the resolved backend, shape and element type of a dataset",
	Args:  cobra.ExactArgs(1),
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

		shape, err := s.Shape()
		if err != nil {
			return err
		}
		elem, err := s.ElemType()
		if err != nil {
			return err
		}

		fmt.Printf("basename: %s\n", s.Basename())
		fmt.Printf("backend:  %s\n", s.Mode())
		fmt.Printf("shape:    %s (rows x cols x slices x frames)\n", shape)
		fmt.Printf("element:  %s\n", elem)
		fmt.Printf("size:     %.2f MiB\n", float64(shape.Bytes(elem))/(1<<20))

		keys, err := s.ListExtraKeys()
		if err == nil && len(keys) > 0 {
			fmt.Printf("sidecar:  %d keys\n", len(keys))
		}
		return nil
	},
}
