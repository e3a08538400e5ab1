// Package commands implements the voxstream command line interface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/voxstream/internal/logger"
	"github.com/marmos91/voxstream/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voxstream",
	Short: "Inspect and convert 4-D pixel array datasets",
	Long: `voxstream works with datasets stored as 4-D pixel arrays
(row, column, slice, frame), backed by a memory-mapped container file or
a source video/image file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger.SetLevel(cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./voxstream.yaml)")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(headerCmd)
	rootCmd.AddCommand(convertCmd)
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
