package main

import (
	"os"

	"github.com/marmos91/voxstream/cmd/voxstream/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
