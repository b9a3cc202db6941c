package main

import (
	"os"

	"github.com/notargets/FFTKernel/cmd/fftkernel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
