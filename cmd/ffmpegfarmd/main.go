// Package main is the entry point for the ffmpegfarmd application.
package main

import (
	"os"

	"github.com/jmylchreest/ffmpegfarm/cmd/ffmpegfarmd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
