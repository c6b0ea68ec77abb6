package main

import (
	"os"

	"github.com/openmic-live/openmic/apps/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
