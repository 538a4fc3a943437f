package main

import (
	"os"

	"github.com/bassista/snipsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
