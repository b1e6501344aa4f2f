package main

import (
	"os"

	"github.com/copperline/copperline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
