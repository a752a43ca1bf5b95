// Package main is the mfbot-download command.
package main

import (
	"os"

	"github.com/leapstack-labs/mfbot-download/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
