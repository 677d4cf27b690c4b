// Package main provides the entry point for the gamescout CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/gamescout/cmd/gamescout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
