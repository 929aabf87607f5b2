// Package main provides the entry point for the artifact-index CLI.
package main

import (
	"os"

	"github.com/continuity-tools/artifact-index/cmd/artifact-index/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
