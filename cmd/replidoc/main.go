// This is the main entry point for the replidoc CLI.
// Build with: go build -o bin/replidoc ./cmd/replidoc
// Usage: replidoc <command> [options]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
