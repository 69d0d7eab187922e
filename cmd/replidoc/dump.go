// Part of the replidoc CLI - this file implements the 'replidoc dump'
// subcommand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <state.json>",
	Short: "Pretty-print a saved document state file",
	Long:  "Read a JSON state file written by 'run' or 'merge' and print it as a Go value dump.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid state path: %w", err)
	}

	lock := flock.New(absPath + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	litter.Dump(value)
	return nil
}
