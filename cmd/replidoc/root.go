// Part of the replidoc CLI - this file wires the root command and shared
// flags for the edit-script subcommands.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/replidoc/replidoc/replidoc"
)

var (
	outPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "replidoc",
	Short: "Replidoc CLI",
	Long:  "Replidoc is a replicated document library. The CLI runs YAML edit scripts against documents and inspects the results.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "write the resulting document value as JSON to this path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show detailed output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(dumpCmd)
}

// writeResult serializes a document's deep value to the output path, locked
// against concurrent CLI invocations writing the same file.
func writeResult(doc *replidoc.Doc) error {
	if outPath == "" {
		return nil
	}
	absPath, err := filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	lock := flock.New(absPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock output file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(doc.GetDeepValue().ToGo(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := os.WriteFile(absPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if verbose {
		fmt.Printf("wrote %d bytes to %s\n", len(data), absPath)
	}
	return nil
}

// frontierString renders a document frontier for verbose output.
func frontierString(doc *replidoc.Doc) string {
	frontier := doc.Frontier()
	out := ""
	for i, id := range frontier {
		if i > 0 {
			out += " "
		}
		out += id.String()
	}
	return out
}
