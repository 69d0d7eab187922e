// Part of the replidoc CLI - this file implements the 'replidoc run'
// subcommand.
package main

import (
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>",
	Short: "Run an edit script against a fresh document",
	Long:  "Apply the steps of a YAML edit script to a new document and print the resulting document value.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	script, err := loadScript(args[0])
	if err != nil {
		return err
	}

	runner := newScriptRunner(script)
	if err := runner.run(script); err != nil {
		return err
	}

	litter.Dump(runner.doc.GetDeepValue().ToGo())
	if verbose {
		fmt.Printf("peer: %d\n", runner.doc.PeerID())
		fmt.Printf("ops: %d\n", runner.doc.LenOps())
		fmt.Printf("frontier: %s\n", frontierString(runner.doc))
	}
	return writeResult(runner.doc)
}
