// Part of the replidoc CLI - this file implements the 'replidoc merge'
// subcommand.
package main

import (
	"fmt"
	"reflect"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <a.yaml> <b.yaml>",
	Short: "Run two edit scripts as separate peers and merge them",
	Long:  "Apply two YAML edit scripts to two independent replicas, exchange their operations in both directions, and print the converged document value.",
	Args:  cobra.ExactArgs(2),
	RunE:  runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	scriptA, err := loadScript(args[0])
	if err != nil {
		return err
	}
	scriptB, err := loadScript(args[1])
	if err != nil {
		return err
	}
	if scriptA.Peer != 0 && scriptA.Peer == scriptB.Peer {
		return fmt.Errorf("scripts must use distinct peer IDs, both use %d", scriptA.Peer)
	}

	runnerA := newScriptRunner(scriptA)
	if err := runnerA.run(scriptA); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	runnerB := newScriptRunner(scriptB)
	if err := runnerB.run(scriptB); err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	docA, docB := runnerA.doc, runnerB.doc
	if err := docA.Import(docB.ExportFrom(docA.VersionVector())); err != nil {
		return fmt.Errorf("merging %s into %s: %w", args[1], args[0], err)
	}
	if err := docB.Import(docA.ExportFrom(docB.VersionVector())); err != nil {
		return fmt.Errorf("merging %s into %s: %w", args[0], args[1], err)
	}

	valueA := docA.GetDeepValue().ToGo()
	valueB := docB.GetDeepValue().ToGo()
	if !reflect.DeepEqual(valueA, valueB) {
		fmt.Println("replicas diverged:")
		litter.Dump(valueA)
		litter.Dump(valueB)
		return fmt.Errorf("replicas did not converge")
	}

	litter.Dump(valueA)
	if verbose {
		fmt.Printf("ops: %d\n", docA.LenOps())
		fmt.Printf("frontier: %s\n", frontierString(docA))
	}
	return writeResult(docA)
}
