package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <build-from> <build-to> <component>",
	Short: "Diff two builds of a component and store the evidence bundle",
	Long: `Diffs the ingested source trees of two builds, extracts rule-based
features, assembles the evidence bundle with any ingested binary and log
features, and stores the diff. Use 'ossensor score' and 'ossensor report'
to continue, or 'serve' for the job API that runs the whole pipeline.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		diffID, bundle, err := orch.ComputeDiff(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("diff: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Diff: %s\n", diffID)
		fmt.Fprintf(cmd.OutOrStdout(), "Hunks: %d  Source features: %d  Binary pairs: %d  Log correlations: %d\n",
			len(bundle.DiffHunks), len(bundle.SourceFeatures), len(bundle.BinaryDiffPairs), len(bundle.LogBinaryMatches))
		return nil
	},
}
