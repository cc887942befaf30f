package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <diff-id>",
	Short: "Score a stored diff and print the reasons",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		score, err := orch.ScoreDiff(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Total: %v\n", score.TotalScore)
		for _, reason := range score.Reasons {
			fmt.Fprintf(cmd.OutOrStdout(), "  %+.2f  %s\n", reason.ScoreContribution, reason.Reason)
		}
		return nil
	},
}
