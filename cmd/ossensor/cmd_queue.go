package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ossensor/internal/model"
)

var queueFlags struct {
	component string
	state     string
	minScore  float64
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Print the ranked triage queue, highest score first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		filter := model.QueueFilter{
			Component: queueFlags.component,
			State:     model.TriageState(queueFlags.state),
		}
		if cmd.Flags().Changed("min-score") {
			filter.MinScore = queueFlags.minScore
			filter.HasMinScore = true
		}

		items, err := orch.Queue(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
			return nil
		}

		for _, item := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%8.2f  %-12s  %s  %s -> %s  [%s]\n",
				item.Score, item.State, item.DiffID, item.BuildFrom, item.BuildTo, item.Component)
		}
		return nil
	},
}

func init() {
	f := queueCmd.Flags()
	f.StringVar(&queueFlags.component, "component", "", "Filter by component")
	f.StringVar(&queueFlags.state, "state", "", "Filter by triage state")
	f.Float64Var(&queueFlags.minScore, "min-score", 0, "Minimum total score")
}
