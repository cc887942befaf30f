package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a build artifact (source tree, binary, or logs)",
}

var ingestSourceCmd = &cobra.Command{
	Use:   "source <build-id> <component> <path>",
	Short: "Register a source tree for a build",
	Long: `Registers a source tree for a build and component. The tree stays on
disk and is diffed in place at analysis time; only its path and derived
metadata are persisted.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := orch.IngestSource(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("ingest source: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact: %s\n", id)
		return nil
	},
}

var ingestBinaryCmd = &cobra.Command{
	Use:   "binary <build-id> <component> <path>",
	Short: "Extract and store features from a binary or binary directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := orch.IngestBinary(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("ingest binary: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact: %s\n", id)
		return nil
	},
}

var ingestLogsCmd = &cobra.Command{
	Use:   "logs <build-id> <component> <path>",
	Short: "Extract and store log templates from a log directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		id, err := orch.IngestLogs(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("ingest logs: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artifact: %s\n", id)
		return nil
	},
}

func init() {
	ingestCmd.AddCommand(ingestSourceCmd)
	ingestCmd.AddCommand(ingestBinaryCmd)
	ingestCmd.AddCommand(ingestLogsCmd)
}
