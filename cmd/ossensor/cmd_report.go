package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ossensor/internal/model"
)

var reportFlags struct {
	enrich     bool
	reportType string
}

var reportCmd = &cobra.Command{
	Use:   "report <diff-id>",
	Short: "Generate and store the five triage reports for a diff",
	Long: `Generates the triage, reverse-context, hypothesis, fuzz-plan and
telemetry reports for a stored diff and persists them, scoring the diff
first if needed. With --enrich, each draft is passed through the configured
completion provider behind the grounding gate; without a configured
provider the deterministic drafts are stored unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, cleanup, err := openOrchestrator()
		if err != nil {
			return err
		}
		defer cleanup()

		set, err := orch.GenerateReports(cmd.Context(), args[0], reportFlags.enrich)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}

		var out any = set
		if reportFlags.reportType != "" {
			switch reportFlags.reportType {
			case model.ReportTriage:
				out = set.Triage
			case model.ReportReverseContext:
				out = set.ReverseContext
			case model.ReportVulnHypotheses:
				out = set.VulnHypotheses
			case model.ReportFuzzPlan:
				out = set.FuzzPlan
			case model.ReportTelemetry:
				out = set.Telemetry
			default:
				return fmt.Errorf("unknown report type %q", reportFlags.reportType)
			}
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	f := reportCmd.Flags()
	f.BoolVar(&reportFlags.enrich, "enrich", false, "Pass drafts through the configured completion provider")
	f.StringVar(&reportFlags.reportType, "type", "", "Print only one report type (triage, reverse_context, vuln_hypotheses, fuzz_plan, telemetry)")
}
