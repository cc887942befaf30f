package enrich

import (
	"encoding/json"
	"fmt"

	"ossensor/internal/model"
)

// promptSnippetCap truncates long diff snippets in the reverse-context prompt.
const promptSnippetCap = 500

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func triagePrompt(diffID string, score *model.ScoreResult, base *model.TriageReport, instruction string) (string, string) {
	system := "You are a security triage assistant. Enrich the triage report: clearer summary and score explanation. " +
		"Do not invent evidence. " + instruction
	type reasonDump struct {
		Reason            string  `json:"reason"`
		ScoreContribution float64 `json:"score_contribution"`
	}
	reasons := make([]reasonDump, 0, len(score.Reasons))
	for _, r := range score.Reasons {
		reasons = append(reasons, reasonDump{Reason: r.Reason, ScoreContribution: r.ScoreContribution})
	}
	user := fmt.Sprintf(
		"Diff id: %s. Score: %v. Reasons: %s\n\nBase triage report:\n%s\n\n"+
			"Return a single JSON object with keys: diff_id (string), summary (string), score_explanation (string), "+
			"citations (array of objects with ref_type, stable_id, and optional artifact_id). "+
			"Improve summary and score_explanation for a human analyst; keep citations only from the allowed list.",
		diffID, score.TotalScore, mustJSON(reasons), mustJSON(base))
	return system, user
}

func reverseContextPrompt(diffID string, base *model.ReverseContextReport, instruction string) (string, string) {
	system := "You are a reverse-engineering assistant. Enrich the reverse context report: " +
		"better anchor strings, entry points, and call path hints from the evidence. " +
		"Do not invent evidence. " + instruction

	// Truncate snippets for the token budget; the stored draft keeps them whole.
	trimmed := *base
	trimmed.ContextSnippets = append([]model.ContextSnippet(nil), base.ContextSnippets...)
	for i, s := range trimmed.ContextSnippets {
		if len(s.Snippet) > promptSnippetCap {
			trimmed.ContextSnippets[i].Snippet = s.Snippet[:promptSnippetCap] + "..."
		}
	}
	user := fmt.Sprintf(
		"Diff id: %s.\n\nBase reverse context report:\n%s\n\n"+
			"Return a single JSON object with keys: diff_id, anchor_strings (array of strings), "+
			"probable_entry_points (array of strings), context_snippets (array of {file, lines, snippet}), "+
			"call_path_hints (array of strings), evidence_refs (array of {ref_type, stable_id}). "+
			"Only use evidence_refs from the allowed list.",
		diffID, mustJSON(&trimmed))
	return system, user
}

func hypothesesPrompt(diffID string, base *model.VulnHypotheses, instruction string) (string, string) {
	system := "You are a vulnerability research assistant. Enrich the list of testable hypotheses: " +
		"sharper statements and test_approach. Do not suggest exploit chains. Do not invent evidence. " + instruction
	user := fmt.Sprintf(
		"Diff id: %s.\n\nBase hypotheses:\n%s\n\n"+
			"Return a single JSON object with keys: diff_id, hypotheses (array of objects with "+
			"statement, evidence_refs (array of {ref_type, stable_id}), test_approach). "+
			"Only use evidence_refs from the allowed list. Add or refine hypotheses based on the evidence.",
		diffID, mustJSON(base))
	return system, user
}

func fuzzPlanPrompt(diffID string, base *model.FuzzPlan, instruction string) (string, string) {
	system := "You are a fuzzing advisor. Enrich the fuzz plan: concrete target_surface, harness_sketch, " +
		"input_model, seed_strategy, success_metrics. Do not invent evidence. " + instruction
	user := fmt.Sprintf(
		"Diff id: %s.\n\nBase fuzz plan:\n%s\n\n"+
			"Return a single JSON object with keys: diff_id, target_surface, harness_sketch, input_model, "+
			"seed_strategy, success_metrics (array of strings), evidence_refs (array of {ref_type, stable_id}). "+
			"Make the plan specific to this diff; only cite refs from the allowed list.",
		diffID, mustJSON(base))
	return system, user
}

func telemetryPrompt(diffID string, base *model.TelemetryRecommendations, instruction string) (string, string) {
	system := "You are a telemetry advisor. Enrich the telemetry recommendations: " +
		"what to log/alert on and correlations. Do not invent evidence. " + instruction
	user := fmt.Sprintf(
		"Diff id: %s.\n\nBase telemetry recommendations:\n%s\n\n"+
			"Return a single JSON object with keys: diff_id, recommendations (array of objects with "+
			"recommendation, subsystem_category, correlation, evidence_refs). Only use evidence_refs from the allowed list.",
		diffID, mustJSON(base))
	return system, user
}
