package model

import "time"

// Report type names as persisted and exposed over the API.
const (
	ReportTriage         = "triage"
	ReportReverseContext = "reverse_context"
	ReportVulnHypotheses = "vuln_hypotheses"
	ReportFuzzPlan       = "fuzz_plan"
	ReportTelemetry      = "telemetry"
)

// TriageReport explains the score with citations to evidence IDs only.
type TriageReport struct {
	DiffID           string        `json:"diff_id"`
	Summary          string        `json:"summary"`
	ScoreExplanation string        `json:"score_explanation"`
	Citations        []EvidenceRef `json:"citations"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// ContextSnippet is a hunk-derived excerpt surfaced for reverse engineering.
type ContextSnippet struct {
	File    string `json:"file"`
	Lines   [2]int `json:"lines"`
	Snippet string `json:"snippet"`
}

// ReverseContextReport maps binary evidence back to source context:
// anchor strings, probable entry-point symbols, and diff snippets.
type ReverseContextReport struct {
	DiffID              string           `json:"diff_id"`
	AnchorStrings       []string         `json:"anchor_strings"`
	ProbableEntryPoints []string         `json:"probable_entry_points"`
	ContextSnippets     []ContextSnippet `json:"context_snippets"`
	CallPathHints       []string         `json:"call_path_hints"`
	EvidenceRefs        []EvidenceRef    `json:"evidence_refs"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

// VulnHypothesis is a single testable hypothesis (no exploit chains).
type VulnHypothesis struct {
	Statement    string        `json:"statement"`
	EvidenceRefs []EvidenceRef `json:"evidence_refs"`
	TestApproach string        `json:"test_approach"`
}

// VulnHypotheses is the hypothesis list for a diff.
type VulnHypotheses struct {
	DiffID      string           `json:"diff_id"`
	Hypotheses  []VulnHypothesis `json:"hypotheses"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// FuzzPlan sketches a fuzzing campaign: target surface, harness, input model,
// seed strategy and success metrics.
type FuzzPlan struct {
	DiffID         string        `json:"diff_id"`
	TargetSurface  string        `json:"target_surface"`
	HarnessSketch  string        `json:"harness_sketch"`
	InputModel     string        `json:"input_model"`
	SeedStrategy   string        `json:"seed_strategy"`
	SuccessMetrics []string      `json:"success_metrics"`
	EvidenceRefs   []EvidenceRef `json:"evidence_refs"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// TelemetryRecommendation is one thing to log or alert on.
type TelemetryRecommendation struct {
	Recommendation    string        `json:"recommendation"`
	SubsystemCategory string        `json:"subsystem_category"`
	Correlation       string        `json:"correlation"`
	EvidenceRefs      []EvidenceRef `json:"evidence_refs"`
}

// TelemetryRecommendations is the recommendation list for a diff.
type TelemetryRecommendations struct {
	DiffID          string                    `json:"diff_id"`
	Recommendations []TelemetryRecommendation `json:"recommendations"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// ReportSet bundles the five generated drafts for one diff.
type ReportSet struct {
	Triage         *TriageReport             `json:"triage"`
	ReverseContext *ReverseContextReport     `json:"reverse_context"`
	VulnHypotheses *VulnHypotheses           `json:"vuln_hypotheses"`
	FuzzPlan       *FuzzPlan                 `json:"fuzz_plan"`
	Telemetry      *TelemetryRecommendations `json:"telemetry"`
}
