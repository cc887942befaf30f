package model

// Reason is one scored observation. Every reason cites the evidence that
// produced it; a reason without refs is a bug in the scoring engine.
type Reason struct {
	// Reason is the human-readable justification text.
	Reason string `json:"reason"`

	// ScoreContribution is this reason's share of the total.
	ScoreContribution float64 `json:"score_contribution"`

	// EvidenceRefs point at the bundle entries backing this reason.
	EvidenceRefs []EvidenceRef `json:"evidence_refs"`
}

// ScoreResult is the scoring engine's output for one diff: the exact sum of
// reason contributions (rounded to two decimals) plus the ordered reasons.
// Results are computed fresh per invocation and never mutated in place.
type ScoreResult struct {
	TotalScore float64  `json:"total_score"`
	Reasons    []Reason `json:"reasons"`
	DiffID     string   `json:"diff_id"`
}
