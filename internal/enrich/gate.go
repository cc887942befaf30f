// Package enrich optionally rewrites report drafts through an external
// completion provider, with a grounding gate between the provider and the
// stored report. The gate enforces two rules: any failure (transport error,
// unparsable output, wrong shape) falls back to the unmodified draft, and any
// citation outside the bundle's allow-list is silently dropped. Rules-only
// operation is the no-op provider, which is also what an unconfigured
// deployment gets.
package enrich

import (
	"encoding/json"
	"strings"

	"ossensor/internal/model"
)

// Field length caps applied to provider output. Anything longer is truncated,
// not rejected; the narrative fields are advisory and a runaway provider must
// not bloat stored reports.
const (
	maxSummaryLen        = 2000
	maxExplanationLen    = 8000
	maxAnchorsEnriched   = 50
	maxEntryPtsEnriched  = 20
	maxSnippetsEnriched  = 30
	maxHintsEnriched     = 20
	maxRefsEnriched      = 50
	maxHypotheses        = 20
	maxStatementLen      = 1000
	maxApproachLen       = 500
	maxTargetLen         = 500
	maxHarnessLen        = 3000
	maxInputModelLen     = 1500
	maxSeedStrategyLen   = 1000
	maxMetrics           = 15
	maxRecommendations   = 25
	maxRecommendationLen = 500
	maxSubsystemLen      = 100
	maxCorrelationLen    = 300
)

// stripFence removes a single markdown code fence wrapping the payload.
// Providers in JSON mode usually return bare JSON, but some wrap it anyway.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// rawRef mirrors the citation shape requested from the provider.
type rawRef struct {
	RefType    string `json:"ref_type"`
	ArtifactID string `json:"artifact_id,omitempty"`
	StableID   string `json:"stable_id"`
}

// parseRefs converts provider citations to EvidenceRefs, drops entries with
// missing fields, then intersects with the allow-list.
func parseRefs(raw []rawRef, allow *AllowList) []model.EvidenceRef {
	var refs []model.EvidenceRef
	for _, r := range raw {
		if r.RefType == "" || r.StableID == "" {
			continue
		}
		refs = append(refs, model.EvidenceRef{RefType: r.RefType, ArtifactID: r.ArtifactID, StableID: r.StableID})
	}
	return allow.Filter(refs)
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// orString returns the provider's value when present, the draft's otherwise.
func orString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func clipList(in []string, n int) []string {
	if len(in) > n {
		in = in[:n]
	}
	return in
}

// parseTriage validates an enriched triage payload against the draft.
func parseTriage(text string, base *model.TriageReport, allow *AllowList) (*model.TriageReport, bool) {
	var data struct {
		DiffID           string   `json:"diff_id"`
		Summary          string   `json:"summary"`
		ScoreExplanation string   `json:"score_explanation"`
		Citations        []rawRef `json:"citations"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, false
	}
	return &model.TriageReport{
		DiffID:           orString(data.DiffID, base.DiffID),
		Summary:          clip(orString(data.Summary, base.Summary), maxSummaryLen),
		ScoreExplanation: clip(orString(data.ScoreExplanation, base.ScoreExplanation), maxExplanationLen),
		Citations:        parseRefs(data.Citations, allow),
		GeneratedAt:      base.GeneratedAt,
	}, true
}

type rawSnippet struct {
	File    string `json:"file"`
	Lines   [2]int `json:"lines"`
	Snippet string `json:"snippet"`
}

func parseReverseContext(text string, base *model.ReverseContextReport, allow *AllowList) (*model.ReverseContextReport, bool) {
	var data struct {
		DiffID              string       `json:"diff_id"`
		AnchorStrings       []string     `json:"anchor_strings"`
		ProbableEntryPoints []string     `json:"probable_entry_points"`
		ContextSnippets     []rawSnippet `json:"context_snippets"`
		CallPathHints       []string     `json:"call_path_hints"`
		EvidenceRefs        []rawRef     `json:"evidence_refs"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, false
	}
	snippets := base.ContextSnippets
	if data.ContextSnippets != nil {
		snippets = make([]model.ContextSnippet, 0, len(data.ContextSnippets))
		for _, s := range data.ContextSnippets {
			snippets = append(snippets, model.ContextSnippet{File: s.File, Lines: s.Lines, Snippet: s.Snippet})
		}
		if len(snippets) > maxSnippetsEnriched {
			snippets = snippets[:maxSnippetsEnriched]
		}
	}
	anchors := data.AnchorStrings
	if anchors == nil {
		anchors = base.AnchorStrings
	}
	entries := data.ProbableEntryPoints
	if entries == nil {
		entries = base.ProbableEntryPoints
	}
	hints := data.CallPathHints
	if hints == nil {
		hints = base.CallPathHints
	}
	refs := parseRefs(data.EvidenceRefs, allow)
	if len(refs) > maxRefsEnriched {
		refs = refs[:maxRefsEnriched]
	}
	return &model.ReverseContextReport{
		DiffID:              orString(data.DiffID, base.DiffID),
		AnchorStrings:       clipList(anchors, maxAnchorsEnriched),
		ProbableEntryPoints: clipList(entries, maxEntryPtsEnriched),
		ContextSnippets:     snippets,
		CallPathHints:       clipList(hints, maxHintsEnriched),
		EvidenceRefs:        refs,
		GeneratedAt:         base.GeneratedAt,
	}, true
}

func parseHypotheses(text string, base *model.VulnHypotheses, allow *AllowList) (*model.VulnHypotheses, bool) {
	var data struct {
		DiffID     string `json:"diff_id"`
		Hypotheses []struct {
			Statement    string   `json:"statement"`
			EvidenceRefs []rawRef `json:"evidence_refs"`
			TestApproach string   `json:"test_approach"`
		} `json:"hypotheses"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, false
	}
	var hyps []model.VulnHypothesis
	for _, h := range data.Hypotheses {
		if h.Statement == "" {
			continue
		}
		hyps = append(hyps, model.VulnHypothesis{
			Statement:    clip(h.Statement, maxStatementLen),
			EvidenceRefs: parseRefs(h.EvidenceRefs, allow),
			TestApproach: clip(h.TestApproach, maxApproachLen),
		})
		if len(hyps) == maxHypotheses {
			break
		}
	}
	return &model.VulnHypotheses{
		DiffID:      orString(data.DiffID, base.DiffID),
		Hypotheses:  hyps,
		GeneratedAt: base.GeneratedAt,
	}, true
}

func parseFuzzPlan(text string, base *model.FuzzPlan, allow *AllowList) (*model.FuzzPlan, bool) {
	var data struct {
		DiffID         string   `json:"diff_id"`
		TargetSurface  string   `json:"target_surface"`
		HarnessSketch  string   `json:"harness_sketch"`
		InputModel     string   `json:"input_model"`
		SeedStrategy   string   `json:"seed_strategy"`
		SuccessMetrics []string `json:"success_metrics"`
		EvidenceRefs   []rawRef `json:"evidence_refs"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, false
	}
	metrics := data.SuccessMetrics
	if metrics == nil {
		metrics = base.SuccessMetrics
	}
	return &model.FuzzPlan{
		DiffID:         orString(data.DiffID, base.DiffID),
		TargetSurface:  clip(orString(data.TargetSurface, base.TargetSurface), maxTargetLen),
		HarnessSketch:  clip(orString(data.HarnessSketch, base.HarnessSketch), maxHarnessLen),
		InputModel:     clip(orString(data.InputModel, base.InputModel), maxInputModelLen),
		SeedStrategy:   clip(orString(data.SeedStrategy, base.SeedStrategy), maxSeedStrategyLen),
		SuccessMetrics: clipList(metrics, maxMetrics),
		EvidenceRefs:   parseRefs(data.EvidenceRefs, allow),
		GeneratedAt:    base.GeneratedAt,
	}, true
}

func parseTelemetry(text string, base *model.TelemetryRecommendations, allow *AllowList) (*model.TelemetryRecommendations, bool) {
	var data struct {
		DiffID          string `json:"diff_id"`
		Recommendations []struct {
			Recommendation    string   `json:"recommendation"`
			SubsystemCategory string   `json:"subsystem_category"`
			Correlation       string   `json:"correlation"`
			EvidenceRefs      []rawRef `json:"evidence_refs"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &data); err != nil {
		return nil, false
	}
	var recs []model.TelemetryRecommendation
	for _, r := range data.Recommendations {
		if r.Recommendation == "" {
			continue
		}
		recs = append(recs, model.TelemetryRecommendation{
			Recommendation:    clip(r.Recommendation, maxRecommendationLen),
			SubsystemCategory: clip(r.SubsystemCategory, maxSubsystemLen),
			Correlation:       clip(r.Correlation, maxCorrelationLen),
			EvidenceRefs:      parseRefs(r.EvidenceRefs, allow),
		})
		if len(recs) == maxRecommendations {
			break
		}
	}
	return &model.TelemetryRecommendations{
		DiffID:          orString(data.DiffID, base.DiffID),
		Recommendations: recs,
		GeneratedAt:     base.GeneratedAt,
	}, true
}
