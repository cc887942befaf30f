// Package reports generates the five rule-based report drafts for a scored
// diff. Generators are deterministic: every field is a pure function of the
// score result and the evidence bundle, and every citation they emit points at
// evidence already present in the bundle.
package reports

import (
	"fmt"
	"strings"
	"time"

	"ossensor/internal/model"
)

// Caps on list sizes carried into reports. Reports are working documents for
// an analyst, not dumps; bounded lists keep them readable and keep the
// enrichment prompt within budget.
const (
	maxAnchorStrings   = 20
	maxEntryPoints     = 10
	maxSnippetLines    = 15
	maxContextRefs     = 30
	maxFuzzPlanRefs    = 15
	maxAggregateCites  = 5
	anchorMinLen       = 8
	anchorTruncateLen  = 80
	stringStableIDLen  = 64
	templateExcerptLen = 80
)

// Generator produces report drafts. The zero value is not usable; construct
// with NewGenerator.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator stamping reports with the current UTC time.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// GenerateAll produces all five drafts for one diff.
func (g *Generator) GenerateAll(diffID string, score *model.ScoreResult, bundle *model.EvidenceBundle) *model.ReportSet {
	return &model.ReportSet{
		Triage:         g.Triage(diffID, score),
		ReverseContext: g.ReverseContext(diffID, bundle),
		VulnHypotheses: g.VulnHypotheses(diffID, bundle),
		FuzzPlan:       g.FuzzPlan(diffID, bundle),
		Telemetry:      g.Telemetry(diffID, bundle),
	}
}

// Triage explains the score with citations to evidence IDs only; no free-text
// speculation beyond the reason strings the scorer already produced.
func (g *Generator) Triage(diffID string, score *model.ScoreResult) *model.TriageReport {
	var citations []model.EvidenceRef
	for _, r := range score.Reasons {
		citations = append(citations, r.EvidenceRefs...)
	}
	parts := make([]string, 0, len(score.Reasons))
	for i, r := range score.Reasons {
		ids := make([]string, 0, len(r.EvidenceRefs))
		for _, e := range r.EvidenceRefs {
			ids = append(ids, e.StableID)
		}
		parts = append(parts, fmt.Sprintf("[%d] %s (evidence: [%s])", i+1, r.Reason, strings.Join(ids, ", ")))
	}
	return &model.TriageReport{
		DiffID:           diffID,
		Summary:          fmt.Sprintf("Score %v from %d reasons.", score.TotalScore, len(score.Reasons)),
		ScoreExplanation: strings.Join(parts, " "),
		Citations:        citations,
		GeneratedAt:      g.now(),
	}
}

// ReverseContext maps binary evidence back to source context: anchor strings
// worth searching for in a disassembler, probable entry-point symbols, and the
// diff snippets they likely correspond to.
func (g *Generator) ReverseContext(diffID string, bundle *model.EvidenceBundle) *model.ReverseContextReport {
	var anchors []string
	for _, b := range concatBinary(bundle) {
		if b.FeatureType == model.BinaryStrings && len(b.Value) > anchorMinLen {
			anchors = append(anchors, truncate(b.Value, anchorTruncateLen))
			if len(anchors) == maxAnchorStrings {
				break
			}
		}
	}

	var entryPoints []string
	for _, b := range bundle.BinaryFeaturesTo {
		if b.FeatureType == model.BinarySymbols {
			entryPoints = append(entryPoints, b.Value)
			if len(entryPoints) == maxEntryPoints {
				break
			}
		}
	}

	snippets := make([]model.ContextSnippet, 0, len(bundle.DiffHunks))
	for _, h := range bundle.DiffHunks {
		lines := h.Lines
		if len(lines) > maxSnippetLines {
			lines = lines[:maxSnippetLines]
		}
		snippets = append(snippets, model.ContextSnippet{
			File:    h.FilePath,
			Lines:   [2]int{h.OldStart, h.OldStart + h.OldCount},
			Snippet: strings.Join(lines, "\n"),
		})
	}

	refs := bundleRefs(bundle)
	if len(refs) > maxContextRefs {
		refs = refs[:maxContextRefs]
	}
	return &model.ReverseContextReport{
		DiffID:              diffID,
		AnchorStrings:       anchors,
		ProbableEntryPoints: entryPoints,
		ContextSnippets:     snippets,
		CallPathHints:       []string{},
		EvidenceRefs:        refs,
		GeneratedAt:         g.now(),
	}
}

// VulnHypotheses produces one testable hypothesis per extracted source
// feature. Statements stay at the level of what to investigate; exploit
// chains are out of scope.
func (g *Generator) VulnHypotheses(diffID string, bundle *model.EvidenceBundle) *model.VulnHypotheses {
	var hyps []model.VulnHypothesis
	for _, sf := range bundle.SourceFeatures {
		tmpl, ok := hypothesisTemplates[sf.FeatureType]
		if !ok {
			continue
		}
		hyps = append(hyps, model.VulnHypothesis{
			Statement:    tmpl.statement,
			TestApproach: tmpl.testApproach,
			EvidenceRefs: []model.EvidenceRef{
				{RefType: model.RefDiffHunk, StableID: sf.HunkID},
			},
		})
	}
	return &model.VulnHypotheses{
		DiffID:      diffID,
		Hypotheses:  hyps,
		GeneratedAt: g.now(),
	}
}

type hypothesisTemplate struct {
	statement    string
	testApproach string
}

var hypothesisTemplates = map[string]hypothesisTemplate{
	model.FeatureAllocMath: {
		statement:    "Size derived from external input may influence allocation; check for integer overflow.",
		testApproach: "Trace allocation size from input; fuzz with large/small counts.",
	},
	model.FeatureBoundsCheck: {
		statement:    "Bounds check added or removed; prior OOB read/write possible.",
		testApproach: "Compare with/without check; fuzz boundary values.",
	},
	model.FeatureParsing: {
		statement:    "Parsing/deserialization change; malformed input may reach new code paths.",
		testApproach: "Structure-aware fuzzing; capture valid messages as seeds.",
	},
	model.FeaturePrivilegeCheck: {
		statement:    "Privilege/entitlement gate moved or added; check for TOCTOU or bypass.",
		testApproach: "Trace entitlement checks; test with reduced privileges.",
	},
}

// FuzzPlan sketches a campaign against the surface the diff implies. The
// target selection prefers parsing evidence over allocation evidence, since a
// reachable parser is the more actionable entry point.
func (g *Generator) FuzzPlan(diffID string, bundle *model.EvidenceBundle) *model.FuzzPlan {
	target := "Parser/syscall path implied by diff"
	if len(bundle.SourceFeatures) > 0 {
		types := make(map[string]bool, len(bundle.SourceFeatures))
		for _, f := range bundle.SourceFeatures {
			types[f.FeatureType] = true
		}
		switch {
		case types[model.FeatureParsing]:
			target = "Parsing/deserialization path"
		case types[model.FeatureAllocMath]:
			target = "Allocation/count path"
		}
	}
	refs := bundleRefs(bundle)
	if len(refs) > maxFuzzPlanRefs {
		refs = refs[:maxFuzzPlanRefs]
	}
	return &model.FuzzPlan{
		DiffID:        diffID,
		TargetSurface: target,
		HarnessSketch: "Minimal harness: feed input from stdin or file; link against target binary or library.",
		InputModel:    "Fields/messages that affect size, length, or parsed structure (from diff context).",
		SeedStrategy:  "Seeds: strings from binary; log-derived parameter examples; captured message templates.",
		SuccessMetrics: []string{
			"Crash bucketing by signature",
			"Sanitizer signals (ASan, UBSan) where applicable",
			"Coverage deltas on changed functions",
		},
		EvidenceRefs: refs,
		GeneratedAt:  g.now(),
	}
}

// Telemetry recommends what to log or alert on: one recommendation per
// template, plus an aggregate alert when log traffic correlates with the new
// binary's string table.
func (g *Generator) Telemetry(diffID string, bundle *model.EvidenceBundle) *model.TelemetryRecommendations {
	var recs []model.TelemetryRecommendation
	for _, t := range bundle.LogTemplates {
		recs = append(recs, model.TelemetryRecommendation{
			Recommendation:    "Monitor for log template: " + truncate(t.FormatString, templateExcerptLen),
			SubsystemCategory: t.Subsystem + "/" + t.Category,
			Correlation:       "Correlate with process ancestry and entitlements when this template appears.",
			EvidenceRefs: []model.EvidenceRef{
				{RefType: model.RefLogTemplate, StableID: t.TemplateID},
			},
		})
	}
	if len(bundle.LogBinaryMatches) > 0 {
		matches := bundle.LogBinaryMatches
		if len(matches) > maxAggregateCites {
			matches = matches[:maxAggregateCites]
		}
		refs := make([]model.EvidenceRef, 0, len(matches))
		for _, m := range matches {
			refs = append(refs, model.EvidenceRef{RefType: model.RefLogTemplate, StableID: m.TemplateID})
		}
		recs = append(recs, model.TelemetryRecommendation{
			Recommendation:    "Alert when XPC/service path for correlated log template is invoked unusually.",
			SubsystemCategory: "xpc",
			Correlation:       "Log-binary correlation suggests entry point; enrich with entitlements.",
			EvidenceRefs:      refs,
		})
	}
	return &model.TelemetryRecommendations{
		DiffID:          diffID,
		Recommendations: recs,
		GeneratedAt:     g.now(),
	}
}

// bundleRefs flattens the bundle into citation targets: one ref per hunk,
// per binary string (identified by its first 64 bytes), and per log template.
func bundleRefs(bundle *model.EvidenceBundle) []model.EvidenceRef {
	var refs []model.EvidenceRef
	for _, h := range bundle.DiffHunks {
		refs = append(refs, model.EvidenceRef{RefType: model.RefDiffHunk, StableID: h.HunkID})
	}
	for _, b := range concatBinary(bundle) {
		if b.Value != "" {
			refs = append(refs, model.EvidenceRef{RefType: model.RefString, StableID: truncate(b.Value, stringStableIDLen)})
		}
	}
	for _, t := range bundle.LogTemplates {
		refs = append(refs, model.EvidenceRef{RefType: model.RefLogTemplate, StableID: t.TemplateID})
	}
	return refs
}

func concatBinary(bundle *model.EvidenceBundle) []model.BinaryFeature {
	out := make([]model.BinaryFeature, 0, len(bundle.BinaryFeaturesFrom)+len(bundle.BinaryFeaturesTo))
	out = append(out, bundle.BinaryFeaturesFrom...)
	out = append(out, bundle.BinaryFeaturesTo...)
	return out
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
