package reports

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ossensor/internal/bundle"
	"ossensor/internal/features"
	"ossensor/internal/model"
	"ossensor/internal/scoring"
)

func fixedGenerator() *Generator {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &Generator{now: func() time.Time { return at }}
}

func sampleBundle() *model.EvidenceBundle {
	hunks := []model.DiffHunk{
		{
			FilePath: "io/frame.c",
			OldStart: 40, OldCount: 3,
			NewStart: 40, NewCount: 4,
			Lines:  []string{"- old", "+ buf = malloc(n * sz);", "+ if (n >= cap) return -1;", "+ hdr = decode(in);"},
			HunkID: "1111111111111111",
		},
		{
			FilePath: "io/frame.c",
			OldStart: 90, OldCount: 1,
			NewStart: 91, NewCount: 1,
			Lines:  []string{"- a", "+ b"},
			HunkID: "2222222222222222",
		},
	}
	feats := []model.SourceFeature{
		{FeatureType: model.FeatureAllocMath, HunkID: "1111111111111111", FilePath: "io/frame.c"},
		{FeatureType: model.FeatureParsing, HunkID: "1111111111111111", FilePath: "io/frame.c"},
	}
	from := []model.BinaryFeature{
		{FeatureType: model.BinarySymbols, Value: "_frame_read", Address: "0x1000"},
		{FeatureType: model.BinaryStrings, Value: "frame decode failed: bad length"},
	}
	to := []model.BinaryFeature{
		{FeatureType: model.BinarySymbols, Value: "_frame_read", Address: "0x1040"},
		{FeatureType: model.BinarySymbols, Value: "_frame_validate", Address: "0x2000"},
		{FeatureType: model.BinaryStrings, Value: "frame decode failed: bad length"},
		{FeatureType: model.BinaryStrings, Value: "short"},
	}
	tpls := []model.LogTemplate{
		{
			TemplateID:   "tpl_00000042",
			Subsystem:    "com.example.frames",
			Category:     "io",
			FormatString: "frame decode failed: %@",
			SampleMessages: []string{
				"frame decode failed: bad length",
			},
		},
	}
	return bundle.Assemble(hunks, feats, from, to, tpls)
}

func refSet(refs []model.EvidenceRef) map[model.EvidenceRef]bool {
	set := make(map[model.EvidenceRef]bool, len(refs))
	for _, r := range refs {
		set[model.EvidenceRef{RefType: r.RefType, StableID: r.StableID}] = true
	}
	return set
}

// allowedRefs mirrors what the bundle can legally be cited for: hunks, binary
// strings (all feature values), log templates, plus the citation targets the
// scorer itself introduces.
func allowedRefs(b *model.EvidenceBundle) map[model.EvidenceRef]bool {
	set := refSet(bundleRefs(b))
	for _, p := range b.BinaryDiffPairs {
		name := p.ToFunction
		if name == "" {
			name = p.FromFunction
		}
		set[model.EvidenceRef{RefType: model.RefBinaryFunction, StableID: name}] = true
	}
	return set
}

func TestTriage_SummaryAndCitations(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	score := scoring.Score("d1", b, nil)
	rep := fixedGenerator().Triage("d1", score)

	wantSummary := fmt.Sprintf("Score %v from %d reasons.", score.TotalScore, len(score.Reasons))
	if rep.Summary != wantSummary {
		t.Fatalf("summary %q, want %q", rep.Summary, wantSummary)
	}
	var fromReasons []model.EvidenceRef
	for _, r := range score.Reasons {
		fromReasons = append(fromReasons, r.EvidenceRefs...)
	}
	if diff := cmp.Diff(fromReasons, rep.Citations); diff != "" {
		t.Fatalf("citations must be the reasons' refs in order (-want +got):\n%s", diff)
	}
	if !strings.Contains(rep.ScoreExplanation, "[1] ") {
		t.Fatalf("explanation must enumerate reasons: %q", rep.ScoreExplanation)
	}
	if !strings.Contains(rep.ScoreExplanation, "1111111111111111") {
		t.Fatalf("explanation must name evidence ids: %q", rep.ScoreExplanation)
	}
}

func TestTriage_EmptyScore(t *testing.T) {
	t.Parallel()

	rep := fixedGenerator().Triage("d0", &model.ScoreResult{DiffID: "d0"})
	if rep.Summary != "Score 0 from 0 reasons." {
		t.Fatalf("unexpected summary %q", rep.Summary)
	}
	if len(rep.Citations) != 0 || rep.ScoreExplanation != "" {
		t.Fatalf("empty score must yield empty explanation, got %+v", rep)
	}
}

func TestReverseContext_Fields(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	rep := fixedGenerator().ReverseContext("d1", b)

	// "short" is below the anchor length floor; the decode string appears in
	// both builds and anchors twice, once per side.
	want := []string{"frame decode failed: bad length", "frame decode failed: bad length"}
	if diff := cmp.Diff(want, rep.AnchorStrings); diff != "" {
		t.Fatalf("anchors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"_frame_read", "_frame_validate"}, rep.ProbableEntryPoints); diff != "" {
		t.Fatalf("entry points mismatch (-want +got):\n%s", diff)
	}
	if len(rep.ContextSnippets) != 2 {
		t.Fatalf("expected one snippet per hunk, got %+v", rep.ContextSnippets)
	}
	if s := rep.ContextSnippets[0]; s.File != "io/frame.c" || s.Lines != [2]int{40, 43} {
		t.Fatalf("unexpected snippet geometry %+v", s)
	}
	if len(rep.EvidenceRefs) == 0 || len(rep.EvidenceRefs) > maxContextRefs {
		t.Fatalf("refs out of bounds: %d", len(rep.EvidenceRefs))
	}
}

func TestReverseContext_LongAnchorTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	b := &model.EvidenceBundle{
		BinaryFeaturesTo: []model.BinaryFeature{{FeatureType: model.BinaryStrings, Value: long}},
	}
	rep := fixedGenerator().ReverseContext("d1", b)
	if len(rep.AnchorStrings) != 1 || len(rep.AnchorStrings[0]) != anchorTruncateLen {
		t.Fatalf("anchor not truncated: %+v", rep.AnchorStrings)
	}
}

func TestVulnHypotheses_OnePerFeature(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	rep := fixedGenerator().VulnHypotheses("d1", b)
	if len(rep.Hypotheses) != 2 {
		t.Fatalf("expected one hypothesis per feature, got %+v", rep.Hypotheses)
	}
	if !strings.Contains(rep.Hypotheses[0].Statement, "allocation") {
		t.Fatalf("first hypothesis should follow the alloc feature: %q", rep.Hypotheses[0].Statement)
	}
	for _, h := range rep.Hypotheses {
		if len(h.EvidenceRefs) != 1 || h.EvidenceRefs[0].RefType != model.RefDiffHunk {
			t.Fatalf("hypothesis must cite its hunk: %+v", h)
		}
	}
}

func TestFuzzPlan_TargetPrecedence(t *testing.T) {
	t.Parallel()

	g := fixedGenerator()
	parsing := &model.EvidenceBundle{SourceFeatures: []model.SourceFeature{
		{FeatureType: model.FeatureAllocMath, HunkID: "h"},
		{FeatureType: model.FeatureParsing, HunkID: "h"},
	}}
	if p := g.FuzzPlan("d", parsing); p.TargetSurface != "Parsing/deserialization path" {
		t.Fatalf("parsing should win precedence, got %q", p.TargetSurface)
	}
	alloc := &model.EvidenceBundle{SourceFeatures: []model.SourceFeature{
		{FeatureType: model.FeatureAllocMath, HunkID: "h"},
	}}
	if p := g.FuzzPlan("d", alloc); p.TargetSurface != "Allocation/count path" {
		t.Fatalf("alloc fallback, got %q", p.TargetSurface)
	}
	if p := g.FuzzPlan("d", &model.EvidenceBundle{}); p.TargetSurface != "Parser/syscall path implied by diff" {
		t.Fatalf("generic fallback, got %q", p.TargetSurface)
	}
}

func TestFuzzPlan_RefsBounded(t *testing.T) {
	t.Parallel()

	b := &model.EvidenceBundle{}
	for i := 0; i < 40; i++ {
		b.DiffHunks = append(b.DiffHunks, model.DiffHunk{HunkID: fmt.Sprintf("%016d", i)})
	}
	p := fixedGenerator().FuzzPlan("d", b)
	if len(p.EvidenceRefs) != maxFuzzPlanRefs {
		t.Fatalf("expected %d refs, got %d", maxFuzzPlanRefs, len(p.EvidenceRefs))
	}
}

func TestTelemetry_PerTemplateAndAggregate(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	rep := fixedGenerator().Telemetry("d1", b)

	// one per template plus the aggregate for the correlation
	if len(rep.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %+v", rep.Recommendations)
	}
	first := rep.Recommendations[0]
	if first.SubsystemCategory != "com.example.frames/io" {
		t.Fatalf("unexpected subsystem %q", first.SubsystemCategory)
	}
	if !strings.HasPrefix(first.Recommendation, "Monitor for log template: frame decode failed:") {
		t.Fatalf("unexpected recommendation %q", first.Recommendation)
	}
	agg := rep.Recommendations[1]
	if agg.SubsystemCategory != "xpc" || len(agg.EvidenceRefs) != 1 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
	if agg.EvidenceRefs[0].StableID != "tpl_00000042" {
		t.Fatalf("aggregate must cite the correlated template, got %+v", agg.EvidenceRefs)
	}
}

func TestTelemetry_NoCorrelationNoAggregate(t *testing.T) {
	t.Parallel()

	b := &model.EvidenceBundle{LogTemplates: []model.LogTemplate{
		{TemplateID: "t", Subsystem: "s", Category: "c", FormatString: "f"},
	}}
	rep := fixedGenerator().Telemetry("d", b)
	if len(rep.Recommendations) != 1 {
		t.Fatalf("no aggregate expected without correlations, got %+v", rep.Recommendations)
	}
}

// Every citation in every generated report must resolve within the bundle.
func TestGenerateAll_CitationsGrounded(t *testing.T) {
	t.Parallel()

	b := sampleBundle()
	score := scoring.Score("d1", b, nil)
	set := allowedRefs(b)

	reports := fixedGenerator().GenerateAll("d1", score, b)

	check := func(kind string, refs []model.EvidenceRef) {
		t.Helper()
		for _, r := range refs {
			key := model.EvidenceRef{RefType: r.RefType, StableID: r.StableID}
			if !set[key] {
				t.Fatalf("%s cites unknown evidence %+v", kind, r)
			}
		}
	}
	check("triage", reports.Triage.Citations)
	check("reverse_context", reports.ReverseContext.EvidenceRefs)
	for _, h := range reports.VulnHypotheses.Hypotheses {
		check("hypothesis", h.EvidenceRefs)
	}
	check("fuzz_plan", reports.FuzzPlan.EvidenceRefs)
	for _, r := range reports.Telemetry.Recommendations {
		check("telemetry", r.EvidenceRefs)
	}
}

func TestGenerateAll_Deterministic(t *testing.T) {
	t.Parallel()

	// End to end through the rule pipeline so determinism covers extraction,
	// assembly and scoring, not just the generators.
	hunks := []model.DiffHunk{{
		FilePath: "p.c",
		OldStart: 1, OldCount: 1, NewStart: 1, NewCount: 1,
		Lines:  []string{"- x", "+ out = decode(in);"},
		HunkID: "aaaaaaaaaaaaaaaa",
	}}
	feats := features.NewExtractor(nil).Extract(hunks)
	b := bundle.Assemble(hunks, feats, nil, nil, nil)
	score := scoring.Score("d", b, nil)

	g := fixedGenerator()
	first := g.GenerateAll("d", score, b)
	second := g.GenerateAll("d", score, b)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reports not reproducible (-first +second):\n%s", diff)
	}
}
