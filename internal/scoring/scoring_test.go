package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ossensor/internal/model"
)

func TestScore_EmptyBundleIsZero(t *testing.T) {
	t.Parallel()

	result := Score("1", &model.EvidenceBundle{}, nil)
	if result.TotalScore != 0.0 {
		t.Fatalf("expected 0.0, got %v", result.TotalScore)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %+v", result.Reasons)
	}
	if result.DiffID != "1" {
		t.Fatalf("expected diff id carried through, got %q", result.DiffID)
	}
}

func TestScore_SingleAllocMathFeature(t *testing.T) {
	t.Parallel()

	bundle := &model.EvidenceBundle{
		SourceFeatures: []model.SourceFeature{{
			FeatureType: model.FeatureAllocMath,
			HunkID:      "abc123",
			FilePath:    "parser.c",
		}},
	}
	result := Score("2", bundle, nil)
	if want := DefaultWeights()[model.FeatureAllocMath]; result.TotalScore != want {
		t.Fatalf("expected %v, got %v", want, result.TotalScore)
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("expected 1 reason, got %d", len(result.Reasons))
	}
	ref := result.Reasons[0].EvidenceRefs[0]
	if ref.RefType != model.RefDiffHunk || ref.StableID != "abc123" {
		t.Fatalf("reason must cite the hunk, got %+v", ref)
	}
}

func TestScore_MultipleKindsSum(t *testing.T) {
	t.Parallel()

	bundle := &model.EvidenceBundle{
		SourceFeatures: []model.SourceFeature{
			{FeatureType: model.FeatureBoundsCheck, HunkID: "h1", FilePath: "a.c"},
			{FeatureType: model.FeatureParsing, HunkID: "h2", FilePath: "b.c"},
		},
		BinaryDiffPairs: []model.BinaryDiffPair{
			{FromFunction: "_f", ToFunction: "_f"},
		},
		LogBinaryMatches: []model.LogBinaryMatch{
			{TemplateID: "tpl_1", StringValue: "s"},
		},
	}
	w := DefaultWeights()
	result := Score("3", bundle, nil)
	want := w[model.FeatureBoundsCheck] + w[model.FeatureParsing] + w[WeightSymbolsChanged] + w[WeightLogCorrelation]
	want = float64(int(want*100+0.5)) / 100
	if result.TotalScore != want {
		t.Fatalf("expected %v, got %v", want, result.TotalScore)
	}
	if len(result.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d", len(result.Reasons))
	}
}

func TestScore_UnknownKindGetsDefaultWeight(t *testing.T) {
	t.Parallel()

	bundle := &model.EvidenceBundle{
		SourceFeatures: []model.SourceFeature{{FeatureType: "mystery", HunkID: "h", FilePath: "f"}},
	}
	result := Score("4", bundle, nil)
	if result.TotalScore != defaultWeight {
		t.Fatalf("expected default weight %v, got %v", defaultWeight, result.TotalScore)
	}
}

func TestScore_AddedSymbolCitesToFunction(t *testing.T) {
	t.Parallel()

	bundle := &model.EvidenceBundle{
		BinaryDiffPairs: []model.BinaryDiffPair{{ToFunction: "_added"}},
	}
	result := Score("5", bundle, nil)
	if ref := result.Reasons[0].EvidenceRefs[0]; ref.RefType != model.RefBinaryFunction || ref.StableID != "_added" {
		t.Fatalf("expected binary_function/_added, got %+v", ref)
	}
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	bundle := &model.EvidenceBundle{
		SourceFeatures: []model.SourceFeature{
			{FeatureType: model.FeatureAllocMath, HunkID: "h1", FilePath: "x.c"},
			{FeatureType: model.FeaturePrivilegeCheck, HunkID: "h2", FilePath: "y.c"},
		},
		LogBinaryMatches: []model.LogBinaryMatch{{TemplateID: "t1"}, {TemplateID: "t2"}},
	}
	first := Score("6", bundle, nil)
	second := Score("6", bundle, nil)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("score not reproducible (-first +second):\n%s", diff)
	}
}

// Permuting the feature list permutes the reasons identically but cannot
// change the total.
func TestScore_OrderIndependentTotal(t *testing.T) {
	t.Parallel()

	a := model.SourceFeature{FeatureType: model.FeatureAllocMath, HunkID: "h1", FilePath: "x.c"}
	b := model.SourceFeature{FeatureType: model.FeatureParsing, HunkID: "h2", FilePath: "y.c"}
	c := model.SourceFeature{FeatureType: model.FeatureBoundsCheck, HunkID: "h3", FilePath: "z.c"}

	fwd := Score("7", &model.EvidenceBundle{SourceFeatures: []model.SourceFeature{a, b, c}}, nil)
	rev := Score("7", &model.EvidenceBundle{SourceFeatures: []model.SourceFeature{c, b, a}}, nil)

	if fwd.TotalScore != rev.TotalScore {
		t.Fatalf("total changed under permutation: %v vs %v", fwd.TotalScore, rev.TotalScore)
	}
	if fwd.Reasons[0].EvidenceRefs[0].StableID != "h1" || rev.Reasons[0].EvidenceRefs[0].StableID != "h3" {
		t.Fatalf("reason order must follow input order")
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{
		0:      0,
		1.005:  1.0, // binary representation of 1.005 is just below the midpoint
		2.675:  2.67,
		3.14159: 3.14,
		7.2:    7.2,
	}
	for in, want := range cases {
		if got := round2(in); got != want {
			t.Fatalf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}
