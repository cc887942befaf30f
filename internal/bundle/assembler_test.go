package bundle

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ossensor/internal/model"
)

func sym(name, addr string) model.BinaryFeature {
	return model.BinaryFeature{FeatureType: model.BinarySymbols, Value: name, Address: addr}
}

func str(v string) model.BinaryFeature {
	return model.BinaryFeature{FeatureType: model.BinaryStrings, Value: v}
}

func TestMatchSymbols_MatchedAndAdded(t *testing.T) {
	t.Parallel()

	from := []model.BinaryFeature{sym("_main", "0x1000"), sym("_helper", "0x2000")}
	to := []model.BinaryFeature{sym("_main", "0x1100"), sym("_new_entry", "0x3000")}

	pairs := MatchSymbols(from, to)
	want := []model.BinaryDiffPair{
		{
			FromFunction:   "_main",
			ToFunction:     "_main",
			FromAddress:    "0x1000",
			ToAddress:      "0x1100",
			SimilarityNote: "matched by name (stub)",
		},
		{
			ToFunction:     "_new_entry",
			ToAddress:      "0x3000",
			SimilarityNote: "added in to build",
		},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Fatalf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchSymbols_IgnoresNonSymbolFeatures(t *testing.T) {
	t.Parallel()

	from := []model.BinaryFeature{str("_fake")}
	to := []model.BinaryFeature{str("_fake"), sym("_real", "")}
	pairs := MatchSymbols(from, to)
	if len(pairs) != 1 || pairs[0].ToFunction != "_real" {
		t.Fatalf("expected single added pair for _real, got %+v", pairs)
	}
}

func TestCorrelateLogs_ExactSampleMatch(t *testing.T) {
	t.Parallel()

	tpl := model.LogTemplate{
		TemplateID:     "tpl_00000001",
		FormatString:   "frame decode failed: %@",
		SampleMessages: []string{"frame decode failed: checksum"},
	}
	pairs := CorrelateLogs([]model.LogTemplate{tpl}, []string{"frame decode failed: checksum"})
	if len(pairs) != 1 {
		t.Fatalf("expected exactly one pair, got %+v", pairs)
	}
	if pairs[0].TemplateID != "tpl_00000001" || pairs[0].StringValue != "frame decode failed: checksum" {
		t.Fatalf("unexpected pair %+v", pairs[0])
	}
}

func TestCorrelateLogs_NoOverlapNoPairs(t *testing.T) {
	t.Parallel()

	tpl := model.LogTemplate{
		TemplateID:   "tpl_00000002",
		FormatString: "watchdog timer elapsed",
	}
	pairs := CorrelateLogs([]model.LogTemplate{tpl}, []string{"completely unrelated"})
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", pairs)
	}
}

func TestCorrelateLogs_SubstringEitherDirection(t *testing.T) {
	t.Parallel()

	// Template text contained in a longer binary string.
	tplA := model.LogTemplate{TemplateID: "a", FormatString: "auth denied for %@"}
	pairs := CorrelateLogs([]model.LogTemplate{tplA}, []string{"xpc: auth denied for %@ (retrying)"})
	if len(pairs) != 1 || pairs[0].StringValue != "xpc: auth denied for %@ (retrying)" {
		t.Fatalf("expected containment pair, got %+v", pairs)
	}

	// Binary string contained in the template text.
	tplB := model.LogTemplate{TemplateID: "b", FormatString: "prefix mapping table rebuilt after flush"}
	pairs = CorrelateLogs([]model.LogTemplate{tplB}, []string{"mapping table rebuilt"})
	if len(pairs) != 1 || pairs[0].TemplateID != "b" {
		t.Fatalf("expected reverse containment pair, got %+v", pairs)
	}
}

func TestCorrelateLogs_EmptyTable(t *testing.T) {
	t.Parallel()

	tpl := model.LogTemplate{TemplateID: "x", FormatString: "anything"}
	if pairs := CorrelateLogs([]model.LogTemplate{tpl}, nil); len(pairs) != 0 {
		t.Fatalf("expected no pairs without binary strings, got %+v", pairs)
	}
}

func TestAssemble_WiresCorrelations(t *testing.T) {
	t.Parallel()

	hunks := []model.DiffHunk{{FilePath: "f.c", HunkID: "h1", OldStart: 1, NewStart: 1}}
	feats := []model.SourceFeature{{FeatureType: model.FeatureParsing, HunkID: "h1", FilePath: "f.c"}}
	from := []model.BinaryFeature{sym("_old", "")}
	to := []model.BinaryFeature{sym("_old", ""), sym("_added", ""), str("parser rejected input")}
	tpls := []model.LogTemplate{{TemplateID: "t1", FormatString: "parser rejected input"}}

	b := Assemble(hunks, feats, from, to, tpls)
	if len(b.BinaryDiffPairs) != 2 {
		t.Fatalf("expected matched+added pairs, got %+v", b.BinaryDiffPairs)
	}
	if len(b.LogBinaryMatches) != 1 || b.LogBinaryMatches[0].TemplateID != "t1" {
		t.Fatalf("expected one log correlation, got %+v", b.LogBinaryMatches)
	}
	if len(b.DiffHunks) != 1 || len(b.SourceFeatures) != 1 {
		t.Fatalf("bundle must carry hunks and features unchanged")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	from := []model.BinaryFeature{sym("_a", ""), sym("_b", "")}
	to := []model.BinaryFeature{sym("_b", ""), sym("_c", ""), str("s1"), str("s2")}
	tpls := []model.LogTemplate{{TemplateID: "t", FormatString: "s1"}}

	first := Assemble(nil, nil, from, to, tpls)
	second := Assemble(nil, nil, from, to, tpls)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("assembly not reproducible (-first +second):\n%s", diff)
	}
}
