// Package scoring turns an evidence bundle into a total score with ordered,
// evidence-citing reasons. Scoring is a pure function: no randomness, no
// clock, no map iteration feeding the output, so an identical bundle yields a
// byte-identical result in every process.
package scoring

import (
	"fmt"
	"math"

	"ossensor/internal/model"
)

// Weights maps feature and correlation kinds to their score contribution.
type Weights map[string]float64

// Weight keys that are not source feature categories.
const (
	WeightSymbolsChanged = "binary_symbols_changed"
	WeightLogCorrelation = "log_binary_correlation"
)

// defaultWeight applies when a kind has no configured weight.
const defaultWeight = 1.0

// DefaultWeights returns the fixed per-kind contributions. Values are part
// of the product contract: stored scores must be reproducible after restarts
// and across machines.
func DefaultWeights() Weights {
	return Weights{
		model.FeatureAllocMath:      3.0,
		model.FeatureBoundsCheck:    2.5,
		model.FeatureParsing:        2.0,
		model.FeaturePrivilegeCheck: 2.5,
		WeightSymbolsChanged:        1.0,
		WeightLogCorrelation:        1.2,
	}
}

func (w Weights) get(kind string) float64 {
	if v, ok := w[kind]; ok {
		return v
	}
	return defaultWeight
}

// Score computes the total and reasons for one diff's bundle. Reasons follow
// the bundle's list order: source features, then binary pairs, then log
// correlations. An empty bundle scores 0.0 with no reasons; that is valid
// input, not an error.
func Score(diffID string, bundle *model.EvidenceBundle, weights Weights) *model.ScoreResult {
	if weights == nil {
		weights = DefaultWeights()
	}
	total := 0.0
	var reasons []model.Reason

	for _, sf := range bundle.SourceFeatures {
		w := weights.get(sf.FeatureType)
		total += w
		reasons = append(reasons, model.Reason{
			Reason:            fmt.Sprintf("Source feature: %s in %s", sf.FeatureType, sf.FilePath),
			ScoreContribution: w,
			EvidenceRefs: []model.EvidenceRef{
				{RefType: model.RefDiffHunk, StableID: sf.HunkID},
			},
		})
	}

	for _, bd := range bundle.BinaryDiffPairs {
		w := weights.get(WeightSymbolsChanged)
		total += w
		stable := bd.ToFunction
		if stable == "" {
			stable = bd.FromFunction
		}
		reasons = append(reasons, model.Reason{
			Reason:            fmt.Sprintf("Binary symbol change: %s -> %s", bd.FromFunction, bd.ToFunction),
			ScoreContribution: w,
			EvidenceRefs: []model.EvidenceRef{
				{RefType: model.RefBinaryFunction, StableID: stable},
			},
		})
	}

	for _, m := range bundle.LogBinaryMatches {
		w := weights.get(WeightLogCorrelation)
		total += w
		reasons = append(reasons, model.Reason{
			Reason:            fmt.Sprintf("Log template correlated to binary: %s", m.TemplateID),
			ScoreContribution: w,
			EvidenceRefs: []model.EvidenceRef{
				{RefType: model.RefLogTemplate, StableID: m.TemplateID},
			},
		})
	}

	return &model.ScoreResult{
		TotalScore: round2(total),
		Reasons:    reasons,
		DiffID:     diffID,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
