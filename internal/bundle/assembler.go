// Package bundle assembles diff, binary and log evidence into one
// EvidenceBundle and derives the cross-artifact correlations. Everything here
// is a pure function of its inputs: identical inputs produce an identical
// bundle, including ordering, on every run.
package bundle

import (
	"strings"

	"ossensor/internal/model"
)

// substringProbe bounds how much of a template feeds the containment check.
const substringProbe = 50

// Assemble builds the evidence bundle for one diff. Binary strings from the
// "to" side feed the log correlation, matching the premise that new log
// traffic is explained by the newer binary.
func Assemble(
	hunks []model.DiffHunk,
	sourceFeatures []model.SourceFeature,
	binaryFrom, binaryTo []model.BinaryFeature,
	templates []model.LogTemplate,
) *model.EvidenceBundle {
	var binaryStrings []string
	for _, f := range binaryTo {
		if f.FeatureType == model.BinaryStrings {
			binaryStrings = append(binaryStrings, f.Value)
		}
	}
	return &model.EvidenceBundle{
		DiffHunks:          hunks,
		SourceFeatures:     sourceFeatures,
		BinaryFeaturesFrom: binaryFrom,
		BinaryFeaturesTo:   binaryTo,
		BinaryDiffPairs:    MatchSymbols(binaryFrom, binaryTo),
		LogTemplates:       templates,
		LogBinaryMatches:   CorrelateLogs(templates, binaryStrings),
	}
}

// MatchSymbols pairs functions across the two builds by exact symbol name,
// carrying addresses when the analyzer supplied them. Matched pairs come
// first, then symbols present only in the "to" build. A matched name says
// nothing about the implementations being equal; this is a stand-in for a
// future content-aware binary diff.
func MatchSymbols(from, to []model.BinaryFeature) []model.BinaryDiffPair {
	fromSyms := symbolIndex(from)
	toSyms := symbolIndex(to)
	toOrder := symbolOrder(to)

	var pairs []model.BinaryDiffPair
	for _, name := range toOrder {
		f, ok := fromSyms[name]
		if !ok {
			continue
		}
		pairs = append(pairs, model.BinaryDiffPair{
			FromFunction:   name,
			ToFunction:     name,
			FromAddress:    f.Address,
			ToAddress:      toSyms[name].Address,
			SimilarityNote: "matched by name (stub)",
		})
	}
	for _, name := range toOrder {
		if _, ok := fromSyms[name]; ok {
			continue
		}
		pairs = append(pairs, model.BinaryDiffPair{
			ToFunction:     name,
			ToAddress:      toSyms[name].Address,
			SimilarityNote: "added in to build",
		})
	}
	return pairs
}

func symbolIndex(features []model.BinaryFeature) map[string]model.BinaryFeature {
	idx := make(map[string]model.BinaryFeature)
	for _, f := range features {
		if f.FeatureType == model.BinarySymbols {
			idx[f.Value] = f
		}
	}
	return idx
}

func symbolOrder(features []model.BinaryFeature) []string {
	seen := make(map[string]bool)
	var order []string
	for _, f := range features {
		if f.FeatureType != model.BinarySymbols || seen[f.Value] {
			continue
		}
		seen[f.Value] = true
		order = append(order, f.Value)
	}
	return order
}

// CorrelateLogs matches each template's format string and sample messages
// against the binary string table: exact membership first, then bounded
// substring containment in either direction. An exact hit ends the template's
// search; a substring hit only ends the current candidate, so one template
// can contribute several pairs when multiple of its messages graze the
// string table.
func CorrelateLogs(templates []model.LogTemplate, binaryStrings []string) []model.LogBinaryMatch {
	inTable := make(map[string]bool, len(binaryStrings))
	for _, s := range binaryStrings {
		inTable[s] = true
	}

	var pairs []model.LogBinaryMatch
	for _, t := range templates {
		candidates := append([]string{t.FormatString}, t.SampleMessages...)
		for _, s := range candidates {
			if inTable[s] {
				pairs = append(pairs, model.LogBinaryMatch{TemplateID: t.TemplateID, StringValue: s})
				break
			}
			probe := s
			if len(probe) > substringProbe {
				probe = probe[:substringProbe]
			}
			for _, b := range binaryStrings {
				if strings.Contains(b, probe) || strings.Contains(s, b) {
					pairs = append(pairs, model.LogBinaryMatch{TemplateID: t.TemplateID, StringValue: b})
					break
				}
			}
		}
	}
	return pairs
}
