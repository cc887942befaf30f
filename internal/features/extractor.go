package features

import (
	"fmt"
	"strings"

	"ossensor/internal/logging"
	"ossensor/internal/model"
)

// Extractor runs the category rule sets over diff hunks. It is a pure
// function of its input hunks: no state survives between calls and identical
// hunks always produce identical features in identical order.
type Extractor struct {
	rules  []categoryRules
	logger logging.Logger
}

// NewExtractor compiles the default rule sets.
func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewStdoutLogger("features")
	}
	return &Extractor{rules: defaultRules(), logger: logger}
}

// Extract evaluates every category against every hunk's bounded snippet and
// returns the emitted features in hunk order, category order within a hunk.
func (x *Extractor) Extract(hunks []model.DiffHunk) []model.SourceFeature {
	var out []model.SourceFeature
	for _, h := range hunks {
		snippet := hunkSnippet(h)
		for _, cat := range x.rules {
			for _, p := range cat.patterns {
				if p.MatchString(snippet) {
					out = append(out, model.SourceFeature{
						FeatureType: cat.category,
						Description: fmt.Sprintf("Pattern match: %s", cat.category),
						HunkID:      h.HunkID,
						FilePath:    h.FilePath,
						LineRange:   [2]int{h.OldStart, h.OldStart + h.OldCount},
						Snippet:     truncate(snippet, snippetMaxBytes),
					})
					break
				}
			}
		}
	}
	if len(out) > 0 {
		x.logger.Debug("extracted source features",
			logging.Field{Key: "hunks", Value: len(hunks)},
			logging.Field{Key: "features", Value: len(out)})
	}
	return out
}

func hunkSnippet(h model.DiffHunk) string {
	lines := h.Lines
	if len(lines) > snippetLines {
		lines = lines[:snippetLines]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
