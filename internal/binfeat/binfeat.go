// Package binfeat extracts deterministic features from compiled binaries:
// printable strings, imports, and symbols. String extraction is real; import
// and symbol recovery are declared placeholders until a proper object-file
// parser is wired in, so downstream consumers treat them as low-confidence.
package binfeat

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
	"ossensor/internal/model"
)

const (
	// minStringLen is the shortest printable run kept from the string table.
	minStringLen = 6

	// maxStrings caps the deduplicated string table per artifact.
	maxStrings = 2000

	// maxBundleStrings caps the strings carried into an evidence bundle.
	maxBundleStrings = 500
)

// Recognized executable magics: Mach-O 32/64 (big endian on disk), fat
// binaries, and ELF.
var magics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
	{0x7f, 'E', 'L', 'F'},
}

// Analyzer extracts features from a binary file or a directory of binaries.
type Analyzer struct {
	logger logging.Logger
}

func NewAnalyzer(logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewStdoutLogger("binfeat")
	}
	return &Analyzer{logger: logger.With(logging.Field{Key: "component", Value: "binfeat"})}
}

var _ interfaces.BinaryAnalyzer = (*Analyzer)(nil)

// ExtractFeatures reads the binary (or every binary in a directory) and
// returns the merged feature set. Files without a recognized magic are
// skipped; a path with no recognizable binaries yields an empty set, not an
// error.
func (a *Analyzer) ExtractFeatures(path string) (*model.BinaryFeatureSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat binary path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk binary dir: %w", err)
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	set := &model.BinaryFeatureSet{Metadata: map[string]string{}}
	seenStrings := make(map[string]bool)
	seenImports := make(map[string]bool)
	seenSymbols := make(map[string]bool)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			a.logger.Warn("skipping unreadable file",
				logging.Field{Key: "path", Value: f},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		if !isBinary(data) {
			continue
		}
		for _, s := range ExtractStrings(data, minStringLen) {
			if !seenStrings[s] && len(set.Strings) < maxStrings {
				seenStrings[s] = true
				set.Strings = append(set.Strings, s)
			}
		}
		for _, imp := range placeholderImports() {
			if !seenImports[imp] {
				seenImports[imp] = true
				set.Imports = append(set.Imports, imp)
			}
		}
		for _, sym := range placeholderSymbols() {
			if !seenSymbols[sym] {
				seenSymbols[sym] = true
				set.Symbols = append(set.Symbols, sym)
			}
		}
	}
	return set, nil
}

func isBinary(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	for _, m := range magics {
		if bytes.Equal(data[:4], m) {
			return true
		}
	}
	return false
}

// ExtractStrings returns every run of printable ASCII (0x20..0x7e) of at
// least minLen bytes, in file order with duplicates kept.
func ExtractStrings(data []byte, minLen int) []string {
	var out []string
	start := -1
	for i, b := range data {
		if b >= 0x20 && b <= 0x7e {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minLen {
			out = append(out, string(data[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(data)-start >= minLen {
		out = append(out, string(data[start:]))
	}
	return out
}

// placeholderImports stands in for otool -L / dynamic-section parsing.
func placeholderImports() []string {
	return []string{
		"/usr/lib/libSystem.B.dylib",
		"/usr/lib/libobjc.A.dylib",
	}
}

// placeholderSymbols stands in for nm / symbol-table parsing.
func placeholderSymbols() []string {
	return []string{
		"_main",
		"_malloc",
		"_free",
	}
}

// FeaturesToList flattens a stored feature set into evidence-bundle entries.
// Strings are capped harder than at extraction time to keep bundles bounded.
func FeaturesToList(set *model.BinaryFeatureSet, sourceFile string) []model.BinaryFeature {
	if set == nil {
		return nil
	}
	var out []model.BinaryFeature
	strs := set.Strings
	if len(strs) > maxBundleStrings {
		strs = strs[:maxBundleStrings]
	}
	for _, s := range strs {
		out = append(out, model.BinaryFeature{FeatureType: model.BinaryStrings, Value: s})
	}
	for _, imp := range set.Imports {
		out = append(out, model.BinaryFeature{FeatureType: model.BinaryImports, Value: imp})
	}
	for _, sym := range set.Symbols {
		out = append(out, model.BinaryFeature{FeatureType: model.BinarySymbols, Value: sym})
	}
	keys := make([]string, 0, len(set.Metadata))
	for k := range set.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, model.BinaryFeature{FeatureType: model.BinaryMetadata, Value: set.Metadata[k], SourceFile: k})
	}
	return out
}
