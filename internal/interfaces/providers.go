package interfaces

import "ossensor/internal/model"

// TreeReader lists and reads the files of one source tree. Read failures on
// an individual file must be reported per file, not abort a whole listing;
// the diff engine treats an unreadable side as empty.
type TreeReader interface {
	// ListFiles returns relative paths of regular files under root,
	// excluding dotfiles. A missing root yields an empty listing.
	ListFiles(root string) ([]string, error)

	// ReadLines returns the file's content split into lines, without
	// trailing newlines. A missing file yields (nil, nil).
	ReadLines(root, rel string) ([]string, error)
}

// BinaryAnalyzer extracts derived features from a compiled binary or a
// directory of binaries.
type BinaryAnalyzer interface {
	ExtractFeatures(path string) (*model.BinaryFeatureSet, error)
}

// LogAnalyzer extracts message templates from a log archive or crash dir.
type LogAnalyzer interface {
	ExtractTemplates(path string) ([]model.LogTemplate, error)
}
