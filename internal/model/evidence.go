package model

// Evidence reference types. Every citation in every report uses one of these
// as EvidenceRef.RefType; nothing downstream may invent new ones.
const (
	RefDiffHunk       = "diff_hunk"
	RefString         = "string"
	RefSymbol         = "symbol"
	RefLogTemplate    = "log_template"
	RefBinaryFunction = "binary_function"
)

// Source feature categories produced by the rule-based extractor.
const (
	FeatureAllocMath      = "alloc_math"
	FeatureBoundsCheck    = "bounds_check"
	FeatureParsing        = "parsing"
	FeaturePrivilegeCheck = "privilege_check"
)

// Binary feature kinds supplied by the binary analyzer.
const (
	BinaryStrings  = "strings"
	BinaryImports  = "imports"
	BinarySymbols  = "symbols"
	BinaryMetadata = "metadata"
)

// DiffHunk is a single contiguous block of changed lines between two versions
// of a file.
type DiffHunk struct {
	// FilePath is the path relative to the compared tree root.
	FilePath string `json:"file_path"`

	// OldStart/OldCount locate the hunk in the "from" version (1-based).
	OldStart int `json:"old_start"`
	OldCount int `json:"old_count"`

	// NewStart/NewCount locate the hunk in the "to" version (1-based).
	NewStart int `json:"new_start"`
	NewCount int `json:"new_count"`

	// Lines holds the hunk text, each line prefixed "- " (removed) or "+ " (added).
	Lines []string `json:"lines"`

	// HunkID is a stable content-derived identifier. It is a deterministic
	// function of (file path, old start, new start, first five lines), so
	// re-running extraction on unchanged inputs reproduces identical IDs.
	HunkID string `json:"hunk_id"`
}

// SourceFeature is one deterministic rule match against a hunk's snippet.
// A hunk can carry at most one feature per category but features in several
// categories at once.
type SourceFeature struct {
	// FeatureType is one of the Feature* category constants.
	FeatureType string `json:"feature_type"`

	// Description is a short human-readable note about the match.
	Description string `json:"description"`

	// HunkID is the owning hunk's stable identifier.
	HunkID string `json:"hunk_id"`

	// FilePath mirrors the owning hunk's file path.
	FilePath string `json:"file_path"`

	// LineRange is (old start, old start + old count) of the owning hunk.
	LineRange [2]int `json:"line_range"`

	// Snippet is a bounded excerpt of the hunk text (max 500 bytes).
	Snippet string `json:"snippet"`
}

// BinaryFeature is one piece of evidence extracted from a compiled binary:
// a string, an import, a symbol, or a metadata entry.
type BinaryFeature struct {
	FeatureType string `json:"feature_type"`
	Value       string `json:"value"`
	Address     string `json:"address,omitempty"`
	SourceFile  string `json:"source_file,omitempty"`
}

// BinaryFeatureSet is the raw feature blob stored per binary artifact.
type BinaryFeatureSet struct {
	Strings  []string          `json:"strings"`
	Imports  []string          `json:"imports"`
	Symbols  []string          `json:"symbols"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BinaryDiffPair links a function across the two builds. Matching is by
// exact symbol name (plus address when available); this is a declared
// placeholder for a future content-aware binary diff, not a similarity claim.
type BinaryDiffPair struct {
	FromFunction   string `json:"from_function"`
	ToFunction     string `json:"to_function"`
	FromAddress    string `json:"from_address,omitempty"`
	ToAddress      string `json:"to_address,omitempty"`
	SimilarityNote string `json:"similarity_note"`
}

// LogTemplate is an extracted log message template.
type LogTemplate struct {
	// TemplateID is a stable identifier derived from the template text with a
	// fixed seed-independent hash, so it survives across processes and runs.
	TemplateID     string   `json:"template_id"`
	Subsystem      string   `json:"subsystem"`
	Category       string   `json:"category"`
	FormatString   string   `json:"format_string"`
	SampleMessages []string `json:"sample_messages"`
}

// LogBinaryMatch correlates a log template with a string found in the "to"
// binary. It asserts plausible relatedness, not proven causality.
type LogBinaryMatch struct {
	TemplateID  string `json:"template_id"`
	StringValue string `json:"string_value"`
}

// EvidenceRef is a typed, stable pointer to one piece of evidence. It is the
// only legal citation target for reasons and reports. Two refs are equal iff
// RefType and StableID match.
type EvidenceRef struct {
	RefType    string `json:"ref_type"`
	ArtifactID string `json:"artifact_id,omitempty"`
	StableID   string `json:"stable_id"`
}

// EvidenceBundle is the closure of all evidence for one diff. It is the
// single source of truth: every EvidenceRef appearing downstream must resolve
// to an entry derivable from this bundle.
type EvidenceBundle struct {
	DiffHunks          []DiffHunk       `json:"diff_hunks"`
	SourceFeatures     []SourceFeature  `json:"source_features"`
	BinaryFeaturesFrom []BinaryFeature  `json:"binary_features_from"`
	BinaryFeaturesTo   []BinaryFeature  `json:"binary_features_to"`
	BinaryDiffPairs    []BinaryDiffPair `json:"binary_diff_pairs"`
	LogTemplates       []LogTemplate    `json:"log_templates"`
	LogBinaryMatches   []LogBinaryMatch `json:"log_to_binary_matches"`
}
