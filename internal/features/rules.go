package features

import "regexp"

// snippetLines bounds how many hunk lines each rule set sees.
const snippetLines = 20

// snippetMaxBytes bounds the snippet stored on an emitted feature.
const snippetMaxBytes = 500

// categoryRules is one feature category with its ordered pattern list.
// The first matching pattern wins; later patterns in the same category are
// not evaluated, so a hunk emits at most one feature per category.
type categoryRules struct {
	category string
	patterns []*regexp.Regexp
}

// defaultRules returns the fixed rule sets, in evaluation order. Matching is
// case-insensitive substring/regex matching over a bounded snippet with no
// semantic analysis: a recall-oriented triage signal that accepts false
// positives rather than missing candidates.
func defaultRules() []categoryRules {
	return []categoryRules{
		{
			category: "alloc_math",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(malloc|calloc|realloc|kalloc|ALLOC)\s*\(\s*[^)]*\*`),
				regexp.MustCompile(`(?i)size\s*=\s*[^;]*\*`),
				regexp.MustCompile(`(?i)length\s*\*\s*sizeof`),
				regexp.MustCompile(`(?i)count\s*\*\s*sizeof`),
			},
		},
		{
			category: "bounds_check",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(bounds_check|range_check|overflow_check)\b`),
				regexp.MustCompile(`(?i)if\s*\(\s*\w+\s*[<>]=?\s*`),
				regexp.MustCompile(`(?i)assert\s*\(\s*[^)]*[<>]`),
			},
		},
		{
			category: "parsing",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(parse|deserialize|decode|unpack)\b`),
				regexp.MustCompile(`(?i)sscanf|fscanf|scanf`),
				regexp.MustCompile(`(?i)json_|xml_|plist_`),
			},
		},
		{
			category: "privilege_check",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(entitlement|sandbox|privilege|capability|root_only)\b`),
				regexp.MustCompile(`(?i)check_entitlement|require_entitlement`),
				regexp.MustCompile(`(?i)SECURITY_|kauth_`),
			},
		},
	}
}
