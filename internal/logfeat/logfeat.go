// Package logfeat extracts log message templates from captured log text.
// This is a synthetic stand-in for parsing a real unified-log archive: it
// looks for format-string-like lines and short unique message lines. Template
// IDs are derived with a fixed hash so an identical corpus reproduces
// identical IDs across processes.
package logfeat

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
	"ossensor/internal/model"
)

const (
	// maxTemplates caps the extracted template list per corpus.
	maxTemplates = 100

	// maxFormatLines bounds how many lines per file feed the format-string scan.
	maxFormatLines = 500

	// maxShortLines bounds how many lines per file feed the short-line scan.
	maxShortLines = 200

	// maxTemplateLen drops over-long normalized templates.
	maxTemplateLen = 200

	// maxSampleLen truncates the stored sample message.
	maxSampleLen = 200

	// Short unique lines between these lengths (exclusive) are treated as
	// potential templates when they contain a space.
	shortLineMin = 10
	shortLineMax = 120
)

var (
	formatSpec = regexp.MustCompile(`%[@dDsSuUxXfF]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// TemplateID derives the stable identifier for a template string: FNV-1a
// over the text, reduced to eight decimal digits.
func TemplateID(template string) string {
	h := fnv.New64a()
	h.Write([]byte(template))
	return fmt.Sprintf("tpl_%08d", h.Sum64()%100000000)
}

// Extractor pulls log templates from a file or directory of log text.
type Extractor struct {
	logger logging.Logger
}

func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewStdoutLogger("logfeat")
	}
	return &Extractor{logger: logger.With(logging.Field{Key: "component", Value: "logfeat"})}
}

var _ interfaces.LogAnalyzer = (*Extractor)(nil)

// ExtractTemplates walks the corpus in lexical order and returns at most
// maxTemplates templates, deduplicated by normalized text. A missing path
// yields an empty list, not an error.
func (e *Extractor) ExtractTemplates(path string) ([]model.LogTemplate, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat log path: %w", err)
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
			return nil, fmt.Errorf("walk log dir: %w", err)
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	var templates []model.LogTemplate
	seen := make(map[string]bool)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			e.logger.Warn("skipping unreadable log file",
				logging.Field{Key: "path", Value: f},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		lines := strings.Split(string(data), "\n")

		// Format-string-like lines, normalized so differing specifiers
		// collapse to one template.
		for i, line := range lines {
			if i == maxFormatLines {
				break
			}
			if !strings.Contains(line, "%") || !formatSpec.MatchString(line) {
				continue
			}
			tpl := formatSpec.ReplaceAllString(line, "%@")
			tpl = strings.TrimSpace(whitespace.ReplaceAllString(tpl, " "))
			if len(tpl) >= maxTemplateLen || seen[tpl] {
				continue
			}
			seen[tpl] = true
			templates = append(templates, model.LogTemplate{
				TemplateID:     TemplateID(tpl),
				Subsystem:      "default",
				Category:       "default",
				FormatString:   tpl,
				SampleMessages: []string{truncate(strings.TrimSpace(line), maxSampleLen)},
			})
		}

		// Short unique message lines without specifiers.
		for i, line := range lines {
			if i == maxShortLines {
				break
			}
			line = strings.TrimSpace(line)
			if len(line) <= shortLineMin || len(line) >= shortLineMax {
				continue
			}
			if !strings.Contains(line, " ") || seen[line] {
				continue
			}
			seen[line] = true
			templates = append(templates, model.LogTemplate{
				TemplateID:     TemplateID(line),
				Subsystem:      "default",
				Category:       "default",
				FormatString:   line,
				SampleMessages: []string{truncate(line, maxSampleLen)},
			})
		}
	}
	if len(templates) > maxTemplates {
		templates = templates[:maxTemplates]
	}
	return templates, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
