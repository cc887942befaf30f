package diffengine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
	"ossensor/internal/model"
)

// hunkIDLines bounds how many leading hunk lines feed the identifier hash.
// Two distinct large hunks sharing path, positions and their first five lines
// would collide; that tradeoff bounds identifier cost and is accepted.
const hunkIDLines = 5

// Engine computes per-file diff hunks across two source trees.
//
// The line diff is a deliberately simplified single forward scan, not an LCS
// edit script. It can over-segment or merge changes an aligning diff would
// not, but it is deterministic and keeps hunk identifiers stable across runs,
// which matters more here than minimal hunk count. Do not replace it with an
// optimal diff: downstream feature matching and stored hunk ids depend on
// this exact segmentation.
type Engine struct {
	tree   interfaces.TreeReader
	logger logging.Logger
}

// NewEngine creates an Engine reading trees through tree. A nil tree falls
// back to the local filesystem.
func NewEngine(tree interfaces.TreeReader, logger logging.Logger) *Engine {
	if tree == nil {
		tree = OSTree{}
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("diffengine")
	}
	return &Engine{tree: tree, logger: logger}
}

// ExtractDiff diffs two trees file by file. Files are paired by relative
// path; a file present on only one side pairs with an empty counterpart.
// A file that cannot be read is treated as empty on the unreadable side
// rather than failing the whole diff.
func (e *Engine) ExtractDiff(fromRoot, toRoot string) ([]model.DiffHunk, error) {
	fromFiles, err := e.tree.ListFiles(fromRoot)
	if err != nil {
		return nil, err
	}
	toFiles, err := e.tree.ListFiles(toRoot)
	if err != nil {
		return nil, err
	}

	// From-side files first, then to-only files, deduplicated by relative path.
	seen := make(map[string]bool, len(fromFiles)+len(toFiles))
	paths := make([]string, 0, len(fromFiles)+len(toFiles))
	for _, rel := range fromFiles {
		if !seen[rel] {
			seen[rel] = true
			paths = append(paths, rel)
		}
	}
	for _, rel := range toFiles {
		if !seen[rel] {
			seen[rel] = true
			paths = append(paths, rel)
		}
	}

	var hunks []model.DiffHunk
	for _, rel := range paths {
		fromLines := e.readSide(fromRoot, rel)
		toLines := e.readSide(toRoot, rel)
		hunks = append(hunks, DiffLines(rel, fromLines, toLines)...)
	}
	return hunks, nil
}

func (e *Engine) readSide(root, rel string) []string {
	lines, err := e.tree.ReadLines(root, rel)
	if err != nil {
		e.logger.Warn("reading file for diff, treating side as empty",
			logging.Field{Key: "root", Value: root},
			logging.Field{Key: "path", Value: rel},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	return lines
}

// DiffLines computes the hunk sequence between two versions of one file.
//
// Two cursors advance together over equal lines. On a mismatch a hunk opens
// at the current 1-based positions and the scan greedily consumes one removed
// line from the old side and, unless the hunk's previous entry was an added
// line, one added line from the new side, until the cursors resynchronize on
// an equal line or both inputs are exhausted. Once the old side is exhausted
// the remaining new lines are consumed unconditionally so a trailing run of
// additions closes into the same hunk.
func DiffLines(filePath string, fromLines, toLines []string) []model.DiffHunk {
	var hunks []model.DiffHunk
	var chunk []string
	var oldStart, oldCount, newStart, newCount int

	emit := func() {
		hunks = append(hunks, model.DiffHunk{
			FilePath: filePath,
			OldStart: oldStart,
			OldCount: oldCount,
			NewStart: newStart,
			NewCount: newCount,
			Lines:    chunk,
			HunkID:   hunkID(filePath, oldStart, newStart, chunk),
		})
		chunk = nil
	}

	i, j := 0, 0
	for i < len(fromLines) || j < len(toLines) {
		if i < len(fromLines) && j < len(toLines) && fromLines[i] == toLines[j] {
			if len(chunk) > 0 {
				emit()
			}
			i++
			j++
			continue
		}
		if len(chunk) == 0 {
			oldStart = i + 1
			newStart = j + 1
			oldCount = 0
			newCount = 0
		}
		if i < len(fromLines) {
			chunk = append(chunk, "- "+fromLines[i])
			oldCount++
			i++
		}
		if j < len(toLines) && (len(chunk) == 0 || i >= len(fromLines) || !strings.HasPrefix(chunk[len(chunk)-1], "+ ")) {
			chunk = append(chunk, "+ "+toLines[j])
			newCount++
			j++
		}
	}
	if len(chunk) > 0 {
		emit()
	}
	return hunks
}

// hunkID derives the stable hunk identifier: the first 16 hex characters of
// sha256 over the file path, the 1-based start positions and the first five
// hunk lines. Lines beyond the fifth do not influence the id.
func hunkID(filePath string, oldStart, newStart int, lines []string) string {
	head := lines
	if len(head) > hunkIDLines {
		head = head[:hunkIDLines]
	}
	content := fmt.Sprintf("%s:%d:%d:%s", filePath, oldStart, newStart, strings.Join(head, "|"))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
