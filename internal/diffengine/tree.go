package diffengine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OSTree reads source trees from the local filesystem. A missing root or a
// missing file is reported as empty, not as an error: one side of a diff is
// routinely absent when files are added or removed between builds.
type OSTree struct{}

// ListFiles walks root and returns relative paths of regular files in lexical
// order. Dotfiles are excluded. Unreadable directories are skipped.
func (OSTree) ListFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadLines reads one file and splits it into lines without terminators.
// A missing file yields (nil, nil).
func (OSTree) ReadLines(root, rel string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text into lines, dropping the empty remainder after a
// trailing newline and stripping carriage returns.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
