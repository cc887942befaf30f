package store

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"ossensor/internal/model"
)

// RenderedChunk is one span of a character-level rendering of a hunk,
// suitable for inline highlighting in a UI.
type RenderedChunk struct {
	Type    string `json:"type"` // added, removed, equal
	Content string `json:"content"`
}

// RenderHunk recomputes the hunk's change at character granularity. The line
// diff decides WHAT changed; this rendering shows HOW the old text became the
// new text, including unchanged spans for context.
func RenderHunk(hunk *model.DiffHunk) []RenderedChunk {
	var oldLines, newLines []string
	for _, line := range hunk.Lines {
		switch {
		case strings.HasPrefix(line, "- "):
			oldLines = append(oldLines, line[2:])
		case strings.HasPrefix(line, "+ "):
			newLines = append(newLines, line[2:])
		}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"), true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	chunks := make([]RenderedChunk, 0, len(diffs))
	for _, d := range diffs {
		var chunkType string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			chunkType = "added"
		case diffmatchpatch.DiffDelete:
			chunkType = "removed"
		case diffmatchpatch.DiffEqual:
			chunkType = "equal"
		}
		chunks = append(chunks, RenderedChunk{Type: chunkType, Content: d.Text})
	}
	return chunks
}
