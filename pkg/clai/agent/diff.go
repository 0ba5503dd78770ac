// Package agent – diff.go renders the previews shown by the approval gate:
// a line-oriented diff for overwrites and a head preview for new files.
package agent

import (
	"fmt"
	"strings"
)

// creationPreviewLines is how many lines of a new file are shown before the
// remainder is summarized as a count.
const creationPreviewLines = 10

// NoChangesNotice is emitted when old and new contents are identical.
const NoChangesNotice = "No changes detected."

// DiffLines compares old and new content line by line, by index. For each
// index where the lines differ, a removal line ("- ") and an addition line
// ("+ ") are recorded; matching lines produce no output. This is an
// index-aligned comparison, not an LCS diff — an inserted line shows as a
// cascade of changed lines, which is acceptable for a yes/no preview.
func DiffLines(oldContent, newContent string) string {
	if oldContent == newContent {
		return NoChangesNotice
	}

	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	max := len(oldLines)
	if len(newLines) > max {
		max = len(newLines)
	}

	var sb strings.Builder
	changed := false
	for i := 0; i < max; i++ {
		var oldLine, newLine string
		hasOld := i < len(oldLines)
		hasNew := i < len(newLines)
		if hasOld {
			oldLine = oldLines[i]
		}
		if hasNew {
			newLine = newLines[i]
		}
		if hasOld && hasNew && oldLine == newLine {
			continue
		}
		changed = true
		if hasOld {
			sb.WriteString("- " + oldLine + "\n")
		}
		if hasNew {
			sb.WriteString("+ " + newLine + "\n")
		}
	}

	if !changed {
		return NoChangesNotice
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CreationPreview renders the head of a file that does not exist yet:
// the first creationPreviewLines lines plus a count of the rest.
func CreationPreview(content string) string {
	lines := strings.Split(content, "\n")

	var sb strings.Builder
	sb.WriteString("New file:\n")
	shown := len(lines)
	if shown > creationPreviewLines {
		shown = creationPreviewLines
	}
	for _, line := range lines[:shown] {
		sb.WriteString("+ " + line + "\n")
	}
	if rest := len(lines) - shown; rest > 0 {
		sb.WriteString(fmt.Sprintf("... (%d more lines)\n", rest))
	}
	return strings.TrimRight(sb.String(), "\n")
}
