package utils

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a line diff of src and dst, empty when they are equal.
// With color the diff is ANSI coloured, otherwise lines are prefixed with +/-.
func Diff(src, dst string, color bool) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(src, dst)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	if len(diffs) == 1 && diffs[0].Type == diffmatchpatch.DiffEqual {
		return ""
	}
	if len(diffs) == 0 {
		return ""
	}

	if color {
		return dmp.DiffPrettyText(diffs)
	}

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
