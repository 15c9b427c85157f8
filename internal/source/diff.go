package source

import (
	"fmt"
	"strings"
)

// Describe summarizes the difference between two versions of a file as a
// short human-readable string. It is a positional line comparison, not an
// LCS diff: good enough for changelists, never used to apply changes.
func Describe(path, before, after string) string {
	if before == after {
		return fmt.Sprintf("%s: unchanged", path)
	}

	oldLines := strings.Split(before, "\n")
	newLines := strings.Split(after, "\n")

	changed := 0
	firstChanged := 0
	max := len(oldLines)
	if len(newLines) > max {
		max = len(newLines)
	}
	for i := 0; i < max; i++ {
		var o, n string
		if i < len(oldLines) {
			o = oldLines[i]
		}
		if i < len(newLines) {
			n = newLines[i]
		}
		if o != n {
			if changed == 0 {
				firstChanged = i + 1
			}
			changed++
		}
	}

	delta := len(newLines) - len(oldLines)
	switch {
	case delta > 0:
		return fmt.Sprintf("%s: %d line(s) changed from line %d (+%d lines)", path, changed, firstChanged, delta)
	case delta < 0:
		return fmt.Sprintf("%s: %d line(s) changed from line %d (%d lines)", path, changed, firstChanged, delta)
	default:
		return fmt.Sprintf("%s: %d line(s) changed from line %d", path, changed, firstChanged)
	}
}
