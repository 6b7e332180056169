package workflow

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Draft line change kinds.
const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// DraftLine is one line of a draft revision diff.
type DraftLine struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// diffDrafts returns a line diff from before to after, or nil when they are
// the same.
func diffDrafts(before, after string) []DraftLine {
	if before == after {
		return nil
	}
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []DraftLine
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, line := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, DraftLine{Type: LineContext, Text: line})
			case diffmatchpatch.DiffDelete:
				lines = append(lines, DraftLine{Type: LineRemoved, Text: line})
			case diffmatchpatch.DiffInsert:
				lines = append(lines, DraftLine{Type: LineAdded, Text: line})
			}
		}
	}
	return lines
}
