/*
2026 © Postgres.ai
*/

// Package screen provides the screen predicate engine: snapshots, area resolution,
// identification marks, timed waits and data captures.
package screen

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
)

// Snapshot defines the text of a screen at a point in time.
type Snapshot struct {
	Text       string
	CapturedAt time.Time
	ScreenID   uint64
}

// HasText reports whether the snapshot holds any text.
func (s Snapshot) HasText() bool {
	return s.Text != ""
}

// Take captures the full text of the screen.
func Take(scr emulator.Screen) Snapshot {
	return Snapshot{
		Text:       strings.Join(trimRows(scr.Rows()), "\n"),
		CapturedAt: time.Now(),
		ScreenID:   scr.ChangeID(),
	}
}

// Diff renders changed lines between two snapshots.
func Diff(prev, next Snapshot) string {
	if prev.Text == next.Text {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(prev.Text, next.Text)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder

	for _, d := range diffs {
		var prefix string

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}

		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func trimRows(rows []string) []string {
	trimmed := make([]string, len(rows))

	for i, row := range rows {
		trimmed[i] = strings.TrimRight(row, " \x00")
	}

	return trimmed
}
