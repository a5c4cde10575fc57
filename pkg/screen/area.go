/*
2026 © Postgres.ai
*/

package screen

import (
	"strings"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
)

// AreaText resolves the text of a screen area. The full screen keeps its layout,
// field and rectangle text is trimmed. It reports false when the area is not on the screen.
func AreaText(scr emulator.Screen, area instruction.ScreenArea) (string, bool) {
	switch area.Mode() {
	case instruction.AreaField:
		field, ok := emulator.FieldByNumber(scr, *area.Field)
		if !ok {
			return "", false
		}

		return strings.TrimSpace(field.Value), true

	case instruction.AreaRect:
		return rectText(scr.Rows(), *area.Rect)

	default:
		return strings.Join(trimRows(scr.Rows()), "\n"), true
	}
}

func rectText(rows []string, rect instruction.Rect) (string, bool) {
	if rect.StartRow > len(rows) {
		return "", false
	}

	endRow := rect.EndRow
	if endRow > len(rows) {
		endRow = len(rows)
	}

	lines := make([]string, 0, endRow-rect.StartRow+1)

	for i := rect.StartRow; i <= endRow; i++ {
		row := []rune(rows[i-1])

		if rect.StartCol > len(row) {
			lines = append(lines, "")
			continue
		}

		endCol := rect.EndCol
		if endCol > len(row) {
			endCol = len(row)
		}

		lines = append(lines, strings.TrimRight(string(row[rect.StartCol-1:endCol]), " \x00"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), true
}
