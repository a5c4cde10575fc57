/*
2026 © Postgres.ai
*/

// Package text provides text helpers.
package text

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
)

// SeparatorEllipsis marks a cut text.
const SeparatorEllipsis = "…"

// CutText cuts the text if it exceeds the size in bytes and reports whether it was cut.
func CutText(text string, size int, separator string) (string, bool) {
	if len(text) <= size {
		return text, false
	}

	size -= len(separator)
	if size < 0 {
		size = 0
	}

	// Do not split a multibyte rune.
	for size > 0 && !utf8.RuneStart(text[size]) {
		size--
	}

	return text[:size] + separator, true
}

// Preview flattens the text to a single line and cuts it.
func Preview(text string, size int) string {
	preview := strings.Join(strings.Fields(text), " ")
	preview, _ = CutText(preview, size, SeparatorEllipsis)

	return preview
}

// RenderTable renders rows in the psql style. The first row is the header.
func RenderTable(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		_, _ = io.WriteString(w, "No results.\n")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(rows[0])
	table.AppendBulk(rows[1:])
	table.Render()
}
