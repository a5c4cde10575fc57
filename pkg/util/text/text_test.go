/*
2026 © Postgres.ai
*/

package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCutText(t *testing.T) {
	testCases := []struct {
		caseName string
		text     string
		size     int
		expected string
		cut      bool
	}{
		{caseName: "short text", text: "READY", size: 10, expected: "READY"},
		{caseName: "exact size", text: "READY", size: 5, expected: "READY"},
		{caseName: "long text", text: "ACCOUNT INQUIRY", size: 10, expected: "ACCOUNT…", cut: true},
		{caseName: "multibyte boundary", text: "SALDO: 1 250,00 €€€", size: 20, expected: "SALDO: 1 250,00 …", cut: true},
	}

	for _, tc := range testCases {
		t.Run(tc.caseName, func(t *testing.T) {
			result, cut := CutText(tc.text, tc.size, SeparatorEllipsis)
			assert.Equal(t, tc.expected, result)
			assert.Equal(t, tc.cut, cut)
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "ACCOUNT INQUIRY BALANCE: 1,250.00", Preview("ACCOUNT INQUIRY\n  BALANCE:\t1,250.00\n", 100))
}

func TestRenderTable(t *testing.T) {
	var sb strings.Builder

	RenderTable(&sb, [][]string{
		{"session", "user"},
		{"s1", "TSO001"},
	})

	out := sb.String()
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "TSO001")

	sb.Reset()
	RenderTable(&sb, nil)
	assert.Equal(t, "No results.\n", sb.String())
}
