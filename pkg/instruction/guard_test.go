/*
2026 © Postgres.ai
*/

package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardEval(t *testing.T) {
	values := map[string]string{
		"Region":   "EU",
		"Retry":    "false",
		"Count":    "0",
		"Account":  "42",
		"NewUser":  "yes",
		"Empty":    "",
		"Spaced":   " EU ",
		"Is.Debug": "1",
	}

	lookup := func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}

	testCases := []struct {
		caseName string
		expr     string
		expected bool
	}{
		{caseName: "truthy name", expr: "NewUser", expected: true},
		{caseName: "missing name", expr: "Unknown", expected: false},
		{caseName: "false literal value", expr: "Retry", expected: false},
		{caseName: "zero value", expr: "Count", expected: false},
		{caseName: "empty value", expr: "Empty", expected: false},
		{caseName: "negation", expr: "!Retry", expected: true},
		{caseName: "placeholder equality", expr: "[#Region#] == 'EU'", expected: true},
		{caseName: "name equality with double quotes", expr: `Region == "US"`, expected: false},
		{caseName: "inequality", expr: "Region != 'US'", expected: true},
		{caseName: "trimmed comparison", expr: "Spaced == 'EU'", expected: true},
		{caseName: "and", expr: "NewUser && Region == 'EU'", expected: true},
		{caseName: "or", expr: "Retry || Account == '42'", expected: true},
		{caseName: "precedence", expr: "Retry && Region == 'EU' || NewUser", expected: true},
		{caseName: "parentheses", expr: "Retry && (Region == 'EU' || NewUser)", expected: false},
		{caseName: "nested negation", expr: "!(Region == 'EU')", expected: false},
		{caseName: "dotted name", expr: "Is.Debug", expected: true},
		{caseName: "missing compared to empty literal", expr: "Unknown == ''", expected: true},
	}

	for _, tc := range testCases {
		t.Log(tc.caseName)

		guard, err := ParseGuard(tc.expr)
		require.NoError(t, err)

		assert.Equal(t, tc.expected, guard.Eval(lookup), tc.expr)
		assert.Equal(t, tc.expr, guard.String())
	}
}

func TestGuardParseErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"Region ==",
		"(Region",
		"Region)",
		"'unterminated",
		"[#Region",
		"Region = 'EU'",
		"&& Region",
		"Region Account",
	} {
		_, err := ParseGuard(expr)
		assert.Error(t, err, expr)
	}
}

func TestSubstitute(t *testing.T) {
	lookup := func(name string) (string, bool) {
		switch name {
		case "User":
			return "OPER01", true
		case "Account":
			return "42", true
		}

		return "", false
	}

	result, err := Substitute("LOGON [#User#] ACCT=[#Account#]", lookup)
	require.NoError(t, err)
	assert.Equal(t, "LOGON OPER01 ACCT=42", result)

	result, err = Substitute("plain text", lookup)
	require.NoError(t, err)
	assert.Equal(t, "plain text", result)

	_, err = Substitute("[#User#] [#Missing#] [#Other#]", lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing, Other")

	assert.Equal(t, []string{"User", "Missing"}, Placeholders("[#User#]-[#Missing#]"))
}
