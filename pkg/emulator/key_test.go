/*
2026 © Postgres.ai
*/

package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	testCases := []struct {
		caseName string
		input    string
		expected Key
		fails    bool
	}{
		{caseName: "enter", input: "enter", expected: KeyEnter},
		{caseName: "clear with spaces", input: " CLEAR ", expected: KeyClear},
		{caseName: "pf key", input: "PF3", expected: PF(3)},
		{caseName: "pf key with parentheses", input: "pf(12)", expected: PF(12)},
		{caseName: "pf key with leading zero", input: "PF03", expected: PF(3)},
		{caseName: "pa key", input: "pa1", expected: PA(1)},
		{caseName: "pf out of range", input: "PF25", fails: true},
		{caseName: "pa out of range", input: "PA4", fails: true},
		{caseName: "unknown", input: "F13", fails: true},
		{caseName: "empty", input: "", fails: true},
	}

	for _, tc := range testCases {
		t.Log(tc.caseName)

		key, err := ParseKey(tc.input)
		if tc.fails {
			assert.Error(t, err)
			continue
		}

		assert.NoError(t, err)
		assert.Equal(t, tc.expected, key)
	}
}

func TestKeyFunction(t *testing.T) {
	name, n := PF(7).Function()
	assert.Equal(t, "PF", name)
	assert.Equal(t, 7, n)

	name, n = KeyEnter.Function()
	assert.Equal(t, "Enter", name)
	assert.Zero(t, n)

	assert.True(t, PA(2).IsAID())
	assert.False(t, KeyTab.IsAID())
}
