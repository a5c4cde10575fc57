/*
2026 © Postgres.ai
*/

package screen

import (
	"context"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator/emulatortest"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
)

func accountScreen() *emulatortest.Screen {
	return emulatortest.NewScreen(
		"ACCOUNT INQUIRY                 ",
		"  ACCOUNT: 0042137   STATUS: OK ",
		"  BALANCE:   1,250.00 USD       ",
		"                                ",
	).WithField(2, 12, 7, false, "0042137 ").WithField(3, 13, 8, true, "  1,250.00")
}

func TestAreaText(t *testing.T) {
	scr := accountScreen()

	testCases := []struct {
		caseName string
		area     instruction.ScreenArea
		expected string
		found    bool
	}{
		{
			caseName: "full screen keeps layout",
			area:     instruction.ScreenArea{},
			expected: "ACCOUNT INQUIRY\n  ACCOUNT: 0042137   STATUS: OK\n  BALANCE:   1,250.00 USD\n",
			found:    true,
		},
		{
			caseName: "field value is trimmed",
			area:     instruction.ScreenArea{Field: pointer.ToInt(2)},
			expected: "1,250.00",
			found:    true,
		},
		{
			caseName: "missing field",
			area:     instruction.ScreenArea{Field: pointer.ToInt(9)},
			found:    false,
		},
		{
			caseName: "rectangle is inclusive",
			area:     instruction.ScreenArea{Rect: &instruction.Rect{StartRow: 2, StartCol: 3, EndRow: 3, EndCol: 21}},
			expected: "ACCOUNT: 0042137\nBALANCE:   1,250.00",
			found:    true,
		},
		{
			caseName: "rectangle is clipped to the screen",
			area:     instruction.ScreenArea{Rect: &instruction.Rect{StartRow: 2, StartCol: 22, EndRow: 10, EndCol: 80}},
			expected: "STATUS: OK\n USD",
			found:    true,
		},
		{
			caseName: "rectangle below the screen",
			area:     instruction.ScreenArea{Rect: &instruction.Rect{StartRow: 30, StartCol: 1, EndRow: 31, EndCol: 10}},
			found:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.caseName, func(t *testing.T) {
			text, found := AreaText(scr, tc.area)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, text)
		})
	}
}

func TestMatch(t *testing.T) {
	scr := accountScreen()

	testCases := []struct {
		caseName string
		mark     instruction.ScreenIdentificationMark
		expected bool
	}{
		{
			caseName: "full screen match",
			mark:     instruction.ScreenIdentificationMark{Identifier: "title", Pattern: instruction.MustPattern("account inquiry", "i")},
			expected: true,
		},
		{
			caseName: "match is limited to the area",
			mark: instruction.ScreenIdentificationMark{
				Identifier: "status",
				Pattern:    instruction.MustPattern("STATUS", ""),
				Area:       instruction.ScreenArea{Rect: &instruction.Rect{StartRow: 1, StartCol: 1, EndRow: 1, EndCol: 32}},
			},
			expected: false,
		},
		{
			caseName: "missing field never matches",
			mark: instruction.ScreenIdentificationMark{
				Identifier: "missing",
				Pattern:    instruction.MustPattern(".*", ""),
				Area:       instruction.ScreenArea{Field: pointer.ToInt(5)},
			},
			expected: false,
		},
		{
			caseName: "uncompiled mark never matches",
			mark:     instruction.ScreenIdentificationMark{Identifier: "raw", Pattern: instruction.Pattern{Regex: "ACCOUNT"}},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.caseName, func(t *testing.T) {
			assert.Equal(t, tc.expected, Match(scr, &tc.mark))
		})
	}
}

func TestMatchAny(t *testing.T) {
	marks := []instruction.ScreenIdentificationMark{
		{Identifier: "locked", Pattern: instruction.MustPattern("REVOKED", "")},
		{Identifier: "status", Pattern: instruction.MustPattern(`STATUS:\s+OK`, "")},
	}

	mark, ok := MatchAny(accountScreen(), marks)
	require.True(t, ok)
	assert.Equal(t, "status", mark.Identifier)

	_, ok = MatchAny(accountScreen(), marks[:1])
	assert.False(t, ok)
}

func TestWait(t *testing.T) {
	engine := NewEngine(5*time.Millisecond, nil)
	ready := instruction.ScreenIdentificationMark{
		Identifier: "ready",
		Pattern:    instruction.MustPattern("READY", ""),
		WaitPeriod: instruction.Duration(time.Second),
	}

	t.Run("it waits for the screen to change", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("LOADING")).
			OnRefresh(emulatortest.NewScreen("LOADING"), emulatortest.NewScreen("READY"))

		matched, err := engine.Wait(context.Background(), term, &ready)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("timeout is a negative result", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("LOADING"))
		short := ready
		short.WaitPeriod = instruction.Duration(30 * time.Millisecond)

		start := time.Now()
		matched, err := engine.Wait(context.Background(), term, &short)
		require.NoError(t, err)
		assert.False(t, matched)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("zero wait period checks once", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("LOADING")).OnRefresh(emulatortest.NewScreen("READY"))
		once := ready
		once.WaitPeriod = 0

		matched, err := engine.Wait(context.Background(), term, &once)
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("cancellation is an error", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("LOADING"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		matched, err := engine.Wait(ctx, term, &ready)
		require.Error(t, err)
		assert.False(t, matched)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestCapture(t *testing.T) {
	scr := accountScreen()

	testCases := []struct {
		caseName string
		point    instruction.ScreenCaptureDataPoint
		expected string
		found    bool
	}{
		{
			caseName: "first group wins",
			point:    instruction.ScreenCaptureDataPoint{Identifier: "balance", Pattern: instruction.MustPattern(`BALANCE:\s+(\S+)`, "")},
			expected: "1,250.00",
			found:    true,
		},
		{
			caseName: "whole match without groups",
			point:    instruction.ScreenCaptureDataPoint{Identifier: "amount", Pattern: instruction.MustPattern(`\d+,\d+\.\d+`, "")},
			expected: "1,250.00",
			found:    true,
		},
		{
			caseName: "area text without pattern",
			point:    instruction.ScreenCaptureDataPoint{Identifier: "account", Area: instruction.ScreenArea{Field: pointer.ToInt(1)}},
			expected: "0042137",
			found:    true,
		},
		{
			caseName: "no match",
			point:    instruction.ScreenCaptureDataPoint{Identifier: "limit", Pattern: instruction.MustPattern(`LIMIT:\s+(\S+)`, "")},
			found:    false,
		},
		{
			caseName: "empty match",
			point:    instruction.ScreenCaptureDataPoint{Identifier: "balance", Pattern: instruction.MustPattern(`BALANCE:(\s*)`, "")},
			found:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.caseName, func(t *testing.T) {
			value, found := Capture(scr, &tc.point)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, value)
		})
	}
}

func TestSnapshot(t *testing.T) {
	term := emulatortest.New(emulatortest.NewScreen("MAIN MENU   ", "  1. INQUIRY"))

	first := Take(term.Screen())
	assert.True(t, first.HasText())
	assert.Equal(t, "MAIN MENU\n  1. INQUIRY", first.Text)
	assert.False(t, Snapshot{}.HasText())

	term.Show(emulatortest.NewScreen("MAIN MENU", "  2. PAYMENTS"))

	second := Take(term.Screen())
	assert.NotEqual(t, first.ScreenID, second.ScreenID)
	assert.Equal(t, "-   1. INQUIRY\n+   2. PAYMENTS\n", Diff(first, second))
	assert.Empty(t, Diff(first, first))
}
