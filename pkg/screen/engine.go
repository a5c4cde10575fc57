/*
2026 © Postgres.ai
*/

package screen

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/observability"
)

// DefaultPollInterval defines how often a waiting mark refreshes the screen.
const DefaultPollInterval = 250 * time.Millisecond

// Engine evaluates identification marks against a live terminal.
type Engine struct {
	poll    time.Duration
	metrics *observability.Metrics
}

// NewEngine creates a predicate engine.
func NewEngine(poll time.Duration, metrics *observability.Metrics) *Engine {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	return &Engine{poll: poll, metrics: metrics}
}

// Match checks a mark against the screen once.
func Match(scr emulator.Screen, mark *instruction.ScreenIdentificationMark) bool {
	re := mark.Pattern.Regexp()
	if re == nil {
		return false
	}

	text, ok := AreaText(scr, mark.Area)
	if !ok {
		return false
	}

	return re.MatchString(text)
}

// MatchAny returns the first mark matching the screen.
func MatchAny(scr emulator.Screen, marks []instruction.ScreenIdentificationMark) (*instruction.ScreenIdentificationMark, bool) {
	for i := range marks {
		if Match(scr, &marks[i]) {
			return &marks[i], true
		}
	}

	return nil, false
}

// Wait checks the mark until it matches or its wait period elapses.
// A zero wait period means a single check. Timing out is not an error.
func (e *Engine) Wait(ctx context.Context, term emulator.Terminal, mark *instruction.ScreenIdentificationMark) (bool, error) {
	start := time.Now()

	matched, err := e.wait(ctx, term, mark, start.Add(mark.WaitPeriod.Std()))

	e.metrics.ObserveScreenWait(ctx, mark.Identifier, matched, time.Since(start))

	return matched, err
}

func (e *Engine) wait(ctx context.Context, term emulator.Terminal, mark *instruction.ScreenIdentificationMark,
	deadline time.Time) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, errors.Wrapf(err, "stopped waiting for %q", mark.Identifier)
		}

		if Match(term.Screen(), mark) {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		pause := e.poll
		if remaining < pause {
			pause = remaining
		}

		if _, err := term.Refresh(ctx, pause, remaining); err != nil {
			return false, errors.Wrapf(err, "failed to refresh screen waiting for %q", mark.Identifier)
		}
	}
}

// Capture extracts a data point from the screen. With a pattern the first group wins
// over the whole match; without one the area text is the value.
// It reports false when the area is missing or blank, or the pattern finds no text.
func Capture(scr emulator.Screen, point *instruction.ScreenCaptureDataPoint) (string, bool) {
	text, ok := AreaText(scr, point.Area)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}

	re := point.Pattern.Regexp()
	if re == nil {
		return text, true
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}

	value := match[0]
	if len(match) > 1 {
		value = match[1]
	}

	value = strings.TrimSpace(value)

	return value, value != ""
}
