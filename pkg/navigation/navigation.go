/*
2026 © Postgres.ai
*/

// Package navigation sends key commands to a terminal and waits for the host to answer.
package navigation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/observability"
)

// DefaultKeyTimeout applies when a navigation action sets no timeout.
const DefaultKeyTimeout = 30 * time.Second

// ErrKeyTimeout is returned when the host does not answer a key in time.
var ErrKeyTimeout = errors.New("host did not answer the key in time")

// Executor runs navigation actions.
type Executor struct {
	defaultTimeout time.Duration
	metrics        *observability.Metrics
}

// NewExecutor creates a navigation executor.
func NewExecutor(defaultTimeout time.Duration, metrics *observability.Metrics) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultKeyTimeout
	}

	return &Executor{defaultTimeout: defaultTimeout, metrics: metrics}
}

// Navigate sends the key, pauses for the configured wait and performs the configured refreshes.
func (e *Executor) Navigate(ctx context.Context, term emulator.Terminal, nav *instruction.NavigationAction) error {
	key, err := emulator.ParseKey(nav.Key)
	if err != nil {
		return err
	}

	timeout := nav.Timeout.Std()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	start := time.Now()
	answered, err := term.SendKey(ctx, key, timeout)

	e.metrics.ObserveKeySend(ctx, string(key), time.Since(start))

	if err != nil {
		return errors.Wrapf(err, "failed to send %s", key)
	}

	if !answered {
		return errors.Wrapf(ErrKeyTimeout, "%s after %s", key, timeout)
	}

	if err := pause(ctx, nav.Wait.Std()); err != nil {
		return err
	}

	for i := 0; i < nav.Refreshes; i++ {
		if _, err := term.Refresh(ctx, nav.RefreshWait.Std(), timeout); err != nil {
			return errors.Wrapf(err, "failed to refresh after %s", key)
		}
	}

	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "navigation wait interrupted")
	case <-timer.C:
		return nil
	}
}
