/*
2026 © Postgres.ai
*/

package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator/emulatortest"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
)

func TestNavigate(t *testing.T) {
	executor := NewExecutor(time.Second, nil)

	t.Run("it sends the key and refreshes", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("MAIN MENU")).
			OnKey(emulator.PF(3), emulatortest.NewScreen("SIGNED OFF")).
			OnRefresh(emulatortest.NewScreen("SIGNED OFF", "READY"))

		err := executor.Navigate(context.Background(), term, &instruction.NavigationAction{
			Key:         "pf3",
			Wait:        instruction.Duration(5 * time.Millisecond),
			Refreshes:   1,
			RefreshWait: instruction.Duration(5 * time.Millisecond),
		})
		require.NoError(t, err)

		assert.Equal(t, []emulator.Key{emulator.PF(3)}, term.Keys())
		assert.Equal(t, []string{"SIGNED OFF", "READY"}, term.Screen().Rows())
	})

	t.Run("unanswered key is a timeout", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("MAIN MENU"))
		term.StuckKeys[emulator.KeyEnter] = true

		err := executor.Navigate(context.Background(), term, &instruction.NavigationAction{Key: "enter"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrKeyTimeout))
	})

	t.Run("unknown key", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("MAIN MENU"))

		err := executor.Navigate(context.Background(), term, &instruction.NavigationAction{Key: "PF99"})
		require.Error(t, err)
		assert.Empty(t, term.Keys())
	})

	t.Run("cancellation interrupts the wait", func(t *testing.T) {
		term := emulatortest.New(emulatortest.NewScreen("MAIN MENU"))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := executor.Navigate(ctx, term, &instruction.NavigationAction{
			Key:  "enter",
			Wait: instruction.Duration(time.Minute),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
