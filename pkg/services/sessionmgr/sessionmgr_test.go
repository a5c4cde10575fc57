/*
2026 © Postgres.ai
*/

package sessionmgr

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator/emulatortest"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/interpreter"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/navigation"
	"gitlab.com/postgres-ai/hostlink/pkg/screen"
	"gitlab.com/postgres-ai/hostlink/pkg/services/credentials"
	"gitlab.com/postgres-ai/hostlink/pkg/storage/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store    *memstore.Store
	creds    *credentials.Pool
	provider *instruction.StaticProvider
	manager  *Manager

	mu        sync.Mutex
	terminals []*emulatortest.Terminal
	newScreen func() *emulatortest.Screen
}

func signOnScreen() *emulatortest.Screen {
	return emulatortest.NewScreen(
		"SIGN ON",
		"USERID:",
		"PASSWORD:",
		"NEW PASSWORD:",
	).
		WithField(2, 10, 8, false, "").
		WithField(3, 11, 8, false, "").
		WithField(4, 15, 8, false, "")
}

func mark(id, regex string) instruction.ScreenIdentificationMark {
	return instruction.ScreenIdentificationMark{Identifier: id, Pattern: instruction.Pattern{Regex: regex}}
}

func input(id string, field int, value string) instruction.ScreenInput {
	return instruction.ScreenInput{Identifier: id, Position: instruction.ScreenPosition{Field: pointer.ToInt(field)}, Value: value}
}

func logonSet(name string, maxSessions int, inputs ...instruction.ScreenInput) *instruction.LogonSet {
	return &instruction.LogonSet{
		Name:        name,
		Pool:        "main",
		MaxSessions: maxSessions,
		Actions: []instruction.ProcessAction{
			{
				Identifier: "signon",
				Marks:      []instruction.ScreenIdentificationMark{mark("signon", "SIGN ON")},
				Inputs:     inputs,
			},
			{
				Identifier: "submit",
				Navigation: &instruction.NavigationAction{Key: "enter"},
				Success: &instruction.SuccessCondition{
					LockCredentialOnFailure: true,
					ResetSessionOnFailure:   true,
					Marks:                   []instruction.ScreenIdentificationMark{mark("ready", "READY")},
				},
			},
		},
	}
}

func defaultInputs() []instruction.ScreenInput {
	return []instruction.ScreenInput{
		input("user", 1, "[#Username#]"),
		input("password", 2, "[#Password#]"),
	}
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()

	ctx := context.Background()

	f := &fixture{
		store:    memstore.New(),
		provider: instruction.NewStaticProvider(),
		newScreen: func() *emulatortest.Screen {
			return emulatortest.NewScreen("READY")
		},
	}

	for _, username := range usernames {
		require.NoError(t, f.store.AddCredential(ctx, &models.LogonCredential{Pool: "main", Username: username, Password: "SECRET"}))
	}

	creds, err := credentials.NewPool(f.store, nil, config.Credentials{StalenessWindow: 10 * time.Minute})
	require.NoError(t, err)

	f.creds = creds

	require.NoError(t, f.provider.AddLogon(logonSet("tso", 1, defaultInputs()...)))
	require.NoError(t, f.provider.AddLogon(logonSet("tso-pair", 2, defaultInputs()...)))

	interp := interpreter.New(screen.NewEngine(5*time.Millisecond, nil), navigation.NewExecutor(time.Second, nil))

	dialer := emulator.DialFunc(func(context.Context) (emulator.Terminal, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		term := emulatortest.New(signOnScreen()).OnKey(emulator.KeyEnter, f.newScreen())
		f.terminals = append(f.terminals, term)

		return term, nil
	})

	f.manager = NewManager(config.Sessions{LeaseTTL: time.Minute, IdleTimeout: 30 * time.Minute}, f.store, f.creds,
		f.provider, interp, dialer, nil)

	return f
}

func (f *fixture) dialed() []*emulatortest.Terminal {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*emulatortest.Terminal(nil), f.terminals...)
}

func TestAcquireOpensSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")

	handle, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)

	terminals := f.dialed()
	require.Len(t, terminals, 1)
	assert.True(t, terminals[0].IsConnected())
	assert.Equal(t, []emulatortest.Input{{Field: 1, Value: "TSO001"}, {Field: 2, Value: "SECRET"}}, terminals[0].Inputs())

	assert.Equal(t, "TSO001", handle.Username())
	assert.NotNil(t, handle.LockTakenAt())

	rows, err := f.store.ListSessions(ctx, "tso")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, handle.SessionID(), rows[0].SessionID)
	assert.Equal(t, "r1", rows[0].RequestID)

	sessions := f.manager.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Leased)

	require.NoError(t, handle.Release(ctx, ""))
	f.manager.Close(ctx)
}

func TestAcquireReusesFreeSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001", "TSO002")

	first, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)
	require.NoError(t, first.Release(ctx, ""))

	second, err := f.manager.Acquire(ctx, "tso", "r2")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID(), second.SessionID())
	assert.Len(t, f.dialed(), 1, "a free session is reused instead of logging on again")

	require.NoError(t, second.Release(ctx, ""))
	f.manager.Close(ctx)
}

func TestAcquireLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("no free session", func(t *testing.T) {
		f := newFixture(t, "TSO001", "TSO002")

		handle, err := f.manager.Acquire(ctx, "tso", "r1")
		require.NoError(t, err)

		_, err = f.manager.Acquire(ctx, "tso", "r2")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNoFreeSession))
		assert.True(t, models.IsRetryable(err))

		require.NoError(t, handle.Release(ctx, ""))
		f.manager.Close(ctx)
	})

	t.Run("second session within the limit", func(t *testing.T) {
		f := newFixture(t, "TSO001", "TSO002")

		first, err := f.manager.Acquire(ctx, "tso-pair", "r1")
		require.NoError(t, err)

		second, err := f.manager.Acquire(ctx, "tso-pair", "r2")
		require.NoError(t, err)

		assert.NotEqual(t, first.SessionID(), second.SessionID())
		assert.NotEqual(t, first.Username(), second.Username(), "each session logs on with its own credential")

		require.NoError(t, first.Release(ctx, ""))
		require.NoError(t, second.Release(ctx, ""))
		f.manager.Close(ctx)
	})

	t.Run("no credential", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.manager.Acquire(ctx, "tso", "r1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNoCredential))
		assert.Empty(t, f.dialed())
	})

	t.Run("unknown logon set", func(t *testing.T) {
		f := newFixture(t, "TSO001")

		_, err := f.manager.Acquire(ctx, "ims", "r1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestAcquireLeaseContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001", "TSO002")

	handle, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)
	require.NoError(t, handle.Release(ctx, ""))

	// Another process holds the row.
	result, err := f.store.AcquireSessionLock(ctx, handle.SessionID(), "foreign", time.Minute)
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = f.manager.Acquire(ctx, "tso", "r2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrLeaseContention))

	sessions := f.manager.Sessions()
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Leased, "a contended session stays available")

	f.manager.Close(ctx)
}

func TestLogonFailureRevokesCredential(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")
	f.newScreen = func() *emulatortest.Screen {
		return emulatortest.NewScreen("INVALID PASSWORD")
	}

	_, err := f.manager.Acquire(ctx, "tso", "r1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interpreter.ErrSuccessCondition))

	terminals := f.dialed()
	require.Len(t, terminals, 1)
	assert.True(t, terminals[0].IsClosed())

	creds, err := f.store.ListCredentials(ctx, "main")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.True(t, creds[0].LockedOut)

	rows, err := f.store.ListSessions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.manager.Sessions())
}

func TestLogonChangesPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")

	inputs := append(defaultInputs(), input("new-password", 3, "[#NewPassword#]"))
	require.NoError(t, f.provider.AddLogon(logonSet("tso-expired", 1, inputs...)))

	handle, err := f.manager.Acquire(ctx, "tso-expired", "r1")
	require.NoError(t, err)

	terminals := f.dialed()
	require.Len(t, terminals, 1)

	entered := terminals[0].Inputs()
	require.Len(t, entered, 3)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z]{6}$`), entered[2].Value)

	creds, err := f.store.ListCredentials(ctx, "main")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, entered[2].Value, creds[0].Password)
	assert.NotNil(t, creds[0].PasswordChangedAt)

	require.NoError(t, handle.Release(ctx, ""))
	f.manager.Close(ctx)
}

func TestReleaseOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")

	require.NoError(t, f.store.CreateRequest(ctx, &models.RequestSession{RequestID: "r1", Status: models.StatusStarted}))

	handle, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)

	require.NoError(t, handle.Release(ctx, "BALANCE: 1,250.00"))
	require.NoError(t, handle.Release(ctx, "ignored"))

	request, err := f.store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "BALANCE: 1,250.00", request.RawOutput)

	rows, err := f.store.ListSessions(ctx, "tso")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].LockTakenAt)
	assert.Empty(t, rows[0].RequestID)

	f.manager.Close(ctx)
}

func TestKeyTimeoutResetsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")

	handle, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)

	terminals := f.dialed()
	require.Len(t, terminals, 1)
	terminals[0].StuckKeys[emulator.KeyClear] = true

	query := &instruction.QuerySet{
		Name:    "clear",
		Actions: []instruction.ProcessAction{{Identifier: "clear", Navigation: &instruction.NavigationAction{Key: "clear"}}},
	}
	require.NoError(t, query.Compile())

	err = handle.Run(ctx, query.Actions, interpreter.NewRunContext(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, navigation.ErrKeyTimeout))

	sessions := f.manager.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Reset)

	require.NoError(t, handle.Release(ctx, ""))

	assert.True(t, terminals[0].IsClosed())
	assert.Empty(t, f.manager.Sessions())

	rows, err := f.store.ListSessions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok, err := f.creds.Select(ctx, "main")
	require.NoError(t, err)
	assert.True(t, ok, "the credential returns to the pool")
}

func TestCheckIdleSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001", "TSO002")

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return now }

	idle, err := f.manager.Acquire(ctx, "tso-pair", "r1")
	require.NoError(t, err)

	busy, err := f.manager.Acquire(ctx, "tso-pair", "r2")
	require.NoError(t, err)

	require.NoError(t, idle.Release(ctx, ""))

	now = now.Add(10 * time.Minute)
	f.manager.CheckIdleSessions(ctx)
	assert.Len(t, f.manager.Sessions(), 2, "sessions within the idle timeout are kept")

	now = now.Add(time.Hour)
	f.manager.CheckIdleSessions(ctx)

	sessions := f.manager.Sessions()
	require.Len(t, sessions, 1, "leased sessions are never closed")
	assert.Equal(t, busy.SessionID(), sessions[0].SessionID)

	require.NoError(t, busy.Release(ctx, ""))
	f.manager.Close(ctx)

	for _, term := range f.dialed() {
		assert.True(t, term.IsClosed())
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "TSO001")
	path := filepath.Join(t.TempDir(), "sessions.json")

	infos, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Nil(t, infos)

	handle, err := f.manager.Acquire(ctx, "tso", "r1")
	require.NoError(t, err)

	require.NoError(t, f.manager.SaveSnapshot(path))

	infos, err = LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, handle.SessionID(), infos[0].SessionID)
	assert.Equal(t, "TSO001", infos[0].Username)
	assert.True(t, infos[0].Leased)

	// A restarted process does not own the terminals of the previous run.
	restarted := NewManager(config.Sessions{LeaseTTL: time.Minute}, f.store, f.creds, f.provider, f.manager.interpreter,
		f.manager.dialer, nil)
	require.NoError(t, restarted.RestoreSessions(ctx, path))

	rows, err := f.store.ListSessions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok, err := f.creds.Select(ctx, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, term := range f.dialed() {
		require.NoError(t, term.Close())
	}
}
