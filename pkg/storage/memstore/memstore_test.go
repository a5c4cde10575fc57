/*
2026 © Postgres.ai
*/

package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

func TestSelectAndStampCredential(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	staleBefore := now.Add(-10 * time.Minute)

	s := New()
	creds := []*models.LogonCredential{
		{Pool: "main", Username: "TSO001", LockLastTakenAt: pointer.ToTime(now.Add(-time.Minute))},
		{Pool: "main", Username: "TSO002", LockLastTakenAt: pointer.ToTime(now.Add(-time.Hour))},
		{Pool: "main", Username: "TSO003"},
		{Pool: "main", Username: "TSO004", LockedOut: true},
		{Pool: "other", Username: "TSO005"},
	}

	for _, cred := range creds {
		require.NoError(t, s.AddCredential(ctx, cred))
	}

	first, err := s.SelectAndStampCredential(ctx, "main", staleBefore, now)
	require.NoError(t, err)
	assert.Equal(t, "TSO003", first.Username, "never taken credentials come first")
	assert.Equal(t, now, *first.LockLastTakenAt)

	second, err := s.SelectAndStampCredential(ctx, "main", staleBefore, now)
	require.NoError(t, err)
	assert.Equal(t, "TSO002", second.Username, "stale credentials are reused")

	_, err = s.SelectAndStampCredential(ctx, "main", staleBefore, now)
	assert.True(t, errors.Is(err, models.ErrNotFound), "locked out and fresh credentials are never returned")

	require.NoError(t, s.ReleaseCredential(ctx, first.ID))

	again, err := s.SelectAndStampCredential(ctx, "main", staleBefore, now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestCredentialUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()

	cred := &models.LogonCredential{Pool: "main", Username: "TSO001", Password: "SECRET"}
	require.NoError(t, s.AddCredential(ctx, cred))
	assert.Error(t, s.AddCredential(ctx, &models.LogonCredential{Pool: "main", Username: "tso001"}))

	at := time.Now()
	require.NoError(t, s.UpdatePassword(ctx, cred.ID, "NEWPWD", at))
	require.NoError(t, s.LockOutCredential(ctx, cred.ID, at))

	stored, err := s.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "NEWPWD", stored.Password)
	assert.True(t, stored.LockedOut)
	assert.Equal(t, at, *stored.LockedOutAt)
	assert.Equal(t, at, *stored.PasswordChangedAt)

	err = s.ReleaseCredential(ctx, 42)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestSessionLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := New()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.CreateSession(ctx, &models.TerminalSession{SessionID: "S1", LogonSet: "tso"}))
	require.NoError(t, s.CreateRequest(ctx, &models.RequestSession{RequestID: "R1"}))

	t.Run("first claim succeeds", func(t *testing.T) {
		result, err := s.AcquireSessionLock(ctx, "S1", "R1", 10*time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.WasAlreadyLocked)
	})

	t.Run("second claim reports the holder", func(t *testing.T) {
		result, err := s.AcquireSessionLock(ctx, "S1", "R2", 10*time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.True(t, result.WasAlreadyLocked)
		assert.Equal(t, "R1", result.PreviousRequestID)
	})

	t.Run("release stores raw output and is idempotent", func(t *testing.T) {
		result, err := s.ReleaseSessionAndUpdateRawOutput(ctx, "S1", "BALANCE: 1,250.00")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(1), result.RowsAffected)

		request, err := s.GetRequest(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "BALANCE: 1,250.00", request.RawOutput)

		result, err = s.ReleaseSessionAndUpdateRawOutput(ctx, "S1", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Zero(t, result.RowsAffected)

		result, err = s.ReleaseSessionAndUpdateRawOutput(ctx, "missing", "")
		require.NoError(t, err)
		assert.Zero(t, result.RowsAffected)
	})

	t.Run("stale lease is reclaimed", func(t *testing.T) {
		result, err := s.AcquireSessionLock(ctx, "S1", "R3", 10*time.Minute)
		require.NoError(t, err)
		require.True(t, result.Success)

		now = now.Add(11 * time.Minute)

		result, err = s.AcquireSessionLock(ctx, "S1", "R4", 10*time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.WasAlreadyLocked)
		assert.Equal(t, "R3", result.PreviousRequestID)
	})
}

func TestConcurrentSessionLock(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateSession(ctx, &models.TerminalSession{SessionID: "S1", LogonSet: "tso"}))

	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			result, err := s.AcquireSessionLock(ctx, "S1", "R"+string(rune('A'+i)), time.Minute)
			assert.NoError(t, err)

			if result.Success {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestConcurrentSelectAndStamp(t *testing.T) {
	ctx := context.Background()
	s := New()

	const workers = 16

	for i := 0; i < workers; i++ {
		require.NoError(t, s.AddCredential(ctx, &models.LogonCredential{Pool: "main", Username: fmt.Sprintf("TSO%03d", i)}))
	}

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]bool)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			cred, err := s.SelectAndStampCredential(ctx, "main", now.Add(-10*time.Minute), now)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			assert.False(t, ids[cred.ID], "credential %d stamped twice", cred.ID)
			ids[cred.ID] = true
		}()
	}

	wg.Wait()

	assert.Len(t, ids, workers)
}

func TestRequestStatus(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateRequest(ctx, &models.RequestSession{RequestID: "R1"}))

	for _, status := range []models.RequestStatus{models.StatusInProgress, models.StatusInvokingMainframeQuery} {
		require.NoError(t, s.UpdateRequestStatus(ctx, "R1", status))
	}

	err := s.UpdateRequestStatus(ctx, "R1", models.StatusInProgress)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	require.NoError(t, s.UpdateRequestStatus(ctx, "R1", models.StatusComplete))

	err = s.UpdateRequestStatus(ctx, "R1", models.StatusFailed)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	err = s.UpdateRequestStatus(ctx, "R2", models.StatusFailed)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
