/*
2026 © Postgres.ai
*/

package models

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	testCases := []struct {
		caseName string
		from     RequestStatus
		to       RequestStatus
		allowed  bool
	}{
		{caseName: "started to in progress", from: StatusStarted, to: StatusInProgress, allowed: true},
		{caseName: "in progress to invoking", from: StatusInProgress, to: StatusInvokingMainframeQuery, allowed: true},
		{caseName: "invoking to complete", from: StatusInvokingMainframeQuery, to: StatusComplete, allowed: true},
		{caseName: "invoking to parsing", from: StatusInvokingMainframeQuery, to: StatusParsingMainframeResponse, allowed: true},
		{caseName: "parsing to complete", from: StatusParsingMainframeResponse, to: StatusComplete, allowed: true},
		{caseName: "started to complete is a skip", from: StatusStarted, to: StatusComplete, allowed: false},
		{caseName: "regression", from: StatusInvokingMainframeQuery, to: StatusInProgress, allowed: false},
		{caseName: "same status", from: StatusInProgress, to: StatusInProgress, allowed: false},
		{caseName: "failed from started", from: StatusStarted, to: StatusFailed, allowed: true},
		{caseName: "failed from invoking", from: StatusInvokingMainframeQuery, to: StatusFailed, allowed: true},
		{caseName: "complete is terminal", from: StatusComplete, to: StatusFailed, allowed: false},
		{caseName: "failed is terminal", from: StatusFailed, to: StatusComplete, allowed: false},
		{caseName: "unknown target", from: StatusStarted, to: RequestStatus("Paused"), allowed: false},
	}

	for _, tc := range testCases {
		t.Log(tc.caseName)

		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
	}
}

func TestCredentialEligibility(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	staleBefore := now.Add(-10 * time.Minute)
	recent := now.Add(-time.Minute)
	old := now.Add(-time.Hour)

	assert.True(t, LogonCredential{}.IsEligible(staleBefore))
	assert.True(t, LogonCredential{LockLastTakenAt: &old}.IsEligible(staleBefore))
	assert.False(t, LogonCredential{LockLastTakenAt: &recent}.IsEligible(staleBefore))
	assert.False(t, LogonCredential{LockedOut: true}.IsEligible(staleBefore))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.Wrap(ErrNoCredential, "pool main")))
	assert.True(t, IsRetryable(ErrNoFreeSession))
	assert.True(t, IsRetryable(errors.Wrap(ErrLeaseContention, "session s1")))
	assert.False(t, IsRetryable(errors.Wrap(ErrInternalConsistency, "credential 1")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("screen indicates error")))
	assert.False(t, IsRetryable(nil))
}

func TestParameterMap(t *testing.T) {
	req := QueryRequest{
		Parameters:     []Parameter{{Name: "Account", Value: "42"}, {Name: "Region", Value: "EU"}},
		TimeoutSeconds: 3,
	}

	assert.Equal(t, map[string]string{"Account": "42", "Region": "EU"}, req.ParameterMap())
	assert.Equal(t, 3*time.Second, req.Timeout())
	assert.Zero(t, QueryRequest{}.Timeout())
}
