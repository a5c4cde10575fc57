/*
2026 © Postgres.ai
*/

// Package storage declares the durable state shared by every service instance.
// Operations that hand out shared resources are atomic in the store.
package storage

import (
	"context"
	"time"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// CredentialStore keeps logon credentials.
type CredentialStore interface {
	// SelectAndStampCredential atomically picks the eligible credential of the pool taken least recently
	// and stamps it with now. Credentials never taken come first. It returns models.ErrNotFound if none is eligible.
	SelectAndStampCredential(ctx context.Context, pool string, staleBefore, now time.Time) (*models.LogonCredential, error)
	ReleaseCredential(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, password string, changedAt time.Time) error
	LockOutCredential(ctx context.Context, id int64, at time.Time) error
	GetCredential(ctx context.Context, id int64) (*models.LogonCredential, error)
	ListCredentials(ctx context.Context, pool string) ([]models.LogonCredential, error)
	AddCredential(ctx context.Context, cred *models.LogonCredential) error
}

// SessionStore keeps terminal sessions and their leases.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.TerminalSession) error
	// AcquireSessionLock claims the session for the request unless a lease younger than leaseTTL exists.
	AcquireSessionLock(ctx context.Context, sessionID, requestID string, leaseTTL time.Duration) (models.AcquireSessionLockResult, error)
	// ReleaseSessionAndUpdateRawOutput clears the lease and stores the raw output on the holding request.
	// Releasing an unleased or missing session succeeds with zero affected rows.
	ReleaseSessionAndUpdateRawOutput(ctx context.Context, sessionID, rawOutput string) (models.ReleaseSessionResult, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// ListSessions returns sessions of the logon set, all sessions for an empty name.
	ListSessions(ctx context.Context, logonSet string) ([]models.TerminalSession, error)
}

// RequestStore keeps request sessions.
type RequestStore interface {
	CreateRequest(ctx context.Context, request *models.RequestSession) error
	// UpdateRequestStatus moves the request forward. It returns models.ErrInvalidTransition on regressions.
	UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) error
	SetRequestSession(ctx context.Context, requestID, sessionID string) error
	SetParsedOutput(ctx context.Context, requestID, parsedOutput string) error
	GetRequest(ctx context.Context, requestID string) (*models.RequestSession, error)
}

// TransactionStore keeps the append-only protocol audit.
type TransactionStore interface {
	AddTransactions(ctx context.Context, transactions []models.TransactionData) error
	ListTransactions(ctx context.Context, requestID string) ([]models.TransactionData, error)
}

// Store combines all stores.
type Store interface {
	CredentialStore
	SessionStore
	RequestStore
	TransactionStore
}
