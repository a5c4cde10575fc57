/*
2026 © Postgres.ai
*/

package models

import (
	"time"
)

// TerminalSession defines a durable row of a live authenticated terminal session.
type TerminalSession struct {
	SessionID    string
	LogonSet     string
	CredentialID int64
	RequestID    string
	LockTakenAt  *time.Time
	CreatedAt    time.Time
}

// AcquireSessionLockResult describes an outcome of an atomic session claim.
type AcquireSessionLockResult struct {
	Success             bool
	SessionID           string
	RequestID           string
	LockTakenAt         *time.Time
	PreviousLockTakenAt *time.Time
	PreviousRequestID   string
	WasAlreadyLocked    bool
	Message             string
}

// ReleaseSessionResult describes an outcome of a session release.
type ReleaseSessionResult struct {
	Success             bool
	RowsAffected        int64
	PreviousLockTakenAt *time.Time
	Message             string
}
