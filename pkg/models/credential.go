/*
2026 © Postgres.ai
*/

// Package models provides domain entities.
package models

import (
	"time"
)

// LogonCredential defines a host logon identity shared by a credential pool.
type LogonCredential struct {
	ID                int64
	Pool              string
	Username          string
	Password          string
	PasswordEncrypted bool
	LockedOut         bool
	LockedOutAt       *time.Time
	PasswordChangedAt *time.Time
	LockLastTakenAt   *time.Time
}

// IsEligible checks if the credential may be handed out at the given moment.
func (c LogonCredential) IsEligible(staleBefore time.Time) bool {
	if c.LockedOut {
		return false
	}

	return c.LockLastTakenAt == nil || c.LockLastTakenAt.Before(staleBefore)
}

// String returns a log-safe representation of the credential.
func (c LogonCredential) String() string {
	return c.Pool + "/" + c.Username
}
