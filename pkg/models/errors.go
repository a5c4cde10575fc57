/*
2026 © Postgres.ai
*/

package models

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("not found")

	// ErrResourceShortage reports a temporary lack of credentials or sessions.
	ErrResourceShortage = errors.New("resource shortage")

	// ErrNoCredential reports that a credential pool has no eligible identity.
	ErrNoCredential = errors.Wrap(ErrResourceShortage, "no eligible credential")

	// ErrNoFreeSession reports that every session of a logon set is busy and no more can be opened.
	ErrNoFreeSession = errors.Wrap(ErrResourceShortage, "no free session")

	// ErrLeaseContention reports that a session is actively held by another request.
	ErrLeaseContention = errors.New("session is locked by another request")

	// ErrInternalConsistency reports that a row expected to exist has vanished.
	ErrInternalConsistency = errors.New("internal consistency failure")

	// ErrInvalidTransition reports an attempt to move a request status backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsRetryable checks if the caller may retry the request later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInternalConsistency) || errors.Is(err, context.Canceled) {
		return false
	}

	return errors.Is(err, ErrResourceShortage) || errors.Is(err, ErrLeaseContention)
}
