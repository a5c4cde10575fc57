/*
2026 © Postgres.ai
*/

package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgtype"
	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// CreateSession implements storage.SessionStore.
func (s *Store) CreateSession(ctx context.Context, session *models.TerminalSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `insert into terminal_sessions (session_id, logon_set, credential_id, created_at)
		values ($1, $2, $3, $4)`, session.SessionID, session.LogonSet, session.CredentialID, session.CreatedAt)

	return errors.Wrapf(err, "failed to create session %s", session.SessionID)
}

// AcquireSessionLock implements storage.SessionStore.
func (s *Store) AcquireSessionLock(ctx context.Context, sessionID, requestID string, leaseTTL time.Duration) (models.AcquireSessionLockResult, error) {
	var (
		result                models.AcquireSessionLockResult
		lockTakenAt, previous pgtype.Timestamptz
		previousRequest       pgtype.Text
	)

	err := s.pool.QueryRow(ctx, `select r_success, r_session_id, r_request_id, r_lock_taken_at, r_previous_lock_taken_at,
		r_previous_request_id, r_was_already_locked, r_message from acquire_session_lock($1, $2, $3)`,
		sessionID, requestID, leaseTTL).
		Scan(&result.Success, &result.SessionID, &result.RequestID, &lockTakenAt, &previous,
			&previousRequest, &result.WasAlreadyLocked, &result.Message)
	if err != nil {
		return models.AcquireSessionLockResult{}, errors.Wrapf(err, "failed to acquire session %s", sessionID)
	}

	result.LockTakenAt = timePtr(lockTakenAt)
	result.PreviousLockTakenAt = timePtr(previous)
	result.PreviousRequestID = textValue(previousRequest)

	return result, nil
}

// ReleaseSessionAndUpdateRawOutput implements storage.SessionStore.
func (s *Store) ReleaseSessionAndUpdateRawOutput(ctx context.Context, sessionID, rawOutput string) (models.ReleaseSessionResult, error) {
	var (
		result   models.ReleaseSessionResult
		previous pgtype.Timestamptz
	)

	err := s.pool.QueryRow(ctx, `select r_success, r_rows_affected, r_previous_lock_taken_at, r_message
		from release_session_and_update_raw_output($1, $2)`, sessionID, rawOutput).
		Scan(&result.Success, &result.RowsAffected, &previous, &result.Message)
	if err != nil {
		return models.ReleaseSessionResult{}, errors.Wrapf(err, "failed to release session %s", sessionID)
	}

	result.PreviousLockTakenAt = timePtr(previous)

	return result, nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `delete from terminal_sessions where session_id = $1`, sessionID)
	return errors.Wrapf(err, "failed to delete session %s", sessionID)
}

// ListSessions implements storage.SessionStore.
func (s *Store) ListSessions(ctx context.Context, logonSet string) ([]models.TerminalSession, error) {
	rows, err := s.pool.Query(ctx, `select session_id, logon_set, coalesce(credential_id, 0), request_id, lock_taken_at, created_at
		from terminal_sessions where $1 = '' or logon_set = $1 order by created_at`, logonSet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	defer rows.Close()

	var sessions []models.TerminalSession

	for rows.Next() {
		var (
			session     models.TerminalSession
			requestID   pgtype.Text
			lockTakenAt pgtype.Timestamptz
		)

		if err := rows.Scan(&session.SessionID, &session.LogonSet, &session.CredentialID, &requestID, &lockTakenAt,
			&session.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan a session")
		}

		session.RequestID = textValue(requestID)
		session.LockTakenAt = timePtr(lockTakenAt)

		sessions = append(sessions, session)
	}

	return sessions, errors.Wrap(rows.Err(), "failed to list sessions")
}
