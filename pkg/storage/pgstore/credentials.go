/*
2026 © Postgres.ai
*/

package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

const credentialColumns = `c.id, c.pool, c.username, c.password, c.password_encrypted, c.locked_out,
	c.locked_out_at, c.password_changed_at, c.lock_last_taken_at`

const selectAndStampQuery = `update logon_credentials c set lock_last_taken_at = $3
where c.id = (
	select id from logon_credentials
	where pool = $1 and not locked_out and (lock_last_taken_at is null or lock_last_taken_at < $2)
	order by lock_last_taken_at asc nulls first, id
	limit 1
	for update skip locked
)
returning ` + credentialColumns

func scanCredential(row pgx.Row) (*models.LogonCredential, error) {
	var cred models.LogonCredential

	var lockedOutAt, changedAt, lastTakenAt pgtype.Timestamptz

	if err := row.Scan(&cred.ID, &cred.Pool, &cred.Username, &cred.Password, &cred.PasswordEncrypted, &cred.LockedOut,
		&lockedOutAt, &changedAt, &lastTakenAt); err != nil {
		return nil, err
	}

	cred.LockedOutAt = timePtr(lockedOutAt)
	cred.PasswordChangedAt = timePtr(changedAt)
	cred.LockLastTakenAt = timePtr(lastTakenAt)

	return &cred, nil
}

// SelectAndStampCredential implements storage.CredentialStore.
func (s *Store) SelectAndStampCredential(ctx context.Context, pool string, staleBefore, now time.Time) (*models.LogonCredential, error) {
	cred, err := scanCredential(s.pool.QueryRow(ctx, selectAndStampQuery, pool, staleBefore, now))
	if err != nil {
		return nil, notFound(err, "failed to select a credential of pool %q", pool)
	}

	return cred, nil
}

// ReleaseCredential implements storage.CredentialStore.
func (s *Store) ReleaseCredential(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `update logon_credentials set lock_last_taken_at = null where id = $1`, id)
	return requireAffected(tag, err, "failed to release credential %d", id)
}

// UpdatePassword implements storage.CredentialStore.
func (s *Store) UpdatePassword(ctx context.Context, id int64, password string, changedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `update logon_credentials set password = $2, password_changed_at = $3 where id = $1`,
		id, password, changedAt)
	return requireAffected(tag, err, "failed to update password of credential %d", id)
}

// LockOutCredential implements storage.CredentialStore.
func (s *Store) LockOutCredential(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `update logon_credentials set locked_out = true, locked_out_at = $2 where id = $1`, id, at)
	return requireAffected(tag, err, "failed to lock out credential %d", id)
}

// GetCredential implements storage.CredentialStore.
func (s *Store) GetCredential(ctx context.Context, id int64) (*models.LogonCredential, error) {
	cred, err := scanCredential(s.pool.QueryRow(ctx, `select `+credentialColumns+` from logon_credentials c where c.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "failed to get credential %d", id)
	}

	return cred, nil
}

// ListCredentials implements storage.CredentialStore.
func (s *Store) ListCredentials(ctx context.Context, pool string) ([]models.LogonCredential, error) {
	rows, err := s.pool.Query(ctx, `select `+credentialColumns+` from logon_credentials c
		where $1 = '' or c.pool = $1 order by c.id`, pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list credentials")
	}

	defer rows.Close()

	var creds []models.LogonCredential

	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan a credential")
		}

		creds = append(creds, *cred)
	}

	return creds, errors.Wrap(rows.Err(), "failed to list credentials")
}

// AddCredential implements storage.CredentialStore.
func (s *Store) AddCredential(ctx context.Context, cred *models.LogonCredential) error {
	err := s.pool.QueryRow(ctx, `insert into logon_credentials (pool, username, password, password_encrypted)
		values ($1, $2, $3, $4) returning id`,
		cred.Pool, cred.Username, cred.Password, cred.PasswordEncrypted).Scan(&cred.ID)

	return errors.Wrapf(err, "failed to add credential %s", cred)
}
