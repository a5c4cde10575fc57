/*
2026 © Postgres.ai
*/

// Package credentials provides the credential pool rotating logon identities across sessions.
package credentials

import (
	"context"
	"time"

	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-password/password"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/crypt"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
)

const (
	passwordLength  = 6
	passwordLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Pool hands out logon credentials round-robin by recency of use.
type Pool struct {
	store     storage.CredentialStore
	sealer    crypt.Sealer
	staleness time.Duration
	generator *password.Generator
	now       func() time.Time
}

// NewPool creates a credential pool.
func NewPool(store storage.CredentialStore, sealer crypt.Sealer, cfg config.Credentials) (*Pool, error) {
	generator, err := password.NewGenerator(&password.GeneratorInput{
		LowerLetters: passwordLetters,
		UpperLetters: passwordLetters,
		Digits:       "0123456789",
		Symbols:      "#",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a password generator")
	}

	if sealer == nil {
		sealer = crypt.NoKey{}
	}

	return &Pool{
		store:     store,
		sealer:    sealer,
		staleness: cfg.StalenessWindow,
		generator: generator,
		now:       time.Now,
	}, nil
}

// Select takes the eligible credential of the pool used least recently and stamps it.
// It reports false without an error when the pool has no eligible credential.
func (p *Pool) Select(ctx context.Context, pool string) (*models.LogonCredential, bool, error) {
	now := p.now()

	cred, err := p.store.SelectAndStampCredential(ctx, pool, now.Add(-p.staleness), now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Dbg("No eligible credential in pool ", pool)
			return nil, false, nil
		}

		return nil, false, errors.Wrapf(err, "failed to select a credential of pool %q", pool)
	}

	if cred.LockedOut {
		return nil, false, errors.Wrapf(models.ErrInternalConsistency, "locked out credential %s selected", cred)
	}

	log.Dbg("Credential selected: ", cred.String())

	return cred, true, nil
}

// Release makes the credential eligible again.
func (p *Pool) Release(ctx context.Context, cred *models.LogonCredential) error {
	if err := p.store.ReleaseCredential(ctx, cred.ID); err != nil {
		return consistency(err, cred, "release")
	}

	if cred.LockLastTakenAt != nil {
		log.Dbg("Credential released after ", durafmt.Parse(p.now().Sub(*cred.LockLastTakenAt).Round(time.Second)).String())
	}

	cred.LockLastTakenAt = nil

	return nil
}

// GeneratePassword returns a new password acceptable by the host.
func (p *Pool) GeneratePassword() (string, error) {
	pw, err := p.generator.Generate(passwordLength, 0, 0, true, true)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate a password")
	}

	return pw, nil
}

// SetPassword stores a password changed on the host.
func (p *Pool) SetPassword(ctx context.Context, cred *models.LogonCredential, pw string) error {
	stored := pw

	if cred.PasswordEncrypted {
		sealed, err := p.sealer.Seal(pw)
		if err != nil {
			return errors.Wrapf(err, "failed to seal password of %s", cred)
		}

		stored = sealed
	}

	now := p.now()

	if err := p.store.UpdatePassword(ctx, cred.ID, stored, now); err != nil {
		return consistency(err, cred, "update password of")
	}

	cred.Password = stored
	cred.PasswordChangedAt = &now

	log.Msg("Password changed for credential ", cred.String())

	return nil
}

// Revoke locks the credential out of rotation.
func (p *Pool) Revoke(ctx context.Context, cred *models.LogonCredential) error {
	now := p.now()

	if err := p.store.LockOutCredential(ctx, cred.ID, now); err != nil {
		return consistency(err, cred, "revoke")
	}

	cred.LockedOut = true
	cred.LockedOutAt = &now

	log.Msg("Credential locked out: ", cred.String())

	return nil
}

// Reveal returns the plain password of the credential.
func (p *Pool) Reveal(cred *models.LogonCredential) (string, error) {
	if !cred.PasswordEncrypted {
		return cred.Password, nil
	}

	pw, err := p.sealer.Open(cred.Password)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open password of %s", cred)
	}

	return pw, nil
}

func consistency(err error, cred *models.LogonCredential, action string) error {
	if errors.Is(err, models.ErrNotFound) {
		return errors.Wrapf(models.ErrInternalConsistency, "failed to %s credential %s: %v", action, cred, err)
	}

	return errors.Wrapf(err, "failed to %s credential %s", action, cred)
}
