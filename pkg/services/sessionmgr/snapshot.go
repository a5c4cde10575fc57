/*
2026 © Postgres.ai
*/

package sessionmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize/english"
	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// SaveSnapshot writes live sessions to disk in JSON format.
func (m *Manager) SaveSnapshot(path string) error {
	data, err := json.MarshalIndent(m.Sessions(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode sessions")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create a snapshot directory")
	}

	return errors.Wrap(os.WriteFile(path, data, 0600), "failed to write sessions")
}

// LoadSnapshot reads sessions saved by SaveSnapshot. A missing file yields no sessions.
func LoadSnapshot(path string) ([]Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to read sessions")
	}

	var infos []Info
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, errors.Wrap(err, "failed to decode sessions")
	}

	return infos, nil
}

// RestoreSessions cleans up sessions left by a previous run of this process.
// Their terminals are gone, so the rows are removed and the credentials return to the pool.
func (m *Manager) RestoreSessions(ctx context.Context, path string) error {
	infos, err := LoadSnapshot(path)
	if err != nil {
		return err
	}

	for _, info := range infos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := m.store.ReleaseSessionAndUpdateRawOutput(ctx, info.SessionID, ""); err != nil {
			log.Err(err)
		}

		if err := m.store.DeleteSession(ctx, info.SessionID); err != nil {
			log.Err(err)
		}

		cred := &models.LogonCredential{ID: info.CredentialID, Username: info.Username}
		if err := m.creds.Release(ctx, cred); err != nil {
			log.Err(err)
		}
	}

	if len(infos) > 0 {
		log.Msg(fmt.Sprintf("Cleaned up %s left by the previous run", english.Plural(len(infos), "session", "")))
	}

	return nil
}
