/*
2026 © Postgres.ai
*/

package sessionmgr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hako/durafmt"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"
)

// Info describes a live session.
type Info struct {
	SessionID    string        `json:"sessionId"`
	LogonSet     string        `json:"logonSet"`
	Username     string        `json:"username"`
	CredentialID int64         `json:"credentialId"`
	RequestID    string        `json:"requestId,omitempty"`
	Leased       bool          `json:"leased"`
	Reset        bool          `json:"reset"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastUsed     time.Time     `json:"lastUsed"`
	Idle         time.Duration `json:"idle"`
}

// Sessions lists live sessions of this process ordered by creation.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	infos := make([]Info, 0, len(m.live))

	for _, s := range m.live {
		info := Info{
			SessionID:    s.id,
			LogonSet:     s.logonSet,
			Username:     s.credential.Username,
			CredentialID: s.credential.ID,
			RequestID:    s.requestID,
			Leased:       s.leased,
			Reset:        s.reset,
			CreatedAt:    s.createdAt,
			LastUsed:     s.lastUsed,
		}

		if !s.leased {
			info.Idle = now.Sub(s.lastUsed)
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })

	return infos
}

// CheckIdleSessions closes unleased sessions idle for longer than the idle timeout and sessions marked for reset.
func (m *Manager) CheckIdleSessions(ctx context.Context) {
	now := m.now()

	var stale []*session

	m.mu.Lock()

	for _, s := range m.live {
		if s.leased {
			continue
		}

		idle := now.Sub(s.lastUsed)

		if s.reset || (m.cfg.IdleTimeout > 0 && idle >= m.cfg.IdleTimeout) {
			log.Dbg(fmt.Sprintf("Session %s idle for %s", s.id, durafmt.Parse(idle.Round(time.Second))))

			// Leased sessions are skipped by Acquire, so nobody picks it up while it is closing.
			s.leased = true
			stale = append(stale, s)
		}
	}

	m.mu.Unlock()

	for _, s := range stale {
		if ctx.Err() != nil {
			m.unreserve(s)
			continue
		}

		m.teardown(ctx, s)
	}

	m.publish()
}

// Close tears down every session. Leased sessions are released first.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()

	sessions := make([]*session, 0, len(m.live))
	for _, s := range m.live {
		sessions = append(sessions, s)
	}

	m.mu.Unlock()

	for _, s := range sessions {
		if _, err := m.store.ReleaseSessionAndUpdateRawOutput(ctx, s.id, ""); err != nil {
			log.Err(err)
		}

		m.teardown(ctx, s)
	}
}
