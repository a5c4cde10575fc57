/*
2026 © Postgres.ai
*/

package sessionmgr

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/interpreter"
	"gitlab.com/postgres-ai/hostlink/pkg/navigation"
)

// Handle grants a request exclusive use of a session until Release.
type Handle struct {
	manager     *Manager
	session     *session
	requestID   string
	lockTakenAt *time.Time

	once       sync.Once
	releaseErr error
}

// SessionID returns the leased session identifier.
func (h *Handle) SessionID() string {
	return h.session.id
}

// Username returns the host identity of the session.
func (h *Handle) Username() string {
	return h.session.credential.Username
}

// LockTakenAt returns the lease start.
func (h *Handle) LockTakenAt() *time.Time {
	return h.lockTakenAt
}

// Run executes instruction set actions on the session. A session whose run panics
// is torn down on release since its screen state is unknown.
func (h *Handle) Run(ctx context.Context, actions []instruction.ProcessAction, rc *interpreter.RunContext) error {
	defer func() {
		if recovered := recover(); recovered != nil {
			h.manager.markReset(h.session)
			panic(recovered)
		}
	}()

	rc.SessionID = h.session.id
	rc.Credential = h.session.credential.Username
	rc.Escalator = &escalator{manager: h.manager, session: h.session}

	err := h.manager.interpreter.Run(ctx, h.session.conn, actions, rc)
	if errors.Is(err, navigation.ErrKeyTimeout) {
		h.manager.markReset(h.session)
	}

	return err
}

// Release gives the lease back and stores the raw output on the request. Only the first call has an effect.
func (h *Handle) Release(ctx context.Context, rawOutput string) error {
	h.once.Do(func() {
		h.releaseErr = h.manager.release(ctx, h, rawOutput)
	})

	return h.releaseErr
}
