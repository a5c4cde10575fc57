/*
2026 © Postgres.ai
*/

// Package sessionmgr provides the session lock manager leasing live terminal sessions to requests.
package sessionmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/interpreter"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/observability"
	"gitlab.com/postgres-ai/hostlink/pkg/services/credentials"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
)

// Placeholders available to logon instruction sets.
const (
	PlaceholderUsername    = "Username"
	PlaceholderPassword    = "Password"
	PlaceholderNewPassword = "NewPassword"
)

// Manager leases live terminal sessions to requests and opens new ones on demand.
type Manager struct {
	cfg         config.Sessions
	store       storage.SessionStore
	creds       *credentials.Pool
	provider    instruction.Provider
	interpreter *interpreter.Interpreter
	dialer      emulator.Dialer
	metrics     *observability.Metrics
	now         func() time.Time

	mu      sync.Mutex
	live    map[string]*session
	opening map[string]int
}

// session defines a live authenticated terminal owned by this process.
type session struct {
	id         string
	logonSet   string
	credential *models.LogonCredential
	conn       *emulator.Conn
	term       emulator.Terminal
	createdAt  time.Time

	// Guarded by Manager.mu.
	leased    bool
	requestID string
	lastUsed  time.Time
	reset     bool
}

// NewManager creates a session lock manager.
func NewManager(cfg config.Sessions, store storage.SessionStore, creds *credentials.Pool, provider instruction.Provider,
	interp *interpreter.Interpreter, dialer emulator.Dialer, metrics *observability.Metrics) *Manager {
	return &Manager{
		cfg:         cfg,
		store:       store,
		creds:       creds,
		provider:    provider,
		interpreter: interp,
		dialer:      dialer,
		metrics:     metrics,
		now:         time.Now,
		live:        make(map[string]*session),
		opening:     make(map[string]int),
	}
}

// Acquire leases a session of the logon set to the request. A free live session is preferred,
// a new one is opened when the logon set limit allows.
func (m *Manager) Acquire(ctx context.Context, logonSetName, requestID string) (*Handle, error) {
	start := time.Now()

	handle, err := m.acquire(ctx, logonSetName, requestID)

	m.metrics.ObserveLockWait(ctx, logonSetName, err == nil, time.Since(start))
	m.publish()

	return handle, err
}

func (m *Manager) acquire(ctx context.Context, logonSetName, requestID string) (*Handle, error) {
	logonSet, err := m.provider.Logon(ctx, logonSetName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load logon set %q", logonSetName)
	}

	contended := false

	for _, s := range m.reserveFree(logonSet.Name) {
		handle, err := m.claim(ctx, s, requestID)
		if err == nil {
			return handle, nil
		}

		if errors.Is(err, models.ErrLeaseContention) {
			contended = true
			continue
		}

		if errors.Is(err, models.ErrNotFound) {
			log.Msg(fmt.Sprintf("Session %s row vanished, closing it", s.id))
			m.teardown(context.WithoutCancel(ctx), s)

			continue
		}

		return nil, err
	}

	if !m.reserveOpening(logonSet) {
		if contended {
			return nil, errors.Wrapf(models.ErrLeaseContention, "every session of %q is locked", logonSet.Name)
		}

		return nil, errors.Wrapf(models.ErrNoFreeSession, "%s of %q in use",
			english.Plural(logonSet.MaxSessions, "session", ""), logonSet.Name)
	}

	s, err := m.open(ctx, logonSet)

	m.mu.Lock()
	m.opening[logonSet.Name]--

	if err == nil {
		s.leased = true
		m.live[s.id] = s
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	handle, err := m.claim(ctx, s, requestID)
	if err != nil {
		m.teardown(context.WithoutCancel(ctx), s)
		return nil, err
	}

	return handle, nil
}

// reserveFree marks free live sessions of the logon set as leased so concurrent requests in this process skip them.
func (m *Manager) reserveFree(logonSet string) []*session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var free []*session

	for _, s := range m.live {
		if s.logonSet != logonSet || s.leased || s.reset {
			continue
		}

		s.leased = true
		free = append(free, s)
	}

	return free
}

func (m *Manager) reserveOpening(logonSet *instruction.LogonSet) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logonSet.MaxSessions > 0 {
		count := m.opening[logonSet.Name]

		for _, s := range m.live {
			if s.logonSet == logonSet.Name {
				count++
			}
		}

		if count >= logonSet.MaxSessions {
			return false
		}
	}

	m.opening[logonSet.Name]++

	return true
}

// claim takes the store lease of a session reserved by this process.
func (m *Manager) claim(ctx context.Context, s *session, requestID string) (*Handle, error) {
	result, err := m.store.AcquireSessionLock(ctx, s.id, requestID, m.cfg.LeaseTTL)
	if err != nil {
		m.unreserve(s)
		return nil, errors.Wrapf(err, "failed to claim session %s", s.id)
	}

	if !result.Success {
		m.unreserve(s)

		if result.WasAlreadyLocked {
			return nil, errors.Wrapf(models.ErrLeaseContention, "session %s is held by request %s", s.id, result.PreviousRequestID)
		}

		return nil, errors.Wrapf(models.ErrNotFound, "session %s: %s", s.id, result.Message)
	}

	if result.WasAlreadyLocked {
		log.Msg(fmt.Sprintf("Session %s: stale lease of request %s reclaimed by %s", s.id, result.PreviousRequestID, requestID))
	}

	m.mu.Lock()
	s.requestID = requestID
	s.lastUsed = m.now()
	m.mu.Unlock()

	log.Dbg(fmt.Sprintf("Session %s leased to request %s", s.id, requestID))

	return &Handle{manager: m, session: s, requestID: requestID, lockTakenAt: result.LockTakenAt}, nil
}

func (m *Manager) unreserve(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.leased = false
}

// open connects a new terminal and logs on with a credential of the logon set pool.
func (m *Manager) open(ctx context.Context, logonSet *instruction.LogonSet) (*session, error) {
	cred, ok, err := m.creds.Select(ctx, logonSet.Pool)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errors.Wrapf(models.ErrNoCredential, "pool %q", logonSet.Pool)
	}

	s, err := m.logon(ctx, logonSet, cred)
	if err != nil {
		if releaseErr := m.creds.Release(context.WithoutCancel(ctx), cred); releaseErr != nil {
			log.Err(errors.Wrap(releaseErr, "failed to release credential"))
		}

		return nil, err
	}

	return s, nil
}

func (m *Manager) logon(ctx context.Context, logonSet *instruction.LogonSet, cred *models.LogonCredential) (*session, error) {
	password, err := m.creds.Reveal(cred)
	if err != nil {
		return nil, err
	}

	term, err := m.dialer.Dial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a terminal")
	}

	if err := term.Connect(ctx); err != nil {
		_ = term.Close()
		return nil, errors.Wrap(err, "failed to connect to the host")
	}

	s := &session{
		id:         xid.New().String(),
		logonSet:   logonSet.Name,
		credential: cred,
		conn:       emulator.NewConn(term),
		term:       term,
		createdAt:  m.now(),
	}

	var newPassword string

	rc := interpreter.NewRunContext(map[string]string{
		PlaceholderUsername: cred.Username,
		PlaceholderPassword: password,
	})
	rc.SessionID = s.id
	rc.Credential = cred.Username
	rc.Tags = []string{logonSet.Name}
	rc.Escalator = &escalator{manager: m, session: s}
	rc.Resolve = func(name string) (string, bool) {
		if name != PlaceholderNewPassword {
			return "", false
		}

		if newPassword == "" {
			generated, err := m.creds.GeneratePassword()
			if err != nil {
				log.Err(err)
				return "", false
			}

			newPassword = generated
		}

		return newPassword, true
	}

	if err := m.interpreter.Run(ctx, s.conn, logonSet.Actions, rc); err != nil {
		_ = term.Close()
		return nil, errors.Wrapf(err, "failed to log on with %s", cred)
	}

	if rc.Used(PlaceholderNewPassword) {
		if err := m.creds.SetPassword(context.WithoutCancel(ctx), cred, newPassword); err != nil {
			_ = term.Close()
			return nil, errors.Wrap(err, "failed to store the changed password")
		}
	}

	if err := m.store.CreateSession(ctx, &models.TerminalSession{
		SessionID:    s.id,
		LogonSet:     s.logonSet,
		CredentialID: cred.ID,
		CreatedAt:    s.createdAt,
	}); err != nil {
		_ = term.Close()
		return nil, err
	}

	log.Msg(fmt.Sprintf("Session %s opened for %q with %s", s.id, logonSet.Name, cred))

	return s, nil
}

// release gives the lease back and tears the session down if it was marked for reset.
func (m *Manager) release(ctx context.Context, h *Handle, rawOutput string) error {
	result, err := m.store.ReleaseSessionAndUpdateRawOutput(ctx, h.session.id, rawOutput)

	m.mu.Lock()
	h.session.leased = false
	h.session.requestID = ""
	h.session.lastUsed = m.now()
	reset := h.session.reset
	m.mu.Unlock()

	if err != nil {
		m.teardown(ctx, h.session)
		return errors.Wrapf(err, "failed to release session %s", h.session.id)
	}

	if result.RowsAffected == 0 {
		log.Msg(fmt.Sprintf("Session %s was not locked on release: %s", h.session.id, result.Message))
	}

	if reset {
		m.teardown(ctx, h.session)
	}

	m.publish()

	return nil
}

// teardown closes the terminal, removes the session row and returns the credential to the pool.
func (m *Manager) teardown(ctx context.Context, s *session) {
	m.mu.Lock()
	_, registered := m.live[s.id]
	delete(m.live, s.id)
	m.mu.Unlock()

	if err := s.term.Close(); err != nil {
		log.Err(errors.Wrapf(err, "failed to close terminal of session %s", s.id))
	}

	if registered {
		if err := m.store.DeleteSession(ctx, s.id); err != nil {
			log.Err(err)
		}
	}

	if !s.credential.LockedOut {
		if err := m.creds.Release(ctx, s.credential); err != nil {
			log.Err(err)
		}
	}

	log.Msg(fmt.Sprintf("Session %s closed", s.id))

	m.publish()
}

func (m *Manager) markReset(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.reset = true
}

// publish updates session gauges.
func (m *Manager) publish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	total, free, unhealthy := 0, 0, 0

	for _, s := range m.live {
		total++

		switch {
		case s.reset:
			unhealthy++
		case !s.leased:
			free++
		}
	}

	m.metrics.SetSessions(total, free, unhealthy)
}

// escalator applies success condition policies to a session.
type escalator struct {
	manager *Manager
	session *session
}

// RevokeCredential implements interpreter.Escalator.
func (e *escalator) RevokeCredential(ctx context.Context) error {
	e.manager.markReset(e.session)

	return e.manager.creds.Revoke(ctx, e.session.credential)
}

// ResetSession implements interpreter.Escalator.
func (e *escalator) ResetSession(context.Context) error {
	e.manager.markReset(e.session)

	return nil
}
