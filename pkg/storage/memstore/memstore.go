/*
2026 © Postgres.ai
*/

// Package memstore provides an in-process store for a single instance and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps all state in memory guarded by a single mutex.
type Store struct {
	mu sync.Mutex

	credentials  map[int64]*models.LogonCredential
	nextID       int64
	sessions     map[string]*models.TerminalSession
	requests     map[string]*models.RequestSession
	transactions map[string][]models.TransactionData

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		credentials:  make(map[int64]*models.LogonCredential),
		sessions:     make(map[string]*models.TerminalSession),
		requests:     make(map[string]*models.RequestSession),
		transactions: make(map[string][]models.TransactionData),
		now:          time.Now,
	}
}

// SetClock replaces the time source of lease operations.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// AddCredential implements storage.CredentialStore.
func (s *Store) AddCredential(_ context.Context, cred *models.LogonCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.credentials {
		if existing.Pool == cred.Pool && strings.EqualFold(existing.Username, cred.Username) {
			return errors.Errorf("credential %s already exists", cred)
		}
	}

	s.nextID++
	cred.ID = s.nextID

	stored := *cred
	s.credentials[cred.ID] = &stored

	return nil
}

// SelectAndStampCredential implements storage.CredentialStore.
func (s *Store) SelectAndStampCredential(_ context.Context, pool string, staleBefore, now time.Time) (*models.LogonCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected *models.LogonCredential

	for _, cred := range s.credentials {
		if cred.Pool != pool || !cred.IsEligible(staleBefore) {
			continue
		}

		if selected == nil || takenEarlier(cred, selected) {
			selected = cred
		}
	}

	if selected == nil {
		return nil, models.ErrNotFound
	}

	selected.LockLastTakenAt = pointer.ToTime(now)

	result := *selected

	return &result, nil
}

// takenEarlier orders credentials by their last stamp, never taken first, then by id.
func takenEarlier(a, b *models.LogonCredential) bool {
	switch {
	case a.LockLastTakenAt == nil && b.LockLastTakenAt == nil:
		return a.ID < b.ID
	case a.LockLastTakenAt == nil:
		return true
	case b.LockLastTakenAt == nil:
		return false
	case a.LockLastTakenAt.Equal(*b.LockLastTakenAt):
		return a.ID < b.ID
	default:
		return a.LockLastTakenAt.Before(*b.LockLastTakenAt)
	}
}

// ReleaseCredential implements storage.CredentialStore.
func (s *Store) ReleaseCredential(_ context.Context, id int64) error {
	return s.updateCredential(id, func(cred *models.LogonCredential) {
		cred.LockLastTakenAt = nil
	})
}

// UpdatePassword implements storage.CredentialStore.
func (s *Store) UpdatePassword(_ context.Context, id int64, password string, changedAt time.Time) error {
	return s.updateCredential(id, func(cred *models.LogonCredential) {
		cred.Password = password
		cred.PasswordChangedAt = pointer.ToTime(changedAt)
	})
}

// LockOutCredential implements storage.CredentialStore.
func (s *Store) LockOutCredential(_ context.Context, id int64, at time.Time) error {
	return s.updateCredential(id, func(cred *models.LogonCredential) {
		cred.LockedOut = true
		cred.LockedOutAt = pointer.ToTime(at)
	})
}

func (s *Store) updateCredential(id int64, update func(cred *models.LogonCredential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[id]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "credential %d", id)
	}

	update(cred)

	return nil
}

// GetCredential implements storage.CredentialStore.
func (s *Store) GetCredential(_ context.Context, id int64) (*models.LogonCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "credential %d", id)
	}

	result := *cred

	return &result, nil
}

// ListCredentials implements storage.CredentialStore.
func (s *Store) ListCredentials(_ context.Context, pool string) ([]models.LogonCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := make([]models.LogonCredential, 0, len(s.credentials))

	for _, cred := range s.credentials {
		if pool == "" || cred.Pool == pool {
			creds = append(creds, *cred)
		}
	}

	sort.Slice(creds, func(i, j int) bool { return creds[i].ID < creds[j].ID })

	return creds, nil
}

// CreateSession implements storage.SessionStore.
func (s *Store) CreateSession(_ context.Context, session *models.TerminalSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; ok {
		return errors.Errorf("session %s already exists", session.SessionID)
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	stored := *session
	s.sessions[session.SessionID] = &stored

	return nil
}

// AcquireSessionLock implements storage.SessionStore.
func (s *Store) AcquireSessionLock(_ context.Context, sessionID, requestID string, leaseTTL time.Duration) (models.AcquireSessionLockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := models.AcquireSessionLockResult{SessionID: sessionID, RequestID: requestID}

	session, ok := s.sessions[sessionID]
	if !ok {
		result.Message = "session not found"
		return result, nil
	}

	now := s.now()

	if session.LockTakenAt != nil {
		result.WasAlreadyLocked = true
		result.PreviousRequestID = session.RequestID
		result.PreviousLockTakenAt = pointer.ToTime(*session.LockTakenAt)

		if now.Sub(*session.LockTakenAt) < leaseTTL {
			result.Message = "session is locked by request " + session.RequestID
			return result, nil
		}

		result.Message = "stale lease reclaimed"
	} else {
		result.Message = "lock acquired"
	}

	session.RequestID = requestID
	session.LockTakenAt = pointer.ToTime(now)

	result.Success = true
	result.LockTakenAt = pointer.ToTime(now)

	return result, nil
}

// ReleaseSessionAndUpdateRawOutput implements storage.SessionStore.
func (s *Store) ReleaseSessionAndUpdateRawOutput(_ context.Context, sessionID, rawOutput string) (models.ReleaseSessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := models.ReleaseSessionResult{Success: true}

	session, ok := s.sessions[sessionID]
	if !ok || session.LockTakenAt == nil {
		result.Message = "session is not locked"
		return result, nil
	}

	if request, ok := s.requests[session.RequestID]; ok {
		request.RawOutput = rawOutput
	}

	result.PreviousLockTakenAt = session.LockTakenAt
	result.RowsAffected = 1
	result.Message = "session released"

	session.RequestID = ""
	session.LockTakenAt = nil

	return result, nil
}

// DeleteSession implements storage.SessionStore.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}

// ListSessions implements storage.SessionStore.
func (s *Store) ListSessions(_ context.Context, logonSet string) ([]models.TerminalSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]models.TerminalSession, 0, len(s.sessions))

	for _, session := range s.sessions {
		if logonSet == "" || session.LogonSet == logonSet {
			sessions = append(sessions, *session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })

	return sessions, nil
}

// CreateRequest implements storage.RequestStore.
func (s *Store) CreateRequest(_ context.Context, request *models.RequestSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.RequestID]; ok {
		return errors.Errorf("request %s already exists", request.RequestID)
	}

	if request.Status == "" {
		request.Status = models.StatusStarted
	}

	if request.CreatedAt.IsZero() {
		request.CreatedAt = s.now()
	}

	stored := *request
	s.requests[request.RequestID] = &stored

	return nil
}

// UpdateRequestStatus implements storage.RequestStore.
func (s *Store) UpdateRequestStatus(_ context.Context, requestID string, status models.RequestStatus) error {
	return s.updateRequest(requestID, func(request *models.RequestSession) error {
		if !request.Status.CanTransitionTo(status) {
			return errors.Wrapf(models.ErrInvalidTransition, "%s to %s", request.Status, status)
		}

		request.Status = status

		return nil
	})
}

// SetRequestSession implements storage.RequestStore.
func (s *Store) SetRequestSession(_ context.Context, requestID, sessionID string) error {
	return s.updateRequest(requestID, func(request *models.RequestSession) error {
		request.SessionID = sessionID
		return nil
	})
}

// SetParsedOutput implements storage.RequestStore.
func (s *Store) SetParsedOutput(_ context.Context, requestID, parsedOutput string) error {
	return s.updateRequest(requestID, func(request *models.RequestSession) error {
		request.ParsedOutput = parsedOutput
		return nil
	})
}

func (s *Store) updateRequest(requestID string, update func(request *models.RequestSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "request %s", requestID)
	}

	return update(request)
}

// GetRequest implements storage.RequestStore.
func (s *Store) GetRequest(_ context.Context, requestID string) (*models.RequestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "request %s", requestID)
	}

	result := *request

	return &result, nil
}

// AddTransactions implements storage.TransactionStore.
func (s *Store) AddTransactions(_ context.Context, transactions []models.TransactionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range transactions {
		s.transactions[tx.RequestID] = append(s.transactions[tx.RequestID], tx)
	}

	return nil
}

// ListTransactions implements storage.TransactionStore.
func (s *Store) ListTransactions(_ context.Context, requestID string) ([]models.TransactionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.TransactionData(nil), s.transactions[requestID]...), nil
}
