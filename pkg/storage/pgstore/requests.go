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

// CreateRequest implements storage.RequestStore.
func (s *Store) CreateRequest(ctx context.Context, request *models.RequestSession) error {
	if request.Status == "" {
		request.Status = models.StatusStarted
	}

	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `insert into request_sessions
		(request_id, session_id, client_tracking_id, client_request, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)`,
		request.RequestID, nullableText(request.SessionID), request.ClientTrackingID, request.ClientRequest,
		string(request.Status), request.CreatedAt)

	return errors.Wrapf(err, "failed to create request %s", request.RequestID)
}

// UpdateRequestStatus implements storage.RequestStore.
func (s *Store) UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin a transaction")
	}

	defer func() { _ = tx.Rollback(ctx) }()

	var current string

	if err := tx.QueryRow(ctx, `select status from request_sessions where request_id = $1 for update`, requestID).
		Scan(&current); err != nil {
		return notFound(err, "failed to get status of request %s", requestID)
	}

	if !models.RequestStatus(current).CanTransitionTo(status) {
		return errors.Wrapf(models.ErrInvalidTransition, "%s to %s", current, status)
	}

	if _, err := tx.Exec(ctx, `update request_sessions set status = $2, updated_at = now() where request_id = $1`,
		requestID, string(status)); err != nil {
		return errors.Wrapf(err, "failed to update status of request %s", requestID)
	}

	return errors.Wrap(tx.Commit(ctx), "failed to commit a status update")
}

// SetRequestSession implements storage.RequestStore.
func (s *Store) SetRequestSession(ctx context.Context, requestID, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `update request_sessions set session_id = $2, updated_at = now() where request_id = $1`,
		requestID, nullableText(sessionID))
	return requireAffected(tag, err, "failed to set session of request %s", requestID)
}

// SetParsedOutput implements storage.RequestStore.
func (s *Store) SetParsedOutput(ctx context.Context, requestID, parsedOutput string) error {
	tag, err := s.pool.Exec(ctx, `update request_sessions set parsed_output = $2, updated_at = now() where request_id = $1`,
		requestID, parsedOutput)
	return requireAffected(tag, err, "failed to set parsed output of request %s", requestID)
}

// GetRequest implements storage.RequestStore.
func (s *Store) GetRequest(ctx context.Context, requestID string) (*models.RequestSession, error) {
	var (
		request   models.RequestSession
		sessionID pgtype.Text
		status    string
	)

	err := s.pool.QueryRow(ctx, `select request_id, session_id, client_tracking_id, client_request, status,
		raw_output, parsed_output, created_at from request_sessions where request_id = $1`, requestID).
		Scan(&request.RequestID, &sessionID, &request.ClientTrackingID, &request.ClientRequest, &status,
			&request.RawOutput, &request.ParsedOutput, &request.CreatedAt)
	if err != nil {
		return nil, notFound(err, "failed to get request %s", requestID)
	}

	request.SessionID = textValue(sessionID)
	request.Status = models.RequestStatus(status)

	return &request, nil
}

var transactionColumns = []string{
	"request_id", "action", "action_context", "credential", "session_id", "calling_application", "tags", "created_at",
}

// AddTransactions implements storage.TransactionStore.
func (s *Store) AddTransactions(ctx context.Context, transactions []models.TransactionData) error {
	if len(transactions) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(transactions))

	for _, t := range transactions {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}

		rows = append(rows, []interface{}{
			t.RequestID, t.Action, t.ActionContext, t.Credential, t.SessionID, t.CallingApplication, tags, t.CreatedAt,
		})
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"transaction_data"}, transactionColumns, pgx.CopyFromRows(rows))

	return errors.Wrap(err, "failed to store transactions")
}

// ListTransactions implements storage.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, requestID string) ([]models.TransactionData, error) {
	rows, err := s.pool.Query(ctx, `select request_id, action, action_context, credential, session_id,
		calling_application, tags, created_at from transaction_data where request_id = $1 order by id`, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}

	defer rows.Close()

	var transactions []models.TransactionData

	for rows.Next() {
		var t models.TransactionData

		if err := rows.Scan(&t.RequestID, &t.Action, &t.ActionContext, &t.Credential, &t.SessionID,
			&t.CallingApplication, &t.Tags, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan a transaction")
		}

		transactions = append(transactions, t)
	}

	return transactions, errors.Wrap(rows.Err(), "failed to list transactions")
}
