/*
2026 © Postgres.ai
*/

package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/xid"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

var _ Queue = (*Postgres)(nil)

// Postgres implements a queue on the request_queue table. Workers of every instance
// claim messages with SKIP LOCKED, so a message is delivered to one of them at a time.
type Postgres struct {
	pool       *pgxpool.Pool
	visibility time.Duration
}

// NewPostgres creates a Postgres queue. The table is created by the store migrations.
func NewPostgres(pool *pgxpool.Pool, visibility time.Duration) *Postgres {
	return &Postgres{pool: pool, visibility: visibility}
}

// Enqueue implements Queue.
func (q *Postgres) Enqueue(ctx context.Context, request models.QueryRequest) (string, error) {
	if request.RequestID == "" {
		request.RequestID = xid.New().String()
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode the request")
	}

	if _, err := q.pool.Exec(ctx, `insert into request_queue (payload) values ($1)`, payload); err != nil {
		return "", errors.Wrapf(err, "failed to enqueue request %s", request.RequestID)
	}

	return request.RequestID, nil
}

// Claim implements Queue.
func (q *Postgres) Claim(ctx context.Context) (*Message, error) {
	const query = `
update request_queue
set attempts = attempts + 1,
    visible_at = now() + $1 * interval '1 millisecond'
where id = (
  select id from request_queue
  where visible_at <= now()
  order by id
  for update skip locked
  limit 1
)
returning id, payload, attempts`

	var (
		msg     Message
		payload []byte
	)

	err := q.pool.QueryRow(ctx, query, q.visibility.Milliseconds()).Scan(&msg.ID, &payload, &msg.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to claim a message")
	}

	if err := json.Unmarshal(payload, &msg.Request); err != nil {
		return nil, errors.Wrapf(err, "failed to decode message %d", msg.ID)
	}

	return &msg, nil
}

// Ack implements Queue.
func (q *Postgres) Ack(ctx context.Context, id int64) error {
	tag, err := q.pool.Exec(ctx, `delete from request_queue where id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to ack message %d", id)
	}

	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrUnknownMessage, "message %d", id)
	}

	return nil
}

// Nack implements Queue.
func (q *Postgres) Nack(ctx context.Context, id int64, delay time.Duration, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	tag, err := q.pool.Exec(ctx,
		`update request_queue set visible_at = now() + $2 * interval '1 millisecond', last_error = $3 where id = $1`,
		id, delay.Milliseconds(), lastError)
	if err != nil {
		return errors.Wrapf(err, "failed to nack message %d", id)
	}

	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrUnknownMessage, "message %d", id)
	}

	return nil
}
