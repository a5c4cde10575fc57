/*
2026 © Postgres.ai
*/

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

var _ Queue = (*Memory)(nil)

type memoryMessage struct {
	Message
	visibleAt time.Time
	lastError string
}

// Memory implements an in-process queue.
type Memory struct {
	visibility time.Duration
	now        func() time.Time

	mu       sync.Mutex
	nextID   int64
	messages []*memoryMessage
}

// NewMemory creates an in-process queue.
func NewMemory(visibility time.Duration) *Memory {
	return &Memory{visibility: visibility, now: time.Now}
}

// Enqueue implements Queue.
func (q *Memory) Enqueue(_ context.Context, request models.QueryRequest) (string, error) {
	if request.RequestID == "" {
		request.RequestID = xid.New().String()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	q.messages = append(q.messages, &memoryMessage{
		Message:   Message{ID: q.nextID, Request: request},
		visibleAt: q.now(),
	})

	return request.RequestID, nil
}

// Claim implements Queue.
func (q *Memory) Claim(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	for _, msg := range q.messages {
		if msg.visibleAt.After(now) {
			continue
		}

		msg.Attempts++
		msg.visibleAt = now.Add(q.visibility)

		claimed := msg.Message

		return &claimed, nil
	}

	return nil, nil
}

// Ack implements Queue.
func (q *Memory) Ack(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, msg := range q.messages {
		if msg.ID == id {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}

	return errors.Wrapf(ErrUnknownMessage, "message %d", id)
}

// Nack implements Queue.
func (q *Memory) Nack(_ context.Context, id int64, delay time.Duration, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, msg := range q.messages {
		if msg.ID == id {
			msg.visibleAt = q.now().Add(delay)

			if cause != nil {
				msg.lastError = cause.Error()
			}

			return nil
		}
	}

	return errors.Wrapf(ErrUnknownMessage, "message %d", id)
}

// Len returns the number of stored messages.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.messages)
}

// LastError returns the cause of the latest Nack of the message.
func (q *Memory) LastError(id int64) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, msg := range q.messages {
		if msg.ID == id {
			return msg.lastError
		}
	}

	return ""
}
