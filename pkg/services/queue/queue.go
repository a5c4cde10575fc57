/*
2026 © Postgres.ai
*/

// Package queue provides request delivery and the workers consuming it.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/postgres-ai/hostlink/pkg/models"
)

// ErrUnknownMessage reports an ack or nack of a message which is not claimed.
var ErrUnknownMessage = errors.New("unknown message")

// Message defines a claimed request delivery.
type Message struct {
	ID       int64
	Request  models.QueryRequest
	Attempts int
}

// Queue delivers requests to workers. A claimed message is hidden from other workers
// until it is acknowledged, returned with Nack or its visibility timeout passes.
type Queue interface {
	// Enqueue stores the request and returns its identifier.
	Enqueue(ctx context.Context, request models.QueryRequest) (string, error)
	// Claim returns the next visible message, nil if there is none.
	Claim(ctx context.Context) (*Message, error)
	// Ack removes the message.
	Ack(ctx context.Context, id int64) error
	// Nack makes the message visible again after the delay.
	Nack(ctx context.Context, id int64, delay time.Duration, cause error) error
}

// AttemptRequestID returns the request identifier of a delivery attempt.
// Redeliveries get their own request rows because a failed request never changes its status.
func AttemptRequestID(requestID string, attempt int) string {
	if attempt <= 1 {
		return requestID
	}

	return fmt.Sprintf("%s-%d", requestID, attempt)
}
