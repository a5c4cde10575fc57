/*
2026 © Postgres.ai
*/

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"
	"golang.org/x/sync/errgroup"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/models"
	"gitlab.com/postgres-ai/hostlink/pkg/services/orchestrator"
)

// Handler runs a request to a terminal status.
type Handler interface {
	Handle(ctx context.Context, request models.QueryRequest) (*orchestrator.Result, error)
}

// Consumer runs workers which claim messages and hand them to the handler.
type Consumer struct {
	cfg     config.Queue
	queue   Queue
	handler Handler
}

// NewConsumer creates a new consumer.
func NewConsumer(cfg config.Queue, queue Queue, handler Handler) *Consumer {
	return &Consumer{cfg: cfg, queue: queue, handler: handler}
}

// Run starts the workers and blocks until the context is done.
func (c *Consumer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for i := 0; i < c.cfg.Workers; i++ {
		worker := i

		group.Go(func() error {
			c.work(ctx, worker)
			return nil
		})
	}

	log.Msg(fmt.Sprintf("Queue consumer started with %d workers", c.cfg.Workers))

	return group.Wait()
}

func (c *Consumer) work(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Err(errors.Wrapf(err, "worker %d", worker))
			}
		}

		if msg == nil {
			if !sleep(ctx, c.cfg.PollInterval) {
				return
			}

			continue
		}

		c.process(ctx, msg)
	}
}

// process handles a message and decides whether it is delivered again.
func (c *Consumer) process(ctx context.Context, msg *Message) {
	request := msg.Request

	if msg.Attempts > 1 {
		if request.ClientTrackingID == "" {
			request.ClientTrackingID = request.RequestID
		}

		request.RequestID = AttemptRequestID(request.RequestID, msg.Attempts)
	}

	_, err := c.handler.Handle(ctx, request)

	settleCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		c.ack(settleCtx, msg)

	case ctx.Err() != nil:
		// Shutdown interrupted the request, another instance picks it up.
		c.nack(settleCtx, msg, 0, err)

	case models.IsRetryable(err) && msg.Attempts < c.cfg.MaxAttempts:
		log.Msg(fmt.Sprintf("Request %s will be retried in %s: %v", request.RequestID, c.cfg.RetryDelay, err))
		c.nack(settleCtx, msg, c.cfg.RetryDelay, err)

	default:
		log.Err(fmt.Sprintf("Request %s dropped after %d attempts: %v", msg.Request.RequestID, msg.Attempts, err))
		c.ack(settleCtx, msg)
	}
}

func (c *Consumer) ack(ctx context.Context, msg *Message) {
	if err := c.queue.Ack(ctx, msg.ID); err != nil {
		log.Err(err)
	}
}

func (c *Consumer) nack(ctx context.Context, msg *Message, delay time.Duration, cause error) {
	if err := c.queue.Nack(ctx, msg.ID, delay, cause); err != nil {
		log.Err(err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
