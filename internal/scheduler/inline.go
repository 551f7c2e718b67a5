package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleetdesk_backend/internal/conversation"
	"fleetdesk_backend/internal/session"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/retry"

	"golang.org/x/sync/semaphore"
)

const defaultInlineWorkers = 8

// busyRetry retries messages whose session lock could not be acquired.
var busyRetry = retry.Config{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
	Retryable:  func(err error) bool { return errors.Is(err, session.ErrLockTimeout) },
}

// Inline processes messages in background goroutines of the API process. It
// stands in for the queue when Redis is not configured; messages in flight
// are lost on restart. A message whose session is busy is retried with
// backoff, other failures are logged and dropped.
type Inline struct {
	handler MessageHandler
	log     *logger.Logger
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	ctx     context.Context
	timeout time.Duration
	busy    retry.Config
}

// NewInline creates an inline enqueuer. Work runs under ctx, so cancelling
// it stops new processing; Wait blocks until running messages finish.
func NewInline(ctx context.Context, handler MessageHandler, workers int, log *logger.Logger) *Inline {
	if workers < 1 {
		workers = defaultInlineWorkers
	}
	return &Inline{
		handler: handler,
		log:     log,
		sem:     semaphore.NewWeighted(int64(workers)),
		ctx:     ctx,
		timeout: messageTimeout,
		busy:    busyRetry,
	}
}

func (i *Inline) Enqueue(_ context.Context, msg conversation.Message) error {
	if err := i.ctx.Err(); err != nil {
		return err
	}
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := i.sem.Acquire(i.ctx, 1); err != nil {
			return
		}
		defer i.sem.Release(1)

		ctx, cancel := context.WithTimeout(i.ctx, i.timeout)
		defer cancel()
		_, err := retry.Do(ctx, i.busy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, i.handler.Handle(ctx, msg)
		})
		if err != nil {
			i.log.Error("inline message processing failed", "message_id", msg.ID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until all accepted messages are processed.
func (i *Inline) Wait() {
	i.wg.Wait()
}
