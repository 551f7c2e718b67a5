package scheduler

import (
	"context"
	"fmt"

	"fleetdesk_backend/internal/conversation"
	"fleetdesk_backend/internal/notification"
	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// MessageHandler processes one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg conversation.Message) error
}

// Sweeper runs one notification sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (notification.Result, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler MessageHandler
	sweeper Sweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handler MessageHandler, sweeper Sweeper, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		handler: handler,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskProcessMessage, w.handleProcessMessage)
	mux.HandleFunc(TaskNotificationSweep, w.handleNotificationSweep)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleProcessMessage(ctx context.Context, task *asynq.Task) error {
	msg, err := ParseProcessMessagePayload(task)
	if err != nil {
		// A payload that cannot be decoded will never succeed.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.handler.Handle(ctx, msg)
}

func (w *Worker) handleNotificationSweep(ctx context.Context, _ *asynq.Task) error {
	if w.sweeper == nil {
		return nil
	}
	_, err := w.sweeper.Sweep(ctx)
	return err
}
