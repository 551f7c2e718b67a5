package scheduler

import (
	"context"
	"fmt"
	"time"

	"fleetdesk_backend/platform/config"
	"fleetdesk_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the notification sweep on a cron spec such as
// "@every 30m" or "0 */2 * * *".
type Periodic struct {
	scheduler *asynq.Scheduler
	spec      string
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	spec := cfg.GetNotificationSweepSpec()
	if spec == "" {
		spec = "@every 30m"
	}

	return &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		spec:      spec,
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

// Run registers the sweep and blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	// Unique keeps overlapping replicas from queueing the same sweep twice.
	entryID, err := p.scheduler.Register(p.spec, NewNotificationSweepTask(),
		asynq.Queue(p.queue), asynq.MaxRetry(0), asynq.Unique(5*time.Minute))
	if err != nil {
		return fmt.Errorf("register notification sweep: %w", err)
	}
	p.log.Info("notification sweep registered", "spec", p.spec, "entry", entryID)

	if err := p.scheduler.Start(); err != nil {
		return fmt.Errorf("start periodic scheduler: %w", err)
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
