package scheduler

import (
	"context"
	"time"

	"fleetdesk_backend/platform/logger"
)

const defaultSweepInterval = 30 * time.Minute

// LocalSweep runs the notification sweep on a ticker inside one process. It
// is used when no queue is available to schedule the sweep.
type LocalSweep struct {
	sweeper  Sweeper
	log      *logger.Logger
	interval time.Duration
}

func NewLocalSweep(sweeper Sweeper, interval time.Duration, log *logger.Logger) *LocalSweep {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &LocalSweep{sweeper: sweeper, log: log, interval: interval}
}

func (s *LocalSweep) Run(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *LocalSweep) sweep(ctx context.Context) {
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.log.Warn("notification sweep failed", "error", err)
	}
}
