package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-appgen/logger"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Janitor periodically prunes stale admission tickets for every app the
// governor has seen. Admission already prunes inline, so the janitor
// only matters for apps that went quiet while holding leaked tickets.
type Janitor struct {
	governor  *ConcurrencyGovernor
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    *logger.CtxZapLogger
}

// NewJanitor creates a janitor sweeping every interval.
func NewJanitor(governor *ConcurrencyGovernor, interval time.Duration, log *logger.CtxZapLogger) (*Janitor, error) {
	if log == nil {
		log = logger.GetLogger("ratelimit")
	}
	if interval <= 0 {
		interval = time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler failed: %w", err)
	}

	return &Janitor{
		governor:  governor,
		scheduler: scheduler,
		interval:  interval,
		logger:    log,
	}, nil
}

// Start schedules the sweep and starts the scheduler.
func (j *Janitor) Start() error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.sweep),
	)
	if err != nil {
		return fmt.Errorf("schedule ticket sweep failed: %w", err)
	}

	j.scheduler.Start()
	j.logger.Debug("ticket janitor started", zap.Duration("interval", j.interval))
	return nil
}

// Stop shuts the scheduler down.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, appID := range j.governor.TrackedApps() {
		if err := j.governor.Recalc(ctx, appID); err != nil {
			j.logger.WarnCtx(ctx, "stale ticket sweep failed",
				zap.String("app_id", appID),
				zap.Error(err))
		}
	}
}
