package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"echoform.app/echoform/common/logger"
	"echoform.app/echoform/internal/service"
)

type SweeperConfig struct {
	Schedule  string // cron expression
	OlderThan time.Duration
	BatchSize int32
}

// Sweeper runs the inactivity sweep on a cron schedule. It is the recovery
// half of finalization: conversations that never saw a completion trigger
// still end up abandoned once their heartbeat goes stale.
type Sweeper struct {
	sweep service.SweepService
	cfg   SweeperConfig
	cron  *cron.Cron
}

func NewSweeper(sweep service.SweepService, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		sweep: sweep,
		cfg:   cfg,
		cron:  cron.New(),
	}
}

// Start registers the schedule and begins running. Non-blocking.
func (s *Sweeper) Start(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "echoform.worker.sweeper",
	})

	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.sweep.SweepInactive(ctx, s.cfg.OlderThan, s.cfg.BatchSize); err != nil {
			slog.ErrorContext(ctx, "scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("registering sweep schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	slog.InfoContext(ctx, "sweeper started",
		"schedule", s.cfg.Schedule,
		"older_than", s.cfg.OlderThan,
		"batch_size", s.cfg.BatchSize)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
