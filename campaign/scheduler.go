package campaign

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chineur/pepite/store"
)

// SchedulerConfig tunes the poll loop. Zero values get defaults.
type SchedulerConfig struct {
	// PollInterval between dispatch sweeps. Default: 1m.
	PollInterval time.Duration
}

func (c *SchedulerConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
}

// Scheduler periodically sweeps for dispatchable campaigns (enabled,
// scheduled, not already running) and dispatches each in its own goroutine.
// A failing campaign never blocks the sweep.
type Scheduler struct {
	service *Service
	store   *store.Store
	config  SchedulerConfig
	logger  *slog.Logger
}

func NewScheduler(svc *Service, st *store.Store, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{service: svc, store: st, config: cfg, logger: logger}
}

// Run blocks until ctx is cancelled. The first sweep happens immediately,
// then every PollInterval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "poll_interval", s.config.PollInterval)
	s.sweep(ctx)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	due, err := s.store.DispatchableCampaigns(ctx)
	if err != nil {
		s.logger.Error("list dispatchable campaigns failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("dispatching campaigns", "count", len(due))

	var wg sync.WaitGroup
	for _, c := range due {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.service.Dispatch(ctx, id); err != nil {
				s.logger.Error("dispatch failed", "campaign", id, "error", err)
			}
		}(c.ID)
	}
	wg.Wait()
}
