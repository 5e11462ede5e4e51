// CLAUDE:SUMMARY App orchestrator: wires store, pool, workers, pipeline, probes and runs the daemon loops.
package pepite

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/chineur/pepite/campaign"
	"github.com/chineur/pepite/collide"
	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/extractai"
	"github.com/chineur/pepite/market"
	"github.com/chineur/pepite/store"
	"github.com/chineur/pepite/worker"
)

// App is the assembled daemon.
type App struct {
	Store     *store.Store
	Pool      *credpool.Pool
	Campaigns *campaign.Service
	Scheduler *campaign.Scheduler
	Pipeline  *extractai.Pipeline
	Collider  *collide.Engine
	Prober    *market.Prober

	config *Config
	logger *slog.Logger
}

// NewApp wires every subsystem over an already-opened database.
func NewApp(db *sql.DB, cfg *Config, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	st := store.NewStore(db)
	pool := credpool.New(st, cfg.Credentials.PoolConfig(), logger)

	client := extractai.NewClient(cfg.Extraction, pool, logger)
	pipeline := extractai.NewPipeline(st, client, logger)

	sink := func(ctx context.Context, c *store.Campaign, res *worker.Result) error {
		pages := make([]extractai.PageContent, 0, len(res.Pages))
		for _, p := range res.Pages {
			pages = append(pages, extractai.PageContent{
				URL:        p.URL,
				HTML:       p.HTML,
				Screenshot: p.Screenshot,
			})
		}
		return pipeline.HandleResult(ctx, c, pages)
	}

	campaigns := campaign.NewService(st, campaign.Config{
		WorkerDeps: worker.Deps{
			Pool:   pool,
			Proxy:  cfg.RenderProxy,
			Logger: logger,
		},
	}, sink, logger)

	scheduler := campaign.NewScheduler(campaigns, st, campaign.SchedulerConfig{
		PollInterval: cfg.PollInterval,
	}, logger)

	return &App{
		Store:     st,
		Pool:      pool,
		Campaigns: campaigns,
		Scheduler: scheduler,
		Pipeline:  pipeline,
		Collider:  collide.New(st, collide.Config{MinROIPercent: cfg.MinROIPercent}, logger),
		Prober:    market.NewProber(st, pool, cfg.Market, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Run drives the daemon until ctx is cancelled: the campaign scheduler in
// one goroutine, the market-probe-then-collide cycle in another.
func (a *App) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.Scheduler.Run(ctx)
	}()

	ticker := time.NewTicker(a.config.CollisionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			a.Cycle(ctx)
		}
	}
}

// Cycle runs one market probe followed by one collision pass. Failures are
// logged; the next tick retries.
func (a *App) Cycle(ctx context.Context) {
	if _, err := a.Prober.Run(ctx); err != nil {
		a.logger.Error("market probe failed", "error", err)
	}
	if _, err := a.Collider.Run(ctx); err != nil {
		a.logger.Error("collision pass failed", "error", err)
	}
}
