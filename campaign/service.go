// CLAUDE:SUMMARY Campaign lifecycle: CRUD, dispatch with target-log reconciliation, retry derivation.
// Package campaign orchestrates extraction runs. A campaign is a named,
// schedulable bundle of target URLs plus one worker strategy; dispatching
// drives the strategy over the URL list, records per-target outcomes, and
// hands captured pages to a downstream sink.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chineur/pepite/idgen"
	"github.com/chineur/pepite/store"
	"github.com/chineur/pepite/worker"
)

var (
	ErrNotFound       = errors.New("campaign: not found")
	ErrAlreadyRunning = errors.New("campaign: already running")
	ErrNoTargets      = errors.New("campaign: no target urls")
)

// Sink receives the captured pages of a finished run. The orchestrator does
// not interpret page content; extraction pipelines plug in here.
type Sink func(ctx context.Context, c *store.Campaign, res *worker.Result) error

// Config tunes the service. Zero values get defaults.
type Config struct {
	// WorkerDeps are handed to every strategy constructed for dispatch.
	WorkerDeps worker.Deps
}

// Service owns campaign persistence and dispatch.
type Service struct {
	store     *store.Store
	config    Config
	logger    *slog.Logger
	sink      Sink
	newID     func() string
	newLogID  func() string
	newWorker func(strategy string) (worker.Worker, error)
}

func NewService(st *store.Store, cfg Config, sink Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    st,
		config:   cfg,
		logger:   logger,
		sink:     sink,
		newID:    idgen.Prefixed("cmp_", idgen.Default),
		newLogID: idgen.Prefixed("tlg_", idgen.Default),
	}
	s.newWorker = func(strategy string) (worker.Worker, error) {
		return worker.New(strategy, cfg.WorkerDeps)
	}
	return s
}

// Create validates and persists a new campaign in IDLE state.
func (s *Service) Create(ctx context.Context, name, strategy string, urls []string, params worker.Params, schedule string) (*store.Campaign, error) {
	if len(urls) == 0 {
		return nil, ErrNoTargets
	}
	if _, err := s.newWorker(strategy); err != nil {
		return nil, err
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("encode urls: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	c := &store.Campaign{
		ID:         s.newID(),
		Name:       name,
		Strategy:   strategy,
		URLsJSON:   string(urlsJSON),
		ParamsJSON: string(paramsJSON),
		Schedule:   schedule,
		Enabled:    true,
	}
	if err := s.store.InsertCampaign(ctx, c); err != nil {
		return nil, err
	}
	return s.store.GetCampaign(ctx, c.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*store.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]*store.Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCampaign(ctx, id)
}

// Dispatch runs one campaign end to end: RUNNING transition, target-log
// reconciliation, strategy execution, sink delivery, terminal transition.
// Concurrent dispatch of the same campaign is rejected by the status guard.
func (s *Service) Dispatch(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == store.CampaignRunning {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	urls, err := decodeURLs(c.URLsJSON)
	if err != nil {
		return fmt.Errorf("campaign %s: %w", id, err)
	}
	if len(urls) == 0 {
		return ErrNoTargets
	}

	if err := s.store.MarkCampaignRunning(ctx, id); err != nil {
		return err
	}
	start := time.Now()
	runErr := s.run(ctx, c, urls)
	if runErr != nil {
		s.logger.Error("campaign run failed", "campaign", id, "error", runErr)
		if err := s.store.MarkCampaignError(ctx, id, runErr.Error()); err != nil {
			s.logger.Error("mark campaign error failed", "campaign", id, "error", err)
		}
		return runErr
	}
	if err := s.store.MarkCampaignIdle(ctx, id, time.Since(start)); err != nil {
		return err
	}
	s.logger.Info("campaign completed", "campaign", id, "targets", len(urls), "duration", time.Since(start))
	return nil
}

func (s *Service) run(ctx context.Context, c *store.Campaign, urls []string) error {
	// Pre-populate logs so every target has a PENDING row before the first
	// fetch. Re-runs keep existing rows, resetting nothing.
	for _, u := range urls {
		if err := s.store.EnsureTargetLog(ctx, s.newLogID(), c.ID, u); err != nil {
			return fmt.Errorf("ensure target log: %w", err)
		}
	}

	var params worker.Params
	if c.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(c.ParamsJSON), &params); err != nil {
			return fmt.Errorf("decode params: %w", err)
		}
	}
	w, err := s.newWorker(c.Strategy)
	if err != nil {
		return err
	}

	report := func(url string, status worker.Status, message string) {
		if err := s.store.SetTargetStatus(ctx, s.newLogID(), c.ID, url, string(status), message); err != nil {
			s.logger.Error("persist target status failed", "campaign", c.ID, "url", url, "error", err)
		}
	}
	res, err := w.Fetch(ctx, urls, params, report)
	if err != nil {
		return err
	}
	if s.sink != nil && res.HasContent() {
		if err := s.sink(ctx, c, res); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
	return nil
}

// BuildRetryCampaign creates a narrow follow-up campaign holding only the
// FAILED targets of a previous run, preserving the parent's URL order,
// strategy and params. Returns ErrNoTargets when nothing failed.
func (s *Service) BuildRetryCampaign(ctx context.Context, parentID string) (*store.Campaign, error) {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	failed, err := s.store.FailedTargetURLs(ctx, parentID)
	if err != nil {
		return nil, err
	}
	urls, err := decodeURLs(parent.URLsJSON)
	if err != nil {
		return nil, err
	}
	var retry []string
	for _, u := range urls {
		if failed[u] {
			retry = append(retry, u)
		}
	}
	if len(retry) == 0 {
		return nil, ErrNoTargets
	}
	urlsJSON, err := json.Marshal(retry)
	if err != nil {
		return nil, err
	}
	c := &store.Campaign{
		ID:         s.newID(),
		Name:       parent.Name + " (retry)",
		Strategy:   parent.Strategy,
		URLsJSON:   string(urlsJSON),
		ParamsJSON: parent.ParamsJSON,
		Schedule:   store.ScheduleManual,
		Enabled:    true,
	}
	if err := s.store.InsertCampaign(ctx, c); err != nil {
		return nil, err
	}
	return s.store.GetCampaign(ctx, c.ID)
}

func decodeURLs(raw string) ([]string, error) {
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, fmt.Errorf("decode urls: %w", err)
	}
	return urls, nil
}
