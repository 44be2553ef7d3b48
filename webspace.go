// Package webspace reconciles launch data scraped from several disagreeing
// sources into one canonical record per launch. It exposes run coordination
// under a distributed lease, conflict management, and the stored catalog.
package webspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealsahil19/webspace/internal/config"
	"github.com/therealsahil19/webspace/internal/metrics"
	"github.com/therealsahil19/webspace/internal/store"
	"github.com/therealsahil19/webspace/pkg/dedup"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/pipeline"
	"github.com/therealsahil19/webspace/pkg/reconcile"
	"github.com/therealsahil19/webspace/pkg/retry"
	"github.com/therealsahil19/webspace/pkg/sources"
	"github.com/therealsahil19/webspace/pkg/validate"
)

// Webspace is the top-level surface: run coordination, conflict
// administration, and read access to the reconciled catalog.
type Webspace interface {
	// TriggerRun starts a pipeline run over the named sources (all
	// enabled sources when names is empty) and returns immediately.
	TriggerRun(names []string) pipeline.RunStatus

	// RunStatus returns a point-in-time snapshot of a run.
	RunStatus(runID string) (pipeline.RunStatus, error)

	// CancelRun requests cooperative cancellation of an active run.
	CancelRun(runID string) bool

	// IsLocked reports whether the run lease is currently held.
	IsLocked(ctx context.Context) (bool, error)

	// ForceUnlock removes the run lease regardless of owner. Operator
	// recovery only.
	ForceUnlock(ctx context.Context) error

	// ListConflicts returns recorded conflicts, optionally filtered by
	// resolution state.
	ListConflicts(ctx context.Context, resolved *bool) ([]launches.Conflict, error)

	// ResolveConflict settles a conflict with the chosen value and
	// returns the updated canonical record.
	ResolveConflict(ctx context.Context, id int64, chosenValue, notes string) (*launches.LaunchRecord, error)

	// ReopenConflict puts a resolved conflict back in play.
	ReopenConflict(ctx context.Context, id int64) error

	// ConflictStats summarizes stored conflicts.
	ConflictStats(ctx context.Context) (store.ConflictStats, error)

	// GetLaunch returns one canonical record by slug.
	GetLaunch(ctx context.Context, slug string) (*launches.LaunchRecord, error)

	// ListLaunches returns the reconciled catalog.
	ListLaunches(ctx context.Context) ([]launches.LaunchRecord, error)

	// SchedulerOn begins periodic runs at the configured interval.
	SchedulerOn() error

	// SchedulerOff stops periodic runs.
	SchedulerOff()

	// Close stops the scheduler and closes storage.
	Close() error
}

// webspace is the internal implementation of the Webspace interface.
type webspace struct {
	cfg         *config.Config
	store       *store.Store
	coordinator *pipeline.Coordinator

	mu        sync.Mutex
	ticker    *time.Ticker
	stopCh    chan struct{}
	scheduled bool
}

// New creates a Webspace instance with the given options.
func New(opts ...Option) (Webspace, error) {
	s := &settings{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}

	cfg := s.config
	if cfg == nil {
		loaded, err := config.Load(s.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if s.runInterval > 0 {
		cfg.RunInterval = s.runInterval
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	registry := sources.NewRegistry()
	registry.Register(sources.NewHTTPAdapter("http"))
	registry.Register(sources.NewStaticAdapter("static"))
	for _, a := range s.adapters {
		registry.Register(a)
	}

	reconciler := reconcile.New(
		reconcile.NewRanking(cfg.Ranking()),
		reconcile.WithMassTolerance(cfg.MassTolerance),
		reconcile.WithDateTolerance(cfg.DateTolerance),
	)

	coordinatorOpts := []pipeline.Option{
		pipeline.WithLeaseName(cfg.LeaseName),
		pipeline.WithLeaseTTL(cfg.LeaseTTL),
		pipeline.WithFetchTimeout(cfg.FetchTimeout),
		pipeline.WithRunTimeout(cfg.RunTimeout),
		pipeline.WithMaxParallel(cfg.MaxParallel),
		pipeline.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Multiplier:  cfg.RetryMultiplier,
			Jitter:      cfg.RetryJitter,
		}),
		pipeline.WithValidator(validate.New()),
		pipeline.WithDeduplicator(dedup.New(
			dedup.WithDateWindow(cfg.DedupWindow),
			dedup.WithSimilarityThreshold(cfg.SimilarityThreshold),
		)),
	}
	if s.metricsRegistry != nil {
		coordinatorOpts = append(coordinatorOpts, pipeline.WithMetrics(metrics.New(s.metricsRegistry)))
	}

	w := &webspace{
		cfg:   cfg,
		store: st,
		coordinator: pipeline.New(
			st, st, registry, cfg.Sources, reconciler, coordinatorOpts...),
		stopCh: make(chan struct{}),
	}

	if s.schedulerEnabled {
		if err := w.SchedulerOn(); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *webspace) TriggerRun(names []string) pipeline.RunStatus {
	return w.coordinator.TriggerRun(names)
}

func (w *webspace) RunStatus(runID string) (pipeline.RunStatus, error) {
	return w.coordinator.RunStatus(runID)
}

func (w *webspace) CancelRun(runID string) bool {
	return w.coordinator.CancelRun(runID)
}

func (w *webspace) IsLocked(ctx context.Context) (bool, error) {
	return w.store.IsLocked(ctx, w.cfg.LeaseName)
}

func (w *webspace) ForceUnlock(ctx context.Context) error {
	return w.store.ForceReleaseLease(ctx, w.cfg.LeaseName)
}

func (w *webspace) ListConflicts(ctx context.Context, resolved *bool) ([]launches.Conflict, error) {
	return w.store.ListConflicts(ctx, resolved)
}

func (w *webspace) ResolveConflict(ctx context.Context, id int64, chosenValue, notes string) (*launches.LaunchRecord, error) {
	return w.store.ResolveConflict(ctx, id, chosenValue, notes)
}

func (w *webspace) ReopenConflict(ctx context.Context, id int64) error {
	return w.store.ReopenConflict(ctx, id)
}

func (w *webspace) ConflictStats(ctx context.Context) (store.ConflictStats, error) {
	return w.store.GetConflictStats(ctx)
}

func (w *webspace) GetLaunch(ctx context.Context, slug string) (*launches.LaunchRecord, error) {
	rec, _, err := w.store.GetLaunch(ctx, slug)
	return rec, err
}

func (w *webspace) ListLaunches(ctx context.Context) ([]launches.LaunchRecord, error) {
	return w.store.ListLaunches(ctx)
}

// SchedulerOn begins periodic runs. Each tick triggers a run subject to the
// same lease as manual triggers; a tick while a run is active is skipped by
// lock denial, never queued.
func (w *webspace) SchedulerOn() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduled {
		return nil
	}
	if w.cfg.RunInterval <= 0 {
		return fmt.Errorf("run interval must be positive")
	}

	w.ticker = time.NewTicker(w.cfg.RunInterval)
	w.scheduled = true

	// The goroutine selects on locals. SchedulerOff replaces both fields
	// under the mutex; reading them from the goroutine would race.
	ticker := w.ticker
	stop := w.stopCh
	go func() {
		for {
			select {
			case <-ticker.C:
				status := w.TriggerRun(nil)
				logging.Info().
					Str("run_id", status.ID).
					Msg("Scheduled run triggered")
			case <-stop:
				return
			}
		}
	}()

	logging.Info().Dur("interval", w.cfg.RunInterval).Msg("Scheduler started")
	return nil
}

// SchedulerOff stops periodic runs. Safe to call more than once.
func (w *webspace) SchedulerOff() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.scheduled {
		return
	}
	w.ticker.Stop()
	close(w.stopCh)
	w.stopCh = make(chan struct{})
	w.scheduled = false
}

// Close stops the scheduler and closes storage.
func (w *webspace) Close() error {
	w.SchedulerOff()
	return w.store.Close()
}
