// Package pipeline coordinates end-to-end reconciliation runs: lease
// acquisition, parallel source fetches with retry, validation,
// deduplication, reconciliation, and persistence, with per-run statistics.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/therealsahil19/webspace/internal/metrics"
	"github.com/therealsahil19/webspace/internal/store"
	"github.com/therealsahil19/webspace/pkg/dedup"
	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/reconcile"
	"github.com/therealsahil19/webspace/pkg/retry"
	"github.com/therealsahil19/webspace/pkg/sources"
	"github.com/therealsahil19/webspace/pkg/validate"
)

// Coordinator defaults.
const (
	DefaultLeaseName    = "pipeline_run"
	DefaultLeaseTTL     = 10 * time.Minute
	DefaultFetchTimeout = 60 * time.Second
	DefaultRunTimeout   = 30 * time.Minute
	DefaultMaxParallel  = 4
)

// Repository is the durable storage surface the coordinator writes to.
// *store.Store satisfies it.
type Repository interface {
	UpsertLaunch(ctx context.Context, outcome reconcile.Outcome) (store.UpsertResult, error)
	FindLaunch(ctx context.Context, slugs []string) (*launches.LaunchRecord, map[string]string, error)
}

// Locker is the lease surface guarding runs. *store.Store satisfies it.
type Locker interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) (bool, error)
	RenewLease(ctx context.Context, name, owner string, ttl time.Duration) error
}

// Coordinator runs the pipeline under a cluster-wide lease, at most one run
// active at a time.
type Coordinator struct {
	repo     Repository
	locker   Locker
	registry *sources.Registry
	configs  []sources.Config

	validator  *validate.Validator
	dedup      *dedup.Deduplicator
	reconciler *reconcile.Reconciler
	retry      retry.Policy
	metrics    *metrics.Metrics

	leaseName    string
	leaseTTL     time.Duration
	fetchTimeout time.Duration
	runTimeout   time.Duration
	maxParallel  int
	clock        func() time.Time

	runs *runRegistry
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLeaseName overrides the lease name guarding runs.
func WithLeaseName(name string) Option {
	return func(c *Coordinator) {
		if name != "" {
			c.leaseName = name
		}
	}
}

// WithLeaseTTL sets the lease TTL. The heartbeat renews at a third of it.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.leaseTTL = ttl
		}
	}
}

// WithFetchTimeout bounds a single adapter call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithRunTimeout bounds a whole run.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.runTimeout = d
		}
	}
}

// WithMaxParallel caps concurrent source fetches.
func WithMaxParallel(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithRetryPolicy sets the per-adapter retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Coordinator) {
		c.retry = p
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validate.Validator) Option {
	return func(c *Coordinator) {
		c.validator = v
	}
}

// WithDeduplicator replaces the default deduplicator.
func WithDeduplicator(d *dedup.Deduplicator) Option {
	return func(c *Coordinator) {
		c.dedup = d
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithClock sets the time source for run timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// New creates a Coordinator over the given storage, adapter registry,
// source configs, and reconciler.
func New(repo Repository, locker Locker, registry *sources.Registry, configs []sources.Config, reconciler *reconcile.Reconciler, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:         repo,
		locker:       locker,
		registry:     registry,
		configs:      configs,
		validator:    validate.New(),
		dedup:        dedup.New(),
		reconciler:   reconciler,
		retry:        retry.DefaultPolicy(),
		leaseName:    DefaultLeaseName,
		leaseTTL:     DefaultLeaseTTL,
		fetchTimeout: DefaultFetchTimeout,
		runTimeout:   DefaultRunTimeout,
		maxParallel:  DefaultMaxParallel,
		clock:        time.Now,
		runs:         newRunRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerRun starts a pipeline run over the named sources, or all enabled
// sources when names is empty. It returns immediately with a run handle;
// outcomes, including lock denial, surface through RunStatus. Failures never
// reach the caller as errors.
func (c *Coordinator) TriggerRun(names []string) RunStatus {
	cfgs := c.selectConfigs(names)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        uuid.NewString(),
		cancel:    cancel,
		state:     StatePending,
		stats:     newStats(),
		startedAt: c.clock().UTC(),
	}
	c.runs.add(r)

	logging.Info().
		Str("run_id", r.id).
		Int("sources", len(cfgs)).
		Msg("Run triggered")

	go c.execute(ctx, r, cfgs)
	return r.status()
}

// RunStatus returns a snapshot of the run.
func (c *Coordinator) RunStatus(runID string) (RunStatus, error) {
	r, found := c.runs.get(runID)
	if !found {
		return RunStatus{}, errors.NewNotFoundError("run", runID)
	}
	return r.status(), nil
}

// CancelRun requests cooperative cancellation of an active run. It returns
// false when the run is unknown or already finished.
func (c *Coordinator) CancelRun(runID string) bool {
	r, found := c.runs.get(runID)
	if !found {
		return false
	}
	r.mu.Lock()
	terminal := r.state.Terminal()
	r.mu.Unlock()
	if terminal {
		return false
	}
	r.markCancelled()
	r.cancel()
	logging.Info().Str("run_id", runID).Msg("Run cancellation requested")
	return true
}

// selectConfigs filters the configured sources down to the requested names.
func (c *Coordinator) selectConfigs(names []string) []sources.Config {
	var cfgs []sources.Config
	if len(names) == 0 {
		for _, cfg := range c.configs {
			if !cfg.Disabled {
				cfgs = append(cfgs, cfg)
			}
		}
		return cfgs
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for _, cfg := range c.configs {
		if want[cfg.Name] && !cfg.Disabled {
			cfgs = append(cfgs, cfg)
		}
	}
	return cfgs
}

// execute drives one run through its state machine. It runs on its own
// goroutine; all outcomes are recorded on the run, never returned.
func (c *Coordinator) execute(ctx context.Context, r *run, cfgs []sources.Config) {
	defer r.cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, c.runTimeout)
	defer cancelTimeout()
	ctx = logging.WithRunID(ctx, r.id)
	log := logging.FromContext(ctx)

	r.setState(StateAcquiringLock)
	acquired, err := c.locker.AcquireLease(ctx, c.leaseName, r.id, c.leaseTTL)
	if err != nil {
		c.finishRun(r, StateFailed, "lease acquisition failed: "+err.Error())
		return
	}
	if !acquired {
		if c.metrics != nil {
			c.metrics.LeaseAcquisitions.WithLabelValues("denied").Inc()
		}
		log.Info().Msg("Lease held by another run, skipping")
		c.finishRun(r, StateSkipped, "already running")
		return
	}
	if c.metrics != nil {
		c.metrics.LeaseAcquisitions.WithLabelValues("granted").Inc()
	}

	lockLost := make(chan struct{})
	heartbeatDone := make(chan struct{})
	go c.heartbeat(ctx, r, lockLost, heartbeatDone)

	r.setState(StateRunning)
	stats := newStats()
	runErr := c.runPipeline(ctx, r, cfgs, &stats)
	r.setStats(stats)

	r.cancel() // stop the heartbeat
	<-heartbeatDone

	released, relErr := c.locker.ReleaseLease(context.Background(), c.leaseName, r.id)
	if relErr != nil {
		log.Warn().Err(relErr).Msg("Lease release failed")
	} else if released {
		log.Debug().Msg("Lease released")
	}

	select {
	case <-lockLost:
		c.finishRun(r, StateFailed, errors.ErrLockExpired.Error())
		return
	default:
	}

	switch {
	case r.wasCancelled():
		c.finishRun(r, StateCancelled, "cancelled")
	case runErr != nil:
		c.finishRun(r, StateFailed, runErr.Error())
	case degradedCount(stats) == len(cfgs) && len(cfgs) > 0:
		c.finishRun(r, StateFailed, "all sources degraded")
	case degradedCount(stats) > 0 || stats.LaunchesFailed > 0:
		c.finishRun(r, StatePartialSuccess, "")
	default:
		c.finishRun(r, StateSucceeded, "")
	}
}

// heartbeat renews the lease at a third of its TTL until the run context
// ends. A failed renewal means another worker may already hold the lease;
// the run is cancelled and fails.
func (c *Coordinator) heartbeat(ctx context.Context, r *run, lockLost chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	interval := c.leaseTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.locker.RenewLease(ctx, c.leaseName, r.id, c.leaseTTL); err != nil {
				if errors.IsCanceled(err) {
					return
				}
				logging.FromContext(ctx).Error().Err(err).Msg("Lease renewal failed, aborting run")
				close(lockLost)
				r.cancel()
				return
			}
		}
	}
}

// runPipeline performs fetch, validate, group, reconcile, and persist. It
// returns an error only for whole-run failures; per-source and per-launch
// problems are isolated into stats.
func (c *Coordinator) runPipeline(ctx context.Context, r *run, cfgs []sources.Config, stats *Stats) error {
	log := logging.FromContext(ctx)

	raw, err := c.fetchAll(ctx, cfgs, stats)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	validated := c.validator.Batch(raw)
	stats.RecordsValidated = len(validated.Candidates)
	stats.RecordsRejected = len(validated.Rejected)
	if c.metrics != nil {
		c.metrics.RecordsValidated.Add(float64(stats.RecordsValidated))
		c.metrics.RecordsRejected.Add(float64(stats.RecordsRejected))
	}

	grouped := c.dedup.Group(validated.Candidates)
	stats.DuplicatesRemoved = grouped.DuplicatesRemoved

	for _, group := range grouped.Groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.processGroup(ctx, group, stats)
		stats.GroupsProcessed++
	}

	log.Info().
		Int("records_validated", stats.RecordsValidated).
		Int("records_rejected", stats.RecordsRejected).
		Int("groups", stats.GroupsProcessed).
		Int("launches_upserted", stats.LaunchesUpserted).
		Int("conflicts_created", stats.ConflictsCreated).
		Int("conflicts_updated", stats.ConflictsUpdated).
		Msg("Run pipeline finished")
	return nil
}

// fetchAll fans the adapter calls out in parallel, bounded, and joins before
// validation. A source that exhausts its retries is marked degraded and its
// records dropped; only cancellation stops the fan-out.
func (c *Coordinator) fetchAll(ctx context.Context, cfgs []sources.Config, stats *Stats) ([]launches.RawRecord, error) {
	results := make([][]launches.RawRecord, len(cfgs))
	sourceStats := make([]*SourceStats, len(cfgs))
	for i, cfg := range cfgs {
		sourceStats[i] = stats.source(cfg.Name)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for i, cfg := range cfgs {
		g.Go(func() error {
			log := logging.FromContext(logging.WithSource(gctx, cfg.Name))
			ss := sourceStats[i]

			adapter, found := c.registry.Resolve(cfg)
			if !found {
				log.Error().Msg("No adapter registered for source")
				ss.Degraded = true
				return nil
			}

			timeout := c.fetchTimeout
			if cfg.Timeout > 0 {
				timeout = cfg.Timeout
			}

			var records []launches.RawRecord
			attempts, err := c.retry.Do(gctx, func(ctx context.Context) error {
				fctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				fetched, err := adapter.Fetch(fctx, cfg)
				if err != nil {
					log.Warn().Err(err).Msg("Fetch attempt failed")
					return err
				}
				records = fetched
				return nil
			})
			ss.Attempted = attempts
			if err != nil {
				if errors.IsCanceled(err) && gctx.Err() != nil {
					return gctx.Err()
				}
				ss.Failed = attempts
				ss.Degraded = true
				if c.metrics != nil {
					c.metrics.SourcesDegraded.Inc()
				}
				log.Error().Err(err).Int("attempts", attempts).Msg("Source degraded for this run")
				return nil
			}
			ss.Succeeded = 1
			ss.Failed = attempts - 1
			ss.Records = len(records)
			results[i] = records
			log.Info().Int("records", len(records)).Msg("Source fetched")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []launches.RawRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return all, nil
}

// processGroup reconciles and persists one group. Failures are logged and
// counted, never propagated; other groups proceed.
func (c *Coordinator) processGroup(ctx context.Context, group dedup.Group, stats *Stats) {
	log := logging.FromContext(ctx)

	slugs := make([]string, 0, len(group.Members))
	seen := map[string]bool{}
	for _, m := range group.Members {
		if !seen[m.Record.Slug] {
			seen[m.Record.Slug] = true
			slugs = append(slugs, m.Record.Slug)
		}
	}

	// Stored values compete at their original source's priority, so a run
	// with worse data cannot blindly overwrite a better previous run.
	stored, origins, err := c.repo.FindLaunch(ctx, slugs)
	if err != nil && !errors.IsNotFound(err) {
		log.Error().Err(err).Strs("slugs", slugs).Msg("Loading stored launch failed")
		stats.LaunchesFailed++
		return
	}
	if stored != nil {
		group.Members = append(group.Members, reconcile.StoredContributions(*stored, origins)...)
	}

	outcome, err := c.reconciler.Reconcile(group)
	if err != nil {
		log.Error().Err(err).Strs("slugs", slugs).Msg("Reconciliation failed")
		stats.LaunchesFailed++
		return
	}
	if stored != nil {
		// Identity is stable once assigned.
		outcome.Record.Slug = stored.Slug
	}

	result, err := c.repo.UpsertLaunch(ctx, outcome)
	if err != nil {
		log.Error().Err(err).Str("slug", outcome.Record.Slug).Msg("Persisting launch failed")
		stats.LaunchesFailed++
		return
	}

	stats.LaunchesUpserted++
	stats.ConflictsCreated += result.ConflictsCreated
	stats.ConflictsUpdated += result.ConflictsUpdated
	if c.metrics != nil {
		c.metrics.LaunchesUpserted.Inc()
		c.metrics.ConflictsCreated.Add(float64(result.ConflictsCreated))
		c.metrics.ConflictsUpdated.Add(float64(result.ConflictsUpdated))
	}
}

// finishRun records the final state and metrics.
func (c *Coordinator) finishRun(r *run, state State, reason string) {
	now := c.clock().UTC()
	r.finish(state, reason, now)
	if c.metrics != nil {
		c.metrics.RunsTotal.WithLabelValues(string(state)).Inc()
		c.metrics.RunDuration.Observe(now.Sub(r.startedAt).Seconds())
	}
	logging.Info().
		Str("run_id", r.id).
		Str("state", string(state)).
		Str("reason", reason).
		Msg("Run finished")
}

// degradedCount counts sources marked degraded in stats.
func degradedCount(stats Stats) int {
	n := 0
	for _, ss := range stats.Sources {
		if ss.Degraded {
			n++
		}
	}
	return n
}
